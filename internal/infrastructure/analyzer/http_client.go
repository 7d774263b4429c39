package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/talentsift/backend/internal/domain/screening"
	"github.com/talentsift/backend/internal/domain/shared"
	"github.com/talentsift/backend/internal/infrastructure/config"
)

// maxAnalysisResponseSize limits the response body size to prevent memory
// exhaustion from a misbehaving upstream
const maxAnalysisResponseSize = 4 * 1024 * 1024

// HTTPClient implements screening.Analyzer against the external analysis
// service. One call covers a single resume; latency runs into tens of
// seconds, so the timeout comes from configuration rather than a constant.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates an analyzer client from configuration
func NewHTTPClient(cfg config.AnalyzerConfig, logger *zap.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("analyzer: base url is required")
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger,
	}, nil
}

type analysisErrorResponse struct {
	Error string `json:"error"`
}

// Analyze submits one candidate for scoring. Transport failures and non-2xx
// responses map to ErrAnalysisUpstream; the application layer owns retries.
func (c *HTTPClient) Analyze(ctx context.Context, req screening.AnalysisRequest) (*screening.AnalysisResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer: failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("analyzer: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("analysis request failed",
			zap.String("candidate", req.CandidateName),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", shared.ErrAnalysisUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAnalysisResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", shared.ErrAnalysisUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp analysisErrorResponse
		_ = json.Unmarshal(respBody, &errResp)
		c.logger.Warn("analysis service returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("upstream_error", errResp.Error))
		return nil, fmt.Errorf("%w: status %d", shared.ErrAnalysisUpstream, resp.StatusCode)
	}

	var result screening.AnalysisResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", shared.ErrAnalysisUpstream, err)
	}

	c.logger.Debug("analysis completed",
		zap.String("candidate", req.CandidateName),
		zap.Float64("score", result.SuitabilityScore),
		zap.Duration("elapsed", time.Since(start)))

	return &result, nil
}

// Ensure HTTPClient implements the Analyzer port
var _ screening.Analyzer = (*HTTPClient)(nil)
