package screening

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentsift/backend/internal/application/retry"
	"github.com/talentsift/backend/internal/domain/entitlement"
	"github.com/talentsift/backend/internal/domain/identity"
	"github.com/talentsift/backend/internal/domain/screening"
	"github.com/talentsift/backend/internal/domain/shared"
)

// AnalysisService runs one candidate screening end to end: gate check,
// upstream analysis with retries, report persistence, usage metering. The
// gate is enforced here rather than trusted to the client, so an exhausted
// free tier cannot be bypassed by calling the API directly.
type AnalysisService struct {
	analyzer     screening.Analyzer
	reports      screening.ReportRepository
	entitlements entitlement.EntitlementRepository
	users        identity.UserRepository
	eventBus     shared.EventPublisher
	freeLimit    int64
	retryPolicy  retry.Policy
	sleeper      retry.Sleeper
	logger       *zap.Logger
}

// AnalysisServiceConfig contains configuration for AnalysisService
type AnalysisServiceConfig struct {
	Analyzer     screening.Analyzer
	Reports      screening.ReportRepository
	Entitlements entitlement.EntitlementRepository
	Users        identity.UserRepository
	EventBus     shared.EventPublisher
	FreeLimit    int64
	RetryPolicy  retry.Policy
	// Sleeper overrides the backoff wait, for tests
	Sleeper retry.Sleeper
	Logger  *zap.Logger
}

// NewAnalysisService creates a new AnalysisService
func NewAnalysisService(cfg AnalysisServiceConfig) *AnalysisService {
	if cfg.RetryPolicy.Attempts == 0 {
		cfg.RetryPolicy = retry.DefaultPolicy()
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = retry.ContextSleep
	}
	return &AnalysisService{
		analyzer:     cfg.Analyzer,
		reports:      cfg.Reports,
		entitlements: cfg.Entitlements,
		users:        cfg.Users,
		eventBus:     cfg.EventBus,
		freeLimit:    cfg.FreeLimit,
		retryPolicy:  cfg.RetryPolicy,
		sleeper:      cfg.Sleeper,
		logger:       cfg.Logger,
	}
}

// AnalyzeInput carries one screening request
type AnalyzeInput struct {
	TenantID       uuid.UUID
	CandidateName  string
	RoleTitle      string
	ResumeText     string
	JobDescription string
}

// AnalyzeOutput is the completed screening plus the tenant's metering state
type AnalyzeOutput struct {
	Report     *screening.Report
	UsageCount int64
	Metered    bool
}

// Analyze gates, runs and meters one screening. The quota is consumed only
// after the upstream analysis succeeds; a failed analysis costs nothing.
func (s *AnalysisService) Analyze(ctx context.Context, input AnalyzeInput) (*AnalyzeOutput, error) {
	if input.CandidateName == "" || input.ResumeText == "" {
		return nil, shared.ErrInvalidInput
	}

	user, err := s.users.FindByID(ctx, input.TenantID)
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	ent, err := s.entitlements.GetOrCreate(ctx, input.TenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: reading entitlement: %v", shared.ErrStoreUnavailable, err)
	}

	decision := entitlement.Decide(ent, user.IsOperator(), s.freeLimit)
	if !decision.Allowed {
		s.logger.Info("analysis denied by access gate",
			zap.String("tenant_id", input.TenantID.String()),
			zap.Int64("usage_count", ent.UsageCount),
			zap.Int64("free_limit", s.freeLimit))
		return nil, shared.ErrQuotaExceeded
	}

	var result *screening.AnalysisResult
	err = s.retryPolicy.DoWithSleeper(ctx, s.sleeper, func(ctx context.Context) error {
		var analyzeErr error
		result, analyzeErr = s.analyzer.Analyze(ctx, screening.AnalysisRequest{
			CandidateName:  input.CandidateName,
			RoleTitle:      input.RoleTitle,
			ResumeText:     input.ResumeText,
			JobDescription: input.JobDescription,
		})
		return analyzeErr
	})
	if err != nil {
		// No report, no usage consumed
		s.logger.Warn("analysis failed after retries",
			zap.String("tenant_id", input.TenantID.String()),
			zap.String("candidate", input.CandidateName),
			zap.Error(err))
		return nil, err
	}

	report, err := screening.NewReport(input.TenantID, input.CandidateName, input.RoleTitle, result)
	if err != nil {
		return nil, err
	}

	if err := s.reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("%w: saving report: %v", shared.ErrStoreUnavailable, err)
	}

	// Metering runs for every role; the gate, not the counter, is what makes
	// operators and subscribers unmetered
	var usageCount int64
	err = s.retryPolicy.DoWithSleeper(ctx, s.sleeper, func(ctx context.Context) error {
		var incErr error
		usageCount, incErr = s.entitlements.IncrementUsage(ctx, input.TenantID)
		return incErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: recording usage: %v", shared.ErrStoreUnavailable, err)
	}

	s.publish(ctx, entitlement.NewUsageRecordedEvent(ent.GetID(), input.TenantID, usageCount))

	s.logger.Info("analysis completed",
		zap.String("tenant_id", input.TenantID.String()),
		zap.String("report_id", report.GetID().String()),
		zap.Float64("score", report.SuitabilityScore),
		zap.Int64("usage_count", usageCount))

	return &AnalyzeOutput{
		Report:     report,
		UsageCount: usageCount,
		Metered:    decision.Metered,
	}, nil
}

// ListReports returns one page of the tenant's own reports, newest first
func (s *AnalysisService) ListReports(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (shared.Paginated[*screening.Report], error) {
	return s.reports.FindByOwner(ctx, tenantID, filter)
}

func (s *AnalysisService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish domain event",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}
