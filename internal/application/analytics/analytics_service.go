package analytics

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/talentsift/backend/internal/domain/identity"
	"github.com/talentsift/backend/internal/domain/screening"
)

// topEntryLimit caps the gap and location frequency views
const topEntryLimit = 10

// Service computes the cross-tenant analytics the operator dashboard shows.
// Everything is recomputed from the full report set on each call; the data
// volumes here are dashboard-sized, not warehouse-sized.
type Service struct {
	reports screening.ReportRepository
	users   identity.UserRepository
	logger  *zap.Logger
}

// ServiceConfig contains configuration for Service
type ServiceConfig struct {
	Reports screening.ReportRepository
	Users   identity.UserRepository
	Logger  *zap.Logger
}

// NewService creates a new analytics service
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		reports: cfg.Reports,
		users:   cfg.Users,
		logger:  cfg.Logger,
	}
}

// FrequencyEntry is one value with its occurrence count
type FrequencyEntry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Overview is the aggregated statistics view
type Overview struct {
	TotalReports int `json:"total_reports"`
	// AvgSuitabilityScore is zero when there are no reports
	AvgSuitabilityScore float64 `json:"avg_suitability_score"`
	// AvgExperienceYears averages only reports where the analysis extracted
	// a numeric figure
	AvgExperienceYears   float64          `json:"avg_experience_years"`
	FitLevelCounts       map[string]int   `json:"fit_level_counts"`
	TopGaps              []FrequencyEntry `json:"top_gaps"`
	TopLocations         []FrequencyEntry `json:"top_locations"`
	SalaryIndicatedCount int              `json:"salary_indicated_count"`
	GeneratedAt          time.Time        `json:"generated_at"`
}

// RegistryEntry is one registered recruiter account in the admin listing
type RegistryEntry struct {
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Company      string    `json:"company"`
	SignupSource string    `json:"signup_source"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Aggregate recomputes the full statistics view from every stored report
func (s *Service) Aggregate(ctx context.Context) (*Overview, error) {
	reports, err := s.reports.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading reports: %w", err)
	}

	overview := &Overview{
		TotalReports:   len(reports),
		FitLevelCounts: make(map[string]int, len(screening.KnownFitLevels)),
		GeneratedAt:    time.Now(),
	}
	for _, level := range screening.KnownFitLevels {
		overview.FitLevelCounts[string(level)] = 0
	}

	var scoreSum float64
	var expSum float64
	expCount := 0
	gaps := newOrderedCounter()
	locations := newOrderedCounter()

	for _, report := range reports {
		scoreSum += report.SuitabilityScore

		if report.ExperienceYears != nil {
			expSum += *report.ExperienceYears
			expCount++
		}

		if _, known := screening.ParseFitLevel(string(report.FitLevel)); known {
			overview.FitLevelCounts[string(report.FitLevel)]++
		}

		for _, gap := range report.Gaps {
			if normalized := normalizeGap(gap); normalized != "" {
				gaps.add(normalized)
			}
		}

		if location := strings.TrimSpace(report.Location); location != "" {
			locations.add(location)
		}

		if report.SalaryIndicated() {
			overview.SalaryIndicatedCount++
		}
	}

	if len(reports) > 0 {
		overview.AvgSuitabilityScore = scoreSum / float64(len(reports))
	}
	if expCount > 0 {
		overview.AvgExperienceYears = expSum / float64(expCount)
	}
	overview.TopGaps = gaps.top(topEntryLimit)
	overview.TopLocations = locations.top(topEntryLimit)

	return overview, nil
}

// Registry lists registered recruiter accounts, newest first. Operator
// accounts are internal and excluded from the listing.
func (s *Service) Registry(ctx context.Context) ([]RegistryEntry, error) {
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading registry: %w", err)
	}

	entries := make([]RegistryEntry, 0, len(users))
	for _, user := range users {
		if user.IsOperator() {
			continue
		}
		entries = append(entries, RegistryEntry{
			Email:        user.Email,
			DisplayName:  user.DisplayName,
			Company:      user.Company,
			SignupSource: user.SignupSource,
			RegisteredAt: user.CreatedAt,
		})
	}
	return entries, nil
}

// csvHeader is the fixed column set of the export
var csvHeader = []string{
	"report_id", "owner_id", "candidate_name", "role_title",
	"suitability_score", "experience_years", "fit_level", "gaps",
	"location", "expected_salary", "created_at",
}

// ExportCSV streams every report as a flat CSV
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	reports, err := s.reports.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("loading reports: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, report := range reports {
		experience := ""
		if report.ExperienceYears != nil {
			experience = strconv.FormatFloat(*report.ExperienceYears, 'f', -1, 64)
		}
		salary := ""
		if report.SalaryIndicated() {
			salary = report.ExpectedSalary.String()
		}

		record := []string{
			report.GetID().String(),
			report.OwnerID.String(),
			report.CandidateName,
			report.RoleTitle,
			strconv.FormatFloat(report.SuitabilityScore, 'f', -1, 64),
			experience,
			string(report.FitLevel),
			strings.Join(report.Gaps, "; "),
			report.Location,
			salary,
			report.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// normalizeGap folds case, trims whitespace and strips punctuation so that
// "Kubernetes," and " kubernetes" group together
func normalizeGap(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// orderedCounter counts string occurrences while remembering first-seen
// order, which breaks frequency ties deterministically
type orderedCounter struct {
	counts map[string]int
	order  []string
}

func newOrderedCounter() *orderedCounter {
	return &orderedCounter{counts: make(map[string]int)}
}

func (c *orderedCounter) add(key string) {
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *orderedCounter) top(n int) []FrequencyEntry {
	entries := make([]FrequencyEntry, 0, len(c.order))
	for _, key := range c.order {
		entries = append(entries, FrequencyEntry{Value: key, Count: c.counts[key]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
