// Package history persists analyses, error-pattern counters, pipeline
// outcomes and fix merge requests, and serves them back as the historical
// feed for risk prediction and the dashboard.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/CosmoTheDev/pipeline-guardian/internal/database"
	"github.com/CosmoTheDev/pipeline-guardian/models"
)

// topPatternLimit bounds the patterns included in Stats.
const topPatternLimit = 10

// Store is the persistence sink. It is safe for concurrent use when the
// underlying DB is.
type Store struct {
	db  database.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the clock used for timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store over a migrated database.
func New(db database.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveAnalysis stores rec, assigning a ULID and creation time when unset.
// It returns the record ID.
func (s *Store) SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if _, err := s.db.Insert(ctx, "pipeline_analyses", rec); err != nil {
		return "", fmt.Errorf("saving analysis for job %d: %w", rec.JobID, err)
	}
	return rec.ID, nil
}

// IncrementErrorPattern bumps the occurrence counter for a fingerprint,
// creating the pattern on first sight.
func (s *Store) IncrementErrorPattern(ctx context.Context, projectID string, category models.Category, fingerprint, summary string) error {
	now := s.now().UTC()
	var query string
	switch s.db.Driver() {
	case "mysql":
		query = `INSERT INTO error_patterns
			(project_id, category, fingerprint, summary, occurrences, first_seen, last_seen)
			VALUES (?, ?, ?, ?, 1, ?, ?)
			ON DUPLICATE KEY UPDATE occurrences = occurrences + 1, last_seen = VALUES(last_seen)`
	default:
		query = `INSERT INTO error_patterns
			(project_id, category, fingerprint, summary, occurrences, first_seen, last_seen)
			VALUES (?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(project_id, category, fingerprint)
			DO UPDATE SET occurrences = occurrences + 1, last_seen = excluded.last_seen`
	}
	if err := s.db.Exec(ctx, query, projectID, string(category), fingerprint, summary, now, now); err != nil {
		return fmt.Errorf("incrementing error pattern %s: %w", fingerprint, err)
	}
	return nil
}

// RecordPipeline stores or updates the outcome of a pipeline run.
func (s *Store) RecordPipeline(ctx context.Context, rec models.PipelineRunRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ID = 0
	if err := s.db.Upsert(ctx, "pipeline_runs", rec, []string{"project_id", "pipeline_id"}); err != nil {
		return fmt.Errorf("recording pipeline %d: %w", rec.PipelineID, err)
	}
	return nil
}

// RecordFix stores a fix merge request.
func (s *Store) RecordFix(ctx context.Context, rec models.FixRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ID = 0
	if _, err := s.db.Insert(ctx, "fix_merge_requests", rec); err != nil {
		return fmt.Errorf("recording fix %s: %w", rec.DedupKey, err)
	}
	return nil
}

// RecentFixes returns fix merge requests created at or after since, oldest first.
func (s *Store) RecentFixes(ctx context.Context, since time.Time) ([]models.FixRecord, error) {
	var out []models.FixRecord
	err := s.db.Select(ctx, &out,
		`SELECT * FROM fix_merge_requests WHERE created_at >= ? ORDER BY created_at ASC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("listing recent fixes: %w", err)
	}
	return out, nil
}

// RecentPipelines returns the n most recent pipeline runs of a project,
// newest first.
func (s *Store) RecentPipelines(ctx context.Context, projectID string, n int) ([]models.PipelineRecord, error) {
	if n <= 0 {
		n = 100
	}
	var rows []models.PipelineRunRecord
	err := s.db.Select(ctx, &rows,
		`SELECT * FROM pipeline_runs WHERE project_id = ? ORDER BY created_at DESC LIMIT ?`, projectID, n)
	if err != nil {
		return nil, fmt.Errorf("listing pipelines of %s: %w", projectID, err)
	}
	out := make([]models.PipelineRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.PipelineRecord{
			ID:            r.PipelineID,
			Status:        r.Status,
			Ref:           r.Ref,
			Duration:      time.Duration(r.DurationSeconds * float64(time.Second)),
			CreatedAt:     r.CreatedAt,
			FailureReason: r.FailureReason,
		})
	}
	return out, nil
}

// Patterns returns the most frequent error patterns, optionally for one project.
func (s *Store) Patterns(ctx context.Context, projectID string, limit int) ([]models.ErrorPatternRecord, error) {
	if limit <= 0 {
		limit = topPatternLimit
	}
	var out []models.ErrorPatternRecord
	var err error
	if projectID == "" {
		err = s.db.Select(ctx, &out,
			`SELECT * FROM error_patterns ORDER BY occurrences DESC, last_seen DESC LIMIT ?`, limit)
	} else {
		err = s.db.Select(ctx, &out,
			`SELECT * FROM error_patterns WHERE project_id = ? ORDER BY occurrences DESC, last_seen DESC LIMIT ?`,
			projectID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing error patterns: %w", err)
	}
	return out, nil
}

type countRow struct {
	Key string `db:"k"`
	N   int    `db:"n"`
}

// Stats aggregates the dashboard view. An empty projectID covers all projects.
func (s *Store) Stats(ctx context.Context, projectID string) (*models.DashboardStats, error) {
	where, args := "", []interface{}{}
	if projectID != "" {
		where, args = " WHERE project_id = ?", []interface{}{projectID}
	}

	st := &models.DashboardStats{
		ByCategory: map[string]int{},
		ByLanguage: map[string]int{},
		ByOutcome:  map[string]int{},
	}
	counts := []struct {
		dest  *int
		query string
	}{
		{&st.TotalAnalyses, `SELECT COUNT(*) FROM pipeline_analyses` + where},
		{&st.FixesCreated, `SELECT COUNT(*) FROM fix_merge_requests` + where},
		{&st.PipelinesSeen, `SELECT COUNT(*) FROM pipeline_runs` + where},
	}
	for _, c := range counts {
		if err := s.db.Get(ctx, c.dest, c.query, args...); err != nil {
			return nil, fmt.Errorf("computing stats: %w", err)
		}
	}
	failedQuery := `SELECT COUNT(*) FROM pipeline_runs WHERE status = 'failed'`
	if projectID != "" {
		failedQuery += ` AND project_id = ?`
	}
	if err := s.db.Get(ctx, &st.PipelinesFailed, failedQuery, args...); err != nil {
		return nil, fmt.Errorf("computing stats: %w", err)
	}

	groups := []struct {
		col string
		dst map[string]int
	}{
		{"category", st.ByCategory},
		{"language", st.ByLanguage},
		{"outcome", st.ByOutcome},
	}
	for _, g := range groups {
		var rows []countRow
		q := fmt.Sprintf(`SELECT %s AS k, COUNT(*) AS n FROM pipeline_analyses%s GROUP BY %s`, g.col, where, g.col)
		if err := s.db.Select(ctx, &rows, q, args...); err != nil {
			return nil, fmt.Errorf("grouping analyses by %s: %w", g.col, err)
		}
		for _, r := range rows {
			g.dst[r.Key] = r.N
		}
	}

	top, err := s.Patterns(ctx, projectID, topPatternLimit)
	if err != nil {
		return nil, err
	}
	st.TopPatterns = top
	return st, nil
}

// Cleanup deletes analyses, pipeline runs and fix records older than cutoff.
// Error-pattern counters are kept; only patterns not seen since cutoff go.
func (s *Store) Cleanup(ctx context.Context, cutoff time.Time) error {
	cutoff = cutoff.UTC()
	stmts := []struct{ table, col string }{
		{"pipeline_analyses", "created_at"},
		{"pipeline_runs", "created_at"},
		{"fix_merge_requests", "created_at"},
		{"error_patterns", "last_seen"},
	}
	for _, st := range stmts {
		q := fmt.Sprintf(`DELETE FROM %s WHERE %s < ?`, st.table, st.col)
		if err := s.db.Exec(ctx, q, cutoff); err != nil {
			return fmt.Errorf("cleaning %s: %w", st.table, err)
		}
	}
	return nil
}
