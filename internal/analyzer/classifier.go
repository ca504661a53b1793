package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

const (
	// DefaultOracleTimeout bounds a single oracle call.
	DefaultOracleTimeout = 30 * time.Second

	maxExplanationLen = 500
	maxRawLogged      = 2000
	notAvailable      = "Not available"
)

// Oracle is a text-completion backend. Its output is untrusted.
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classifier turns a failed job's log into an ErrorAnalysis, preferring the
// oracle and falling back to keyword rules.
type Classifier struct {
	oracle  Oracle
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithOracleTimeout overrides DefaultOracleTimeout.
func WithOracleTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for oracle diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClassifier returns a Classifier. A nil oracle means every call uses the
// keyword tier.
func NewClassifier(oracle Oracle, opts ...Option) *Classifier {
	c := &Classifier{
		oracle:  oracle,
		timeout: DefaultOracleTimeout,
		logger:  slog.Default().With("component", "classifier"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify never fails: oracle problems degrade to KeywordClassify and are
// recorded in ErrorAnalysis.OracleErr. Dependency failures are enriched
// and details are narrowed to the category's fields before returning.
func (c *Classifier) Classify(ctx context.Context, logText, jobName string) models.ErrorAnalysis {
	logText = StripANSI(logText)
	lang := DetectLanguage(logText, jobName)

	analysis, err := c.classifyWithOracle(ctx, logText, jobName, lang)
	if err != nil {
		var failure *OracleFailure
		if errors.As(err, &failure) && failure.Raw != "" {
			c.logger.Warn("classifier: unparseable oracle response",
				"job", jobName, "error", failure.Err, "raw", truncate(failure.Raw, maxRawLogged))
		} else {
			c.logger.Debug("classifier: oracle tier skipped", "job", jobName, "error", err)
		}
		analysis = KeywordClassify(logText, lang)
		analysis.OracleErr = err
	}

	Enrich(&analysis, logText)
	analysis.Details = analysis.Details.Scoped(analysis.Category)
	return analysis
}

// classifyWithOracle is the oracle tier. Any error it returns is an
// *OracleFailure.
func (c *Classifier) classifyWithOracle(ctx context.Context, logText, jobName string, lang models.Language) (models.ErrorAnalysis, error) {
	if c.oracle == nil {
		return models.ErrorAnalysis{}, &OracleFailure{Kind: ErrOracleUnavailable}
	}

	raw, err := c.generate(ctx, BuildPrompt(jobName, FailureWindow(logText)))
	if err != nil {
		return models.ErrorAnalysis{}, err
	}

	analysis, err := parseOracleResponse(raw, lang)
	if err != nil {
		return models.ErrorAnalysis{}, &OracleFailure{Kind: ErrOracleMalformed, Err: err, Raw: raw}
	}
	if analysis.Details.IsEmpty() {
		analysis.Details = ExtractDetails(logText, lang)
	}
	return analysis, nil
}

// generate runs the oracle call in its own goroutine under a hard deadline.
// The result channel is buffered so a late answer never blocks the sender.
func (c *Classifier) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.oracle.Generate(ctx, prompt)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return "", &OracleFailure{Kind: ErrOracleTimeout, Err: r.err}
			}
			return "", &OracleFailure{Kind: ErrOracleUnavailable, Err: r.err}
		}
		return r.text, nil
	case <-ctx.Done():
		return "", &OracleFailure{Kind: ErrOracleTimeout, Err: ctx.Err()}
	}
}

// parseOracleResponse validates the oracle's JSON and backfills missing
// required keys with safe defaults.
func parseOracleResponse(raw string, lang models.Language) (models.ErrorAnalysis, error) {
	body := extractObject(stripCodeFences(raw))
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return models.ErrorAnalysis{}, fmt.Errorf("decoding oracle json: %w", err)
	}
	if m == nil {
		return models.ErrorAnalysis{}, fmt.Errorf("decoding oracle json: not an object")
	}

	a := models.ErrorAnalysis{
		Language:          lang,
		Category:          models.ParseCategory(stringField(m, "error_category")),
		Explanation:       truncate(orDefault(stringField(m, "error_explanation"), notAvailable), maxExplanationLen),
		SuggestedSolution: orDefault(stringField(m, "suggested_solution"), notAvailable),
		RecommendedAction: models.ParseAction(stringField(m, "recommended_action")),
		Confidence:        confidenceField(m["confidence"]),
		Source:            models.SourceOracle,
	}
	if details, ok := m["error_details"].(map[string]any); ok {
		a.Details = models.DetailsFromMap(details)
	}
	return a, nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// confidenceField accepts 0..1 or a percentage and clamps to [0,1].
// Missing or invalid values default to 0.5.
func confidenceField(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(x), "%"), 64)
		if err != nil {
			return 0.5
		}
		f = parsed
	default:
		return 0.5
	}
	if f > 1 {
		f /= 100
	}
	return max(0, min(f, 1))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
