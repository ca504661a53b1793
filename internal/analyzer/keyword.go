package analyzer

import (
	"regexp"
	"strings"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

type keywordRule struct {
	category    models.Category
	action      models.Action
	confidence  float64
	explanation string
	solution    string
	tokens      []string
	patterns    []*regexp.Regexp
}

func (r keywordRule) matches(lower string) bool {
	for _, t := range r.tokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	for _, re := range r.patterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// keywordRules are evaluated top to bottom; the first match wins. The order
// is load-bearing: a log mentioning both a timeout and a failed test is a
// timeout.
var keywordRules = []keywordRule{
	{
		category:    models.CategoryTimeout,
		action:      models.ActionAutomaticFix,
		confidence:  0.8,
		explanation: "The job failed due to a timeout",
		solution:    "Increase the timeout value in .gitlab-ci.yml",
		tokens:      []string{"timeout", "timed out"},
	},
	{
		category:    models.CategoryTransient,
		action:      models.ActionRetry,
		confidence:  0.7,
		explanation: "Network connectivity error",
		solution:    "Network connection failure. Retry is recommended.",
		tokens:      []string{"network", "connection"},
	},
	{
		category:    models.CategorySyntaxError,
		action:      models.ActionAutomaticFix,
		confidence:  0.75,
		explanation: "Syntax error in code",
		solution:    "Fix the syntax error in the code",
		tokens: []string{
			"syntaxerror", "syntax error", "unexpected eof", "indentationerror",
			"taberror", "unexpected token", "parse error",
		},
	},
	{
		category:    models.CategoryDependency,
		action:      models.ActionAutomaticFix,
		confidence:  0.85,
		explanation: "Missing module or dependency",
		solution:    "Install the missing dependency and add it to the project's dependency manifest",
		tokens: []string{
			"modulenotfounderror", "no module named", "import error", "importerror",
			"cannot find module", "cannot find package", "no required module provides",
			"could not find gem", "could not find '", "can't find crate", "unresolved import",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`package [\w.]+ does not exist`),
			regexp.MustCompile(`the type or namespace name '[^']+' could not be found`),
			regexp.MustCompile(`class ['"][^'"]+['"] not found`),
		},
	},
	{
		category:    models.CategorySecurity,
		action:      models.ActionAutomaticFix,
		confidence:  0.75,
		explanation: "Security vulnerability detected in dependencies",
		solution:    "Update vulnerable dependencies to secure versions",
		tokens:      []string{"vulnerabilit", "security", "cve-"},
	},
	{
		category:    models.CategoryConfiguration,
		action:      models.ActionAutomaticFix,
		confidence:  0.7,
		explanation: "Configuration or environment variable error",
		solution:    "Fix configuration or add missing environment variables",
		tokens:      []string{"keyerror", "environment variable", "config"},
	},
	{
		category:    models.CategoryFailedTest,
		action:      models.ActionManualFix,
		confidence:  0.6,
		explanation: "Test failures detected",
		solution:    "Review the failing tests and fix the code",
		tokens:      []string{"test failed", "tests failed", "assertion", "test error"},
	},
}

var otherRule = keywordRule{
	category:    models.CategoryOther,
	action:      models.ActionManualFix,
	confidence:  0.3,
	explanation: "Error not automatically identified",
	solution:    "Manually review the logs to identify the issue",
}

// KeywordClassify is the deterministic classifier tier. It never consults
// the oracle and always returns a complete analysis.
func KeywordClassify(logText string, lang models.Language) models.ErrorAnalysis {
	lower := strings.ToLower(logText)
	rule := otherRule
	for _, r := range keywordRules {
		if r.matches(lower) {
			rule = r
			break
		}
	}
	return models.ErrorAnalysis{
		Language:          lang,
		Category:          rule.category,
		Explanation:       rule.explanation,
		SuggestedSolution: rule.solution,
		RecommendedAction: rule.action,
		Confidence:        rule.confidence,
		Details:           ExtractDetails(logText, lang).Scoped(rule.category),
		Source:            models.SourceKeyword,
	}
}
