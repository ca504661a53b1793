package models

import "strings"

// Language is the programming language detected for a failing job.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageJava       Language = "java"
	LanguageGo         Language = "go"
	LanguageRuby       Language = "ruby"
	LanguagePHP        Language = "php"
	LanguageRust       Language = "rust"
	LanguageCSharp     Language = "csharp"
)

// DefaultLanguage is returned when detection finds no clear winner.
const DefaultLanguage = LanguagePython

// Languages lists every supported language in detection order.
var Languages = []Language{
	LanguagePython,
	LanguageJavaScript,
	LanguageTypeScript,
	LanguageJava,
	LanguageGo,
	LanguageRuby,
	LanguagePHP,
	LanguageRust,
	LanguageCSharp,
}

func (l Language) String() string { return string(l) }

// ParseLanguage maps free-form language names to a Language.
// Unrecognised values map to DefaultLanguage.
func ParseLanguage(raw string) Language {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "python", "py":
		return LanguagePython
	case "javascript", "js", "node", "nodejs":
		return LanguageJavaScript
	case "typescript", "ts":
		return LanguageTypeScript
	case "java", "kotlin":
		return LanguageJava
	case "go", "golang":
		return LanguageGo
	case "ruby", "rb":
		return LanguageRuby
	case "php":
		return LanguagePHP
	case "rust", "rs":
		return LanguageRust
	case "csharp", "c#", "cs", "dotnet":
		return LanguageCSharp
	default:
		return DefaultLanguage
	}
}

// Category is the canonical failure taxonomy.
type Category string

const (
	CategoryTransient     Category = "transient"
	CategorySyntaxError   Category = "syntax_error"
	CategoryFailedTest    Category = "failed_test"
	CategoryDependency    Category = "dependency"
	CategoryConfiguration Category = "configuration"
	CategoryTimeout       Category = "timeout"
	CategorySecurity      Category = "security"
	CategoryOther         Category = "other"
)

func (c Category) String() string { return string(c) }

// Title returns the category as human-readable words, e.g. "Syntax Error".
func (c Category) Title() string {
	parts := strings.Split(string(c), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// ParseCategory normalises model- or user-supplied category strings.
// Aliases such as "network" collapse onto their canonical category and
// anything unrecognised becomes CategoryOther.
func ParseCategory(raw string) Category {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "transient", "network", "flaky", "intermittent":
		return CategoryTransient
	case "syntax_error", "syntax", "syntaxerror", "compile_error":
		return CategorySyntaxError
	case "failed_test", "test", "test_failure", "tests":
		return CategoryFailedTest
	case "dependency", "dependencies", "missing_dependency", "import_error":
		return CategoryDependency
	case "configuration", "config", "environment":
		return CategoryConfiguration
	case "timeout", "timed_out":
		return CategoryTimeout
	case "security", "vulnerability", "cve":
		return CategorySecurity
	default:
		return CategoryOther
	}
}

// Action is the remediation recommended by the classifier.
type Action string

const (
	ActionRetry        Action = "retry"
	ActionAutomaticFix Action = "automatic_fix"
	ActionManualFix    Action = "manual_fix"
)

func (a Action) String() string { return string(a) }

// ParseAction normalises recommended-action strings. The legacy
// "manual_suggestion" spelling maps to ActionManualFix, as does anything unknown.
func ParseAction(raw string) Action {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "retry":
		return ActionRetry
	case "automatic_fix", "auto_fix", "automatic":
		return ActionAutomaticFix
	default:
		return ActionManualFix
	}
}
