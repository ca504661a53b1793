package analyzer

import (
	"regexp"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

// maxDetectBytes bounds the log tail scanned for language signatures.
const maxDetectBytes = 256 << 10

type languageSignatures struct {
	lang     models.Language
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// signatures cover file extensions, build tools, runtime error names and
// test frameworks. Each pattern counts at most once per detection.
var signatures = []languageSignatures{
	{models.LanguagePython, compileAll(
		`\.py\b`,
		`\bpip3?\b`,
		`requirements\.txt`,
		`traceback \(most recent call last\)`,
		`modulenotfounderror`,
		`\bimporterror\b`,
		`\bsyntaxerror\b`,
		`\bindentationerror\b`,
		`\bpytest\b`,
		`\bpython3?\b`,
		`setup\.py|pyproject\.toml`,
	)},
	{models.LanguageJavaScript, compileAll(
		`\.jsx?\b`,
		`\bnpm\b`,
		`\byarn\b`,
		`package\.json`,
		`node_modules`,
		`cannot find module`,
		`\bnode(js)?\b`,
		`\bjest\b|\bmocha\b`,
		`\breferenceerror\b`,
	)},
	{models.LanguageTypeScript, compileAll(
		`\.tsx?\b`,
		`\btserror\b`,
		`error ts\d+`,
		`tsconfig\.json`,
		`\btsc\b`,
		`ts-node`,
	)},
	{models.LanguageJava, compileAll(
		`\.java\b`,
		`\bmvn\b|\bmaven\b`,
		`\bgradle\b`,
		`pom\.xml`,
		`package [\w.]+ does not exist`,
		`java\.lang\.\w+`,
		`exception in thread`,
		`\bjunit\b`,
	)},
	{models.LanguageGo, compileAll(
		`\.go\b`,
		`\bgo (build|test|run|mod|get|vet)\b`,
		`\bgo\.(mod|sum)\b`,
		`cannot find package`,
		`\bpanic:`,
		`goroutine \d+`,
		`\bgofmt\b|golangci`,
	)},
	{models.LanguageRuby, compileAll(
		`\.rb\b`,
		`\bgem\b`,
		`\bgemfile\b`,
		`\bbundler?\b`,
		`could not find (gem )?'`,
		`\brspec\b`,
		`\brake\b`,
		`\bloaderror\b`,
	)},
	{models.LanguagePHP, compileAll(
		`\.php\b`,
		`\bcomposer\b`,
		`fatal error`,
		`\bphpunit\b`,
		`\bphp\b`,
	)},
	{models.LanguageRust, compileAll(
		`\.rs\b`,
		`\bcargo\b`,
		`error\[e\d{4}\]`,
		`cargo\.toml`,
		`\brustc\b`,
		`\bcrate\b`,
	)},
	{models.LanguageCSharp, compileAll(
		`\.cs\b`,
		`error cs\d{4}`,
		`\bdotnet\b`,
		`\.csproj\b`,
		`\bnuget\b`,
		`\bmsbuild\b`,
	)},
}

// DetectLanguage scores jobName and logText against every language's
// signatures and returns the strict winner. Ties and empty input return
// models.DefaultLanguage.
func DetectLanguage(logText, jobName string) models.Language {
	if len(logText) > maxDetectBytes {
		logText = logText[len(logText)-maxDetectBytes:]
	}
	text := jobName + "\n" + logText

	best := models.DefaultLanguage
	bestScore := 0
	tied := false
	for _, sig := range signatures {
		score := 0
		for _, re := range sig.patterns {
			if re.MatchString(text) {
				score++
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = sig.lang, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return models.DefaultLanguage
	}
	return best
}

// LanguageScores returns the per-language signature score, for diagnostics.
func LanguageScores(logText, jobName string) map[models.Language]int {
	if len(logText) > maxDetectBytes {
		logText = logText[len(logText)-maxDetectBytes:]
	}
	text := jobName + "\n" + logText
	out := make(map[models.Language]int, len(signatures))
	for _, sig := range signatures {
		for _, re := range sig.patterns {
			if re.MatchString(text) {
				out[sig.lang]++
			}
		}
	}
	return out
}
