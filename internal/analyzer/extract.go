package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

var (
	reFileLine   = regexp.MustCompile(`File "([^"]+)", line (\d+)`)
	reTimeout    = regexp.MustCompile(`(?i)timeout.*?(\d+)`)
	reCVE        = regexp.MustCompile(`CVE-\d{4}-\d+`)
	reVulnerable = regexp.MustCompile(`(?i)(\w+)\s*(<=|>=|==|<|>)\s*([\d.]+).*vulnerabilit`)
	reKeyError   = regexp.MustCompile(`KeyError: '([^']+)'`)
	reEnvVar     = regexp.MustCompile(`(?i:environment variable).*?\b([A-Z][A-Z0-9_]+)\b`)
)

// missingModulePatterns are tried for the detected language first and then
// for every other language in this order.
var missingModulePatterns = []struct {
	lang models.Language
	re   *regexp.Regexp
}{
	{models.LanguagePython, regexp.MustCompile(`No module named '([^']+)'`)},
	{models.LanguageJavaScript, regexp.MustCompile(`Cannot find module '([^']+)'`)},
	{models.LanguageTypeScript, regexp.MustCompile(`Cannot find module '([^']+)'`)},
	{models.LanguageJava, regexp.MustCompile(`package ([a-zA-Z0-9\.]+) does not exist`)},
	{models.LanguageGo, regexp.MustCompile(`cannot find package "([^"]+)"`)},
	{models.LanguageGo, regexp.MustCompile(`no required module provides package ([^\s;]+)`)},
	{models.LanguageRuby, regexp.MustCompile(`Could not find (?:gem )?'([^'\s]+)`)},
	{models.LanguagePHP, regexp.MustCompile(`Class ['"]([^'"]+)['"] not found`)},
	{models.LanguageRust, regexp.MustCompile("can't find crate for `([^`]+)`")},
	{models.LanguageRust, regexp.MustCompile("unresolved import `([^`:]+)")},
	{models.LanguageCSharp, regexp.MustCompile(`The type or namespace name '([^']+)' could not be found`)},
}

// ExtractDetails runs every extraction independently. A pattern that does
// not match leaves its field empty.
func ExtractDetails(logText string, lang models.Language) models.Details {
	var d models.Details

	if m := reFileLine.FindStringSubmatchIndex(logText); m != nil {
		d.ErrorFile = logText[m[2]:m[3]]
		if n, err := strconv.Atoi(logText[m[4]:m[5]]); err == nil {
			d.ErrorLine = n
			d.ErrorCode, d.ErrorIndicator = frameSource(logText[m[1]:])
		}
	}

	d.MissingModule = MissingModule(logText, lang)

	if m := reTimeout.FindStringSubmatch(logText); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			d.CurrentTimeout = n
		}
	}

	if cves := reCVE.FindAllString(logText, -1); len(cves) > 0 {
		seen := make(map[string]bool, len(cves))
		for _, c := range cves {
			if !seen[c] {
				seen[c] = true
				d.CVEs = append(d.CVEs, c)
			}
		}
	}

	if m := reVulnerable.FindStringSubmatch(logText); m != nil {
		d.VulnerablePackage = m[1]
		d.VersionOperator = m[2]
		d.VulnerableVersion = m[3]
	}

	if m := reKeyError.FindStringSubmatch(logText); m != nil {
		d.MissingEnvVar = m[1]
	} else if m := reEnvVar.FindStringSubmatch(logText); m != nil {
		d.MissingEnvVar = m[1]
	}

	return d
}

// MissingModule returns the first missing module/package name found,
// preferring lang's own patterns.
func MissingModule(logText string, lang models.Language) string {
	for _, p := range missingModulePatterns {
		if p.lang != lang {
			continue
		}
		if m := p.re.FindStringSubmatch(logText); m != nil {
			return m[1]
		}
	}
	for _, p := range missingModulePatterns {
		if p.lang == lang {
			continue
		}
		if m := p.re.FindStringSubmatch(logText); m != nil {
			return m[1]
		}
	}
	return ""
}

// frameSource returns the source line printed under a traceback frame and
// the caret indicator beneath it, if any. rest starts right after the
// frame's "line N" text.
func frameSource(rest string) (code, indicator string) {
	lines := strings.Split(rest, "\n")
	// lines[0] is the remainder of the frame line (", in <module>").
	if len(lines) < 2 {
		return "", ""
	}
	code = strings.TrimSpace(lines[1])
	if len(lines) > 2 && strings.Contains(lines[2], "^") {
		indicator = strings.TrimRight(lines[2], "\r")
	}
	return code, indicator
}
