package analyzer

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the structured-output instruction for the oracle.
// window should already be bounded by FailureWindow.
func BuildPrompt(jobName, window string) string {
	return fmt.Sprintf(`Analyze the following CI/CD log from a job named '%s' that has failed.

Provide your analysis in JSON format with exactly this structure:
{
    "error_explanation": "brief description of the error (maximum 2 sentences)",
    "error_category": "one of: transient, syntax_error, failed_test, dependency, configuration, timeout, security, other",
    "recommended_action": "one of: retry, automatic_fix, manual_fix",
    "suggested_solution": "specific and actionable solution",
    "confidence": 0.0,
    "error_details": {}
}

Error categories:
- transient: network errors, connection issues, intermittent failures
- syntax_error: code syntax errors, indentation errors
- failed_test: unit or integration tests failing
- dependency: missing packages, incompatible versions (like 'ModuleNotFoundError')
- configuration: missing environment variables, incorrect config files
- timeout: job exceeded time limit
- security: vulnerable dependencies, CVEs detected
- other: any other type of error

"confidence" is a number between 0 and 1.

For automatic_fix, include relevant details in error_details like:
- For syntax_error: error_file, error_line, error_code
- For dependency: missing_module
- For timeout: current_timeout
- For security: vulnerable_package, vulnerable_version, cves
- For configuration: missing_env_var

IMPORTANT: Respond ONLY with the JSON, no additional text or backticks.

Job log:
%s
`, sanitizeJobName(jobName), window)
}

func sanitizeJobName(name string) string {
	name = strings.ReplaceAll(name, "'", "")
	name = strings.ReplaceAll(name, "\n", " ")
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}

// stripCodeFences removes a Markdown fence (```json … ```) that models often
// wrap around JSON despite being told not to.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return s
	}
	body := strings.TrimSpace(parts[1])
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	return strings.TrimSpace(body)
}

// extractObject returns the outermost {...} span when the model added prose
// around the JSON object.
func extractObject(s string) string {
	if strings.HasPrefix(s, "{") {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
