package remediation

import (
	"strconv"
	"strings"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

var blockKeywords = []string{"def ", "if ", "elif ", "else", "for ", "while ", "class ", "try", "except", "with "}

// syntaxPatterns map log phrases to a generic suggestion.
var syntaxPatterns = []struct {
	phrase     string
	suggestion string
}{
	{"unexpected eof", "Add missing closing bracket or quote"},
	{"invalid syntax", "Check for missing colons, brackets, or quotes"},
	{"indentationerror", "Fix indentation to match Python standards (4 spaces)"},
	{"taberror", "Replace tabs with 4 spaces"},
}

// SyntaxHint inspects the failing source line and returns a suggestion and,
// when the fix is mechanical, the corrected line.
func SyntaxHint(d models.Details, logText string) (suggestion, fixed string) {
	suggestion = "Review syntax on line " + strconv.Itoa(d.ErrorLine)
	lower := strings.ToLower(logText)
	for _, p := range syntaxPatterns {
		if strings.Contains(lower, p.phrase) {
			suggestion = p.suggestion
			break
		}
	}

	code := strings.TrimSpace(d.ErrorCode)
	if code == "" {
		return suggestion, ""
	}
	if missingColon(code) {
		return "Add missing colon at end of line", code + ":"
	}
	if strings.Count(code, `"`)%2 != 0 || strings.Count(code, "'")%2 != 0 {
		return "Fix unclosed string quote", ""
	}
	return suggestion, ""
}

func missingColon(code string) bool {
	if strings.Contains(code, ":") {
		return false
	}
	for _, kw := range blockKeywords {
		if strings.HasPrefix(code, kw) || code == strings.TrimSpace(kw) {
			return true
		}
	}
	return false
}
