package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.yaml.in/yaml/v3"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var errorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#EF4444"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

var labelStyle = lipgloss.NewStyle().
	Bold(true).
	Width(16)

// levelStyle colours a risk level.
func levelStyle(l models.RiskLevel) lipgloss.Style {
	switch l {
	case models.RiskCritical:
		return errorStyle
	case models.RiskHigh:
		return warnStyle.Bold(true)
	case models.RiskMedium:
		return warnStyle
	default:
		return successStyle
	}
}

// field prints one aligned "label value" row.
func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", labelStyle.Render(label), value)
}

// structured writes v as JSON or YAML and reports whether the output flag
// asked for either. Text rendering is left to the caller.
func structured(w io.Writer, v any) (bool, error) {
	switch strings.ToLower(outputFormat) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(v)
	case "", "text":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q (valid: text, json, yaml)", outputFormat)
	}
}
