package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

func TestExtractDetailsSyntaxFrame(t *testing.T) {
	log := "Traceback (most recent call last):\n" +
		"  File \"app/main.py\", line 12\n" +
		"    def handler(event)\n" +
		"                      ^\n" +
		"SyntaxError: invalid syntax"

	d := ExtractDetails(log, models.LanguagePython)
	assert.Equal(t, "app/main.py", d.ErrorFile)
	assert.Equal(t, 12, d.ErrorLine)
	assert.Equal(t, "def handler(event)", d.ErrorCode)
	assert.Contains(t, d.ErrorIndicator, "^")
}

func TestExtractDetailsCodeComesFromFirstFrame(t *testing.T) {
	log := "Traceback (most recent call last):\n" +
		"  File \"main.py\", line 1, in <module>\n" +
		"    import app\n" +
		"  File \"/srv/app.py\", line 12\n" +
		"    def foo()\n" +
		"            ^\n" +
		"SyntaxError: expected ':'"

	d := ExtractDetails(log, models.LanguagePython)
	assert.Equal(t, "main.py", d.ErrorFile)
	assert.Equal(t, 1, d.ErrorLine)
	assert.Equal(t, "import app", d.ErrorCode)
	assert.Empty(t, d.ErrorIndicator)
}

func TestExtractDetailsFrameAtEndOfLog(t *testing.T) {
	d := ExtractDetails(`File "x.py", line 3`, models.LanguagePython)
	assert.Equal(t, 3, d.ErrorLine)
	assert.Empty(t, d.ErrorCode)
}

func TestExtractDetailsMissingModule(t *testing.T) {
	tests := []struct {
		name string
		log  string
		lang models.Language
		want string
	}{
		{"python", "ModuleNotFoundError: No module named 'pandas'", models.LanguagePython, "pandas"},
		{"javascript", "Error: Cannot find module 'express'", models.LanguageJavaScript, "express"},
		{"java", "error: package org.junit does not exist", models.LanguageJava, "org.junit"},
		{"go", `cannot find package "github.com/gin-gonic/gin" in any of`, models.LanguageGo, "github.com/gin-gonic/gin"},
		{"ruby", "Could not find 'rails' (>= 0)", models.LanguageRuby, "rails"},
		{"cross-language fallback", "No module named 'yaml'", models.LanguageGo, "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDetails(tt.log, tt.lang).MissingModule)
		})
	}
}

func TestExtractDetailsTimeout(t *testing.T) {
	d := ExtractDetails("ERROR: Job failed: execution took longer than timeout of 3600 seconds", models.LanguagePython)
	assert.Equal(t, 3600, d.CurrentTimeout)
}

func TestExtractDetailsCollectsAllCVEs(t *testing.T) {
	log := "found CVE-2023-1234 in requests\nfound CVE-2024-56789 in urllib3\nagain CVE-2023-1234"
	d := ExtractDetails(log, models.LanguagePython)
	assert.Equal(t, []string{"CVE-2023-1234", "CVE-2024-56789"}, d.CVEs)
}

func TestExtractDetailsVulnerablePackage(t *testing.T) {
	d := ExtractDetails("requests<2.31.0 has known vulnerabilities", models.LanguagePython)
	assert.Equal(t, "requests", d.VulnerablePackage)
	assert.Equal(t, "<", d.VersionOperator)
	assert.Equal(t, "2.31.0", d.VulnerableVersion)
}

func TestExtractDetailsEnvVar(t *testing.T) {
	d := ExtractDetails("KeyError: 'DATABASE_URL'", models.LanguagePython)
	assert.Equal(t, "DATABASE_URL", d.MissingEnvVar)

	d = ExtractDetails("missing environment variable: API_TOKEN", models.LanguagePython)
	assert.Equal(t, "API_TOKEN", d.MissingEnvVar)
}

func TestExtractDetailsNoMatchesIsEmpty(t *testing.T) {
	d := ExtractDetails("everything is fine", models.LanguagePython)
	assert.True(t, d.IsEmpty())
}
