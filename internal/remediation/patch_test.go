package remediation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

func TestNewTimeout(t *testing.T) {
	assert.Equal(t, 450, NewTimeout(300))
	assert.Equal(t, 5400, NewTimeout(3600))
	assert.Equal(t, 2, NewTimeout(1))
	assert.Equal(t, 450, NewTimeout(0))
}

func TestGeneratePatchDependencyTargets(t *testing.T) {
	tests := []struct {
		lang    models.Language
		details models.Details
		file    string
		op      models.PatchOperation
		content string
	}{
		{models.LanguagePython, models.Details{MissingModule: "pandas"}, "requirements.txt", models.PatchAppend, "pandas\n"},
		{models.LanguagePython, models.Details{MissingModule: "sklearn.model_selection"}, "requirements.txt", models.PatchAppend, "scikit-learn\n"},
		{models.LanguageJavaScript, models.Details{MissingModule: "lodash/fp"}, "package.json", models.PatchUpdate, `"lodash": "latest"`},
		{models.LanguageTypeScript, models.Details{MissingModule: "@types/node"}, "package.json", models.PatchUpdate, `"@types/node": "latest"`},
		{models.LanguageGo, models.Details{GoModule: "github.com/gin-gonic/gin"}, "go.mod", models.PatchAppend, "require github.com/gin-gonic/gin latest\n"},
		{models.LanguageRuby, models.Details{GemName: "rails"}, "Gemfile", models.PatchAppend, "gem 'rails'\n"},
		{models.LanguageRust, models.Details{MissingModule: "serde::Deserialize"}, "Cargo.toml", models.PatchUpdate, `serde = "*"`},
		{models.LanguagePHP, models.Details{MissingModule: "monolog/monolog"}, "composer.json", models.PatchUpdate, `"monolog/monolog": "*"`},
		{models.LanguageJava, models.Details{MissingModule: "com.google.gson", BuildTool: "gradle"}, "build.gradle", models.PatchUpdate, "implementation 'com.google:gson:+'"},
	}
	for _, tt := range tests {
		t.Run(string(tt.lang)+"/"+tt.file, func(t *testing.T) {
			p, ok := GeneratePatch(tt.lang, models.CategoryDependency, tt.details)
			require.True(t, ok)
			assert.Equal(t, tt.file, p.FilePath)
			assert.Equal(t, tt.op, p.Operation)
			assert.Equal(t, tt.content, p.Content)
			assert.False(t, p.Manual)
			assert.NotEmpty(t, p.CommitMessage)
		})
	}
}

func TestGeneratePatchMavenInsertsBeforeClosingTag(t *testing.T) {
	p, ok := GeneratePatch(models.LanguageJava, models.CategoryDependency, models.Details{MissingModule: "com.google.gson"})
	require.True(t, ok)
	assert.Equal(t, "pom.xml", p.FilePath)
	assert.True(t, p.InsertBefore)
	assert.Contains(t, p.Content, "<groupId>com.google</groupId>")
	assert.Contains(t, p.Content, "<artifactId>gson</artifactId>")
}

func TestGeneratePatchDependencyWithoutModule(t *testing.T) {
	_, ok := GeneratePatch(models.LanguagePython, models.CategoryDependency, models.Details{})
	assert.False(t, ok)
}

func TestGeneratePatchUnknownCombinationIsManual(t *testing.T) {
	p, ok := GeneratePatch(models.LanguageCSharp, models.CategoryDependency, models.Details{MissingModule: "Newtonsoft.Json"})
	require.True(t, ok)
	assert.True(t, p.Manual)
	assert.Equal(t, ".ai-fix/dependency.md", p.FilePath)
	assert.Equal(t, models.PatchCreate, p.Operation)

	p, ok = GeneratePatch(models.LanguageGo, models.CategoryFailedTest, models.Details{})
	require.True(t, ok)
	assert.True(t, p.Manual)
}

func TestGeneratePatchTimeoutSuggestion(t *testing.T) {
	p, ok := GeneratePatch(models.LanguagePython, models.CategoryTimeout, models.Details{CurrentTimeout: 300})
	require.True(t, ok)
	assert.Equal(t, TimeoutSuggestionPath, p.FilePath)
	assert.Equal(t, models.PatchCreate, p.Operation)

	var doc map[string]map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(p.Content), &doc))
	assert.Equal(t, "7m 30s", doc["default"]["timeout"])
	assert.Equal(t, 450, doc[".guardian-timeout-suggestion"]["new_timeout_seconds"])
	assert.Equal(t, 300, doc[".guardian-timeout-suggestion"]["current_timeout_seconds"])
}

func TestGeneratePatchConfiguration(t *testing.T) {
	p, ok := GeneratePatch(models.LanguagePython, models.CategoryConfiguration, models.Details{MissingEnvVar: "DATABASE_URL"})
	require.True(t, ok)
	assert.Equal(t, EnvExamplePath, p.FilePath)
	assert.Equal(t, "DATABASE_URL=your_value_here\n", p.Content)

	_, ok = GeneratePatch(models.LanguagePython, models.CategoryConfiguration, models.Details{})
	assert.False(t, ok)
}

func TestGeneratePatchSecurity(t *testing.T) {
	d := models.Details{VulnerablePackage: "django", VersionOperator: "<", VulnerableVersion: "3.2", CVEs: []string{"CVE-2023-1234"}}
	p, ok := GeneratePatch(models.LanguagePython, models.CategorySecurity, d)
	require.True(t, ok)
	assert.Equal(t, "requirements.txt", p.FilePath)
	assert.Equal(t, "django", p.ReplacePrefix)
	assert.Contains(t, p.Content, "CVE-2023-1234")

	p, ok = GeneratePatch(models.LanguageJavaScript, models.CategorySecurity, d)
	require.True(t, ok)
	assert.True(t, p.Manual)
}

func TestGeneratePatchSyntaxMissingColon(t *testing.T) {
	d := models.Details{ErrorFile: "/builds/group/app/src/main.py", ErrorLine: 3, ErrorCode: "def main()"}
	p, ok := GeneratePatch(models.LanguagePython, models.CategorySyntaxError, d)
	require.True(t, ok)
	assert.Equal(t, "src/main.py", p.FilePath)
	assert.Equal(t, 3, p.ReplaceLine)
	assert.Equal(t, "def main():", p.Content)
	assert.False(t, p.Manual)

	d.ErrorFile = "/usr/lib/python3/site-packages/x.py"
	p, ok = GeneratePatch(models.LanguagePython, models.CategorySyntaxError, d)
	require.True(t, ok)
	assert.True(t, p.Manual)
}

func TestGeneratePatchIsDeterministic(t *testing.T) {
	inputs := []struct {
		lang     models.Language
		category models.Category
		details  models.Details
	}{
		{models.LanguagePython, models.CategoryDependency, models.Details{MissingModule: "pandas"}},
		{models.LanguageJava, models.CategoryDependency, models.Details{MissingModule: "org.slf4j.Logger"}},
		{models.LanguageRuby, models.CategoryTimeout, models.Details{CurrentTimeout: 1200}},
		{models.LanguageGo, models.CategorySecurity, models.Details{CVEs: []string{"CVE-2024-0001"}}},
	}
	for _, in := range inputs {
		first, ok1 := GeneratePatch(in.lang, in.category, in.details)
		second, ok2 := GeneratePatch(in.lang, in.category, in.details)
		require.Equal(t, ok1, ok2)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%s/%s patch differs between calls (-first +second):\n%s", in.lang, in.category, diff)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0s", formatSeconds(0))
	assert.Equal(t, "1h 30m", formatSeconds(5400))
	assert.Equal(t, "7m 30s", formatSeconds(450))
}
