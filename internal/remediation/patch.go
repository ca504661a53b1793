package remediation

import (
	"fmt"
	"math"
	"path"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

const (
	// DefaultTimeoutSeconds is assumed when the log did not state the limit.
	DefaultTimeoutSeconds = 300

	TimeoutSuggestionPath = ".gitlab/timeout-fix-suggestion.yml"
	EnvExamplePath        = ".env.example"
	instructionsDir       = ".ai-fix"
)

// reCIBuildDir matches the checkout prefix GitLab runners use.
var reCIBuildDir = regexp.MustCompile(`^/builds/[^/]+/[^/]+/`)

// NewTimeout is the timeout proposed after a timeout failure: a fixed 50%
// increase, rounded to the nearest second.
func NewTimeout(current int) int {
	if current <= 0 {
		current = DefaultTimeoutSeconds
	}
	return int(math.Round(float64(current) * 1.5))
}

// GeneratePatch builds the file edit for a fixable failure. It is a pure
// function of its inputs. ok is false when the details lack what the
// category needs (for example a dependency failure with no module name).
// Language/category pairs without a mechanical fix produce a manual
// instructions patch.
func GeneratePatch(lang models.Language, category models.Category, d models.Details) (*models.Patch, bool) {
	switch category {
	case models.CategoryDependency:
		return dependencyPatch(lang, d)
	case models.CategorySyntaxError:
		return syntaxPatch(lang, d)
	case models.CategoryTimeout:
		return timeoutPatch(lang, d), true
	case models.CategorySecurity:
		return securityPatch(lang, d)
	case models.CategoryConfiguration:
		return configurationPatch(d)
	default:
		return manualPatch(category, lang,
			fmt.Sprintf("No automatic fix is available for %s failures in %s projects.", category, lang),
			"Review the job log and apply a fix by hand."), true
	}
}

func dependencyPatch(lang models.Language, d models.Details) (*models.Patch, bool) {
	module := d.MissingModule
	switch lang {
	case models.LanguageGo:
		module = firstNonEmpty(d.GoModule, module)
	case models.LanguageRuby:
		module = firstNonEmpty(d.GemName, module)
	}
	module = strings.TrimSpace(module)
	if module == "" {
		return nil, false
	}

	switch lang {
	case models.LanguagePython:
		pkg := PythonPackage(module)
		return &models.Patch{
			FilePath:      "requirements.txt",
			Operation:     models.PatchAppend,
			Content:       pkg + "\n",
			CommitMessage: fmt.Sprintf("fix(deps): add missing Python dependency %s", pkg),
			Description:   fmt.Sprintf("Detected missing Python module '%s'. Adding '%s' to requirements.txt will resolve this error.", module, pkg),
			Confidence:    0.95,
		}, true

	case models.LanguageJavaScript, models.LanguageTypeScript:
		pkg := npmPackage(module)
		if pkg == "" {
			return manualPatch(models.CategoryDependency, lang,
				fmt.Sprintf("The module '%s' is a relative import, not a package.", module),
				"Check that the file exists and the import path is correct."), true
		}
		manager := firstNonEmpty(d.PackageManager, "npm")
		return &models.Patch{
			FilePath:      "package.json",
			Operation:     models.PatchUpdate,
			Anchor:        `"dependencies": {`,
			Content:       fmt.Sprintf(`"%s": "latest"`, pkg),
			CommitMessage: fmt.Sprintf("fix(deps): add missing Node.js dependency %s", pkg),
			Description:   fmt.Sprintf("Detected missing Node.js module '%s'. Adding it to package.json (equivalent to '%s') will resolve this error.", pkg, installCommand(d, manager, pkg)),
			Confidence:    0.90,
		}, true

	case models.LanguageJava:
		group, artifact := MavenCoordinates(module)
		if d.BuildTool == "gradle" {
			return &models.Patch{
				FilePath:      "build.gradle",
				Operation:     models.PatchUpdate,
				Anchor:        "dependencies {",
				Content:       fmt.Sprintf("implementation '%s:%s:+'", group, artifact),
				CommitMessage: fmt.Sprintf("fix(deps): add missing Java dependency %s", module),
				Description:   fmt.Sprintf("Detected missing Java package '%s'. Adding a dependency to build.gradle will resolve this error.", module),
				Confidence:    0.85,
			}, true
		}
		return &models.Patch{
			FilePath:     "pom.xml",
			Operation:    models.PatchUpdate,
			Anchor:       "</dependencies>",
			InsertBefore: true,
			Content: fmt.Sprintf("<dependency>\n  <groupId>%s</groupId>\n  <artifactId>%s</artifactId>\n  <version>LATEST</version>\n</dependency>",
				group, artifact),
			CommitMessage: fmt.Sprintf("fix(deps): add missing Java dependency %s", module),
			Description:   fmt.Sprintf("Detected missing Java package '%s'. Adding a dependency to pom.xml will resolve this error.", module),
			Confidence:    0.85,
		}, true

	case models.LanguageGo:
		return &models.Patch{
			FilePath:      "go.mod",
			Operation:     models.PatchAppend,
			Content:       fmt.Sprintf("require %s latest\n", module),
			CommitMessage: fmt.Sprintf("fix(deps): add missing Go module %s", module),
			Description:   fmt.Sprintf("Detected missing Go module '%s'. Requiring it in go.mod (equivalent to 'go get %s') will resolve this error.", module, module),
			Confidence:    0.90,
		}, true

	case models.LanguageRuby:
		return &models.Patch{
			FilePath:      "Gemfile",
			Operation:     models.PatchAppend,
			Content:       fmt.Sprintf("gem '%s'\n", module),
			CommitMessage: fmt.Sprintf("fix(deps): add missing Ruby gem %s", module),
			Description:   fmt.Sprintf("Detected missing Ruby gem '%s'. Adding it to the Gemfile will resolve this error.", module),
			Confidence:    0.90,
		}, true

	case models.LanguageRust:
		crate := rustCrate(module)
		return &models.Patch{
			FilePath:      "Cargo.toml",
			Operation:     models.PatchUpdate,
			Anchor:        "[dependencies]",
			Content:       fmt.Sprintf(`%s = "*"`, crate),
			CommitMessage: fmt.Sprintf("fix(deps): add missing Rust crate %s", crate),
			Description:   fmt.Sprintf("Detected missing Rust crate '%s'. Adding it to Cargo.toml will resolve this error.", crate),
			Confidence:    0.85,
		}, true

	case models.LanguagePHP:
		if strings.Count(module, "/") == 1 && !strings.Contains(module, `\`) {
			return &models.Patch{
				FilePath:      "composer.json",
				Operation:     models.PatchUpdate,
				Anchor:        `"require": {`,
				Content:       fmt.Sprintf(`"%s": "*"`, module),
				CommitMessage: fmt.Sprintf("fix(deps): add missing Composer package %s", module),
				Description:   fmt.Sprintf("Detected missing Composer package '%s'. Adding it to composer.json will resolve this error.", module),
				Confidence:    0.80,
			}, true
		}
	}

	return manualPatch(models.CategoryDependency, lang,
		fmt.Sprintf("Detected missing %s dependency '%s'.", lang, module),
		fmt.Sprintf("Add %s to your %s dependency file.", module, lang)), true
}

func installCommand(d models.Details, manager, pkg string) string {
	if d.InstallCommand != "" {
		return d.InstallCommand + " " + pkg
	}
	return manager + " install " + pkg
}

func syntaxPatch(lang models.Language, d models.Details) (*models.Patch, bool) {
	if d.ErrorFile == "" {
		return nil, false
	}
	suggestion, fixed := SyntaxHint(d, "")
	file, relative := repoRelative(d.ErrorFile)
	if fixed != "" && relative && d.ErrorLine > 0 {
		return &models.Patch{
			FilePath:      file,
			Operation:     models.PatchUpdate,
			ReplaceLine:   d.ErrorLine,
			Anchor:        strings.TrimSpace(d.ErrorCode),
			Content:       fixed,
			CommitMessage: fmt.Sprintf("fix(syntax): %s in %s", strings.ToLower(suggestion), file),
			Description:   fmt.Sprintf("Identified a syntax error in %s at line %d: %s.", file, d.ErrorLine, suggestion),
			Confidence:    0.75,
		}, true
	}

	body := fmt.Sprintf("Syntax error in `%s` at line %d.", d.ErrorFile, d.ErrorLine)
	if d.ErrorCode != "" {
		body += fmt.Sprintf("\n\n```\n%s\n%s\n```", d.ErrorCode, d.ErrorIndicator)
	}
	p := manualPatch(models.CategorySyntaxError, lang, body, suggestion)
	p.Confidence = 0.75
	return p, true
}

// timeoutSuggestion is written as a hidden GitLab CI key so the file can be
// merged into .gitlab-ci.yml unchanged.
type timeoutSuggestion struct {
	Default struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"default"`
	Guardian struct {
		Language       string `yaml:"language"`
		CurrentSeconds int    `yaml:"current_timeout_seconds"`
		NewSeconds     int    `yaml:"new_timeout_seconds"`
		Reason         string `yaml:"reason"`
	} `yaml:".guardian-timeout-suggestion"`
}

func timeoutPatch(lang models.Language, d models.Details) *models.Patch {
	current := d.CurrentTimeout
	if current <= 0 {
		current = DefaultTimeoutSeconds
	}
	next := NewTimeout(current)

	var s timeoutSuggestion
	s.Default.Timeout = formatSeconds(next)
	s.Guardian.Language = string(lang)
	s.Guardian.CurrentSeconds = current
	s.Guardian.NewSeconds = next
	s.Guardian.Reason = "job exceeded its time limit"

	body, err := yaml.Marshal(&s)
	if err != nil {
		// Marshalling a fixed struct of strings and ints cannot fail.
		body = []byte(fmt.Sprintf("default:\n  timeout: %s\n", s.Default.Timeout))
	}
	header := "# Timeout fix suggestion\n# Merge the default timeout into .gitlab-ci.yml or set it on the failing job.\n"

	return &models.Patch{
		FilePath:      TimeoutSuggestionPath,
		Operation:     models.PatchCreate,
		Content:       header + string(body),
		CommitMessage: fmt.Sprintf("fix(ci): suggest raising job timeout to %ds", next),
		Description:   fmt.Sprintf("Suggest increasing the timeout from %ds to %ds to prevent job failures.", current, next),
		Confidence:    0.90,
	}
}

func securityPatch(lang models.Language, d models.Details) (*models.Patch, bool) {
	pkg := strings.TrimSpace(d.VulnerablePackage)
	reason := "security vulnerabilities"
	if len(d.CVEs) > 0 {
		reason = strings.Join(d.CVEs, ", ")
	}

	if pkg != "" && lang == models.LanguagePython {
		return &models.Patch{
			FilePath:      "requirements.txt",
			Operation:     models.PatchUpdate,
			ReplacePrefix: pkg,
			Content:       fmt.Sprintf("%s  # upgraded: %s", pkg, reason),
			CommitMessage: fmt.Sprintf("fix(security): upgrade vulnerable dependency %s", pkg),
			Description:   fmt.Sprintf("Detected security vulnerabilities in %s %s. Unpinning it so the latest release is installed (%s).", pkg, d.VulnerableVersion, reason),
			Confidence:    0.85,
		}, true
	}
	if pkg == "" && len(d.CVEs) == 0 {
		return nil, false
	}

	subject := pkg
	if subject == "" {
		subject = "the affected dependencies"
	}
	p := manualPatch(models.CategorySecurity, lang,
		fmt.Sprintf("Security scan reported %s in %s.", reason, subject),
		fmt.Sprintf("Upgrade %s to a release that fixes the reported vulnerabilities.", subject))
	p.Confidence = 0.85
	return p, true
}

func configurationPatch(d models.Details) (*models.Patch, bool) {
	name := strings.TrimSpace(d.MissingEnvVar)
	if name == "" {
		return nil, false
	}
	return &models.Patch{
		FilePath:      EnvExamplePath,
		Operation:     models.PatchAppend,
		Content:       name + "=your_value_here\n",
		CommitMessage: fmt.Sprintf("docs(config): document missing environment variable %s", name),
		Description:   fmt.Sprintf("Detected missing environment variable '%s'. Adding it to .env.example for documentation.", name),
		Confidence:    0.80,
	}, true
}

// manualPatch documents a fix that cannot be applied mechanically.
func manualPatch(category models.Category, lang models.Language, problem, instruction string) *models.Patch {
	content := fmt.Sprintf("# Manual fix required: %s\n\n**Language:** %s\n\n## Problem\n\n%s\n\n## Suggested fix\n\n%s\n",
		category.Title(), lang, problem, instruction)
	return &models.Patch{
		FilePath:      path.Join(instructionsDir, string(category)+".md"),
		Operation:     models.PatchCreate,
		Content:       content,
		CommitMessage: fmt.Sprintf("docs: add manual fix instructions for %s failure", category),
		Description:   instruction,
		Confidence:    0.70,
		Manual:        true,
	}
}

// repoRelative converts a path from a CI log into a repository path.
// relative is false when the path cannot be mapped into the repository.
func repoRelative(file string) (string, bool) {
	file = strings.TrimSpace(file)
	if loc := reCIBuildDir.FindStringIndex(file); loc != nil {
		file = file[loc[1]:]
	}
	file = strings.TrimPrefix(file, "./")
	if file == "" || strings.HasPrefix(file, "/") || strings.Contains(file, "..") ||
		strings.Contains(file, "site-packages") || strings.HasPrefix(file, "<") {
		return file, false
	}
	return path.Clean(file), true
}

func formatSeconds(s int) string {
	h, m, sec := s/3600, (s%3600)/60, s%60
	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if sec > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", sec))
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
