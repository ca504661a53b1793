package analyzer

import (
	"regexp"
	"strings"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

var (
	reGoPackage   = regexp.MustCompile(`cannot find package "([^"]+)"`)
	reGoProvides  = regexp.MustCompile(`no required module provides package ([^\s;]+)`)
	reGemNotFound = regexp.MustCompile(`Could not find (?:gem )?'([^'\s]+)`)
	reRubyLoad    = regexp.MustCompile(`cannot load such file -- ([\w/\-]+)`)
)

// Enrich adds language-specific details to dependency failures. It only
// fills empty fields.
func Enrich(a *models.ErrorAnalysis, logText string) {
	if a.Category != models.CategoryDependency {
		return
	}
	lower := strings.ToLower(logText)
	var extra models.Details

	switch a.Language {
	case models.LanguageJavaScript, models.LanguageTypeScript:
		switch {
		case strings.Contains(lower, "yarn"):
			extra.PackageManager, extra.InstallCommand = "yarn", "yarn add"
		case strings.Contains(lower, "pnpm"):
			extra.PackageManager, extra.InstallCommand = "pnpm", "pnpm add"
		default:
			extra.PackageManager, extra.InstallCommand = "npm", "npm install"
		}
		extra.ConfigFile = "package.json"

	case models.LanguageJava:
		if strings.Contains(lower, "gradle") {
			extra.BuildTool, extra.ConfigFile = "gradle", "build.gradle"
		} else {
			extra.BuildTool, extra.ConfigFile = "maven", "pom.xml"
		}

	case models.LanguageGo:
		if m := reGoPackage.FindStringSubmatch(logText); m != nil {
			extra.GoModule = m[1]
		} else if m := reGoProvides.FindStringSubmatch(logText); m != nil {
			extra.GoModule = m[1]
		} else {
			extra.GoModule = a.Details.MissingModule
		}
		extra.ConfigFile = "go.mod"

	case models.LanguageRuby:
		if m := reGemNotFound.FindStringSubmatch(logText); m != nil {
			extra.GemName = m[1]
		} else if m := reRubyLoad.FindStringSubmatch(logText); m != nil {
			extra.GemName = m[1]
		} else {
			extra.GemName = a.Details.MissingModule
		}
		extra.PackageManager, extra.ConfigFile = "bundler", "Gemfile"

	case models.LanguageRust:
		extra.PackageManager, extra.ConfigFile = "cargo", "Cargo.toml"

	case models.LanguagePHP:
		extra.PackageManager, extra.ConfigFile = "composer", "composer.json"

	case models.LanguageCSharp:
		extra.PackageManager = "nuget"

	case models.LanguagePython:
		extra.PackageManager, extra.ConfigFile = "pip", "requirements.txt"
	}

	if a.Details.MissingModule == "" {
		extra.MissingModule = firstNonEmpty(extra.GoModule, extra.GemName, MissingModule(logText, a.Language))
	}
	a.Details.Merge(extra)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
