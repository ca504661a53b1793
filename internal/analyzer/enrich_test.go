package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

func dependencyAnalysis(lang models.Language, log string) models.ErrorAnalysis {
	return models.ErrorAnalysis{
		Language: lang,
		Category: models.CategoryDependency,
		Details:  ExtractDetails(log, lang),
	}
}

func TestEnrichJavaScriptPackageManager(t *testing.T) {
	log := "yarn add express\nError: Cannot find module 'express'"
	a := dependencyAnalysis(models.LanguageJavaScript, log)
	Enrich(&a, log)
	assert.Equal(t, "yarn", a.Details.PackageManager)
	assert.Equal(t, "yarn add", a.Details.InstallCommand)

	log = "npm ERR! Cannot find module 'lodash'"
	a = dependencyAnalysis(models.LanguageJavaScript, log)
	Enrich(&a, log)
	assert.Equal(t, "npm", a.Details.PackageManager)
	assert.Equal(t, "npm install", a.Details.InstallCommand)
}

func TestEnrichJavaBuildTool(t *testing.T) {
	log := "mvn clean install\npackage com.google.gson does not exist"
	a := dependencyAnalysis(models.LanguageJava, log)
	Enrich(&a, log)
	assert.Equal(t, "maven", a.Details.BuildTool)
	assert.Equal(t, "pom.xml", a.Details.ConfigFile)

	log = "> Task :compileJava FAILED (gradle)\npackage com.google.gson does not exist"
	a = dependencyAnalysis(models.LanguageJava, log)
	Enrich(&a, log)
	assert.Equal(t, "gradle", a.Details.BuildTool)
	assert.Equal(t, "build.gradle", a.Details.ConfigFile)
}

func TestEnrichGoAndRuby(t *testing.T) {
	log := `cannot find package "github.com/pkg/errors"`
	a := dependencyAnalysis(models.LanguageGo, log)
	Enrich(&a, log)
	assert.Equal(t, "github.com/pkg/errors", a.Details.GoModule)

	log = "Could not find 'rails' (>= 0) among 40 total gem(s)"
	a = dependencyAnalysis(models.LanguageRuby, log)
	Enrich(&a, log)
	assert.Equal(t, "rails", a.Details.GemName)
}

func TestEnrichNeverOverrides(t *testing.T) {
	a := models.ErrorAnalysis{
		Language: models.LanguageJavaScript,
		Category: models.CategoryDependency,
		Details:  models.Details{PackageManager: "pnpm", MissingModule: "left-pad"},
	}
	Enrich(&a, "yarn add left-pad")
	assert.Equal(t, "pnpm", a.Details.PackageManager)
	assert.Equal(t, "yarn add", a.Details.InstallCommand)
	assert.Equal(t, "left-pad", a.Details.MissingModule)
}

func TestEnrichIgnoresOtherCategories(t *testing.T) {
	a := models.ErrorAnalysis{Language: models.LanguageJavaScript, Category: models.CategoryTimeout}
	Enrich(&a, "yarn")
	assert.True(t, a.Details.IsEmpty())
}
