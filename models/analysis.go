package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AnalysisSource records which classifier tier produced an ErrorAnalysis.
type AnalysisSource string

const (
	SourceOracle  AnalysisSource = "oracle"
	SourceKeyword AnalysisSource = "keyword"
)

// ErrorAnalysis is the classifier's verdict for one failed job.
type ErrorAnalysis struct {
	ID                string         `json:"id,omitempty"                 yaml:"id,omitempty"`
	Language          Language       `json:"language"                     yaml:"language"`
	Category          Category       `json:"error_category"               yaml:"error_category"`
	Explanation       string         `json:"error_explanation"            yaml:"error_explanation"`
	SuggestedSolution string         `json:"suggested_solution"           yaml:"suggested_solution"`
	RecommendedAction Action         `json:"recommended_action"           yaml:"recommended_action"`
	Confidence        float64        `json:"confidence"                   yaml:"confidence"`
	Details           Details        `json:"error_details"                yaml:"error_details"`
	Source            AnalysisSource `json:"source"                       yaml:"source"`
	// OracleErr is set when the oracle tier was attempted and failed.
	OracleErr error `json:"-" yaml:"-"`
}

// Details holds the structured fields extracted from a failure log.
// Only the fields relevant to the category are populated.
type Details struct {
	ErrorFile         string   `json:"error_file,omitempty"         yaml:"error_file,omitempty"`
	ErrorLine         int      `json:"error_line,omitempty"         yaml:"error_line,omitempty"`
	ErrorCode         string   `json:"error_code,omitempty"         yaml:"error_code,omitempty"`
	ErrorIndicator    string   `json:"error_indicator,omitempty"    yaml:"error_indicator,omitempty"`
	MissingModule     string   `json:"missing_module,omitempty"     yaml:"missing_module,omitempty"`
	CurrentTimeout    int      `json:"current_timeout,omitempty"    yaml:"current_timeout,omitempty"`
	CVEs              []string `json:"cves,omitempty"               yaml:"cves,omitempty"`
	VulnerablePackage string   `json:"vulnerable_package,omitempty" yaml:"vulnerable_package,omitempty"`
	VersionOperator   string   `json:"version_operator,omitempty"   yaml:"version_operator,omitempty"`
	VulnerableVersion string   `json:"vulnerable_version,omitempty" yaml:"vulnerable_version,omitempty"`
	MissingEnvVar     string   `json:"missing_env_var,omitempty"    yaml:"missing_env_var,omitempty"`

	// Language enrichment for dependency failures.
	PackageManager string `json:"package_manager,omitempty" yaml:"package_manager,omitempty"`
	InstallCommand string `json:"install_command,omitempty" yaml:"install_command,omitempty"`
	BuildTool      string `json:"build_tool,omitempty"      yaml:"build_tool,omitempty"`
	ConfigFile     string `json:"config_file,omitempty"     yaml:"config_file,omitempty"`
	GoModule       string `json:"go_module,omitempty"       yaml:"go_module,omitempty"`
	GemName        string `json:"gem_name,omitempty"        yaml:"gem_name,omitempty"`
}

// IsEmpty reports whether no detail field is set.
func (d Details) IsEmpty() bool {
	return len(d.Pairs()) == 0
}

// Pairs returns every populated field keyed by its JSON name.
// CVE lists are sorted and comma-joined.
func (d Details) Pairs() map[string]string {
	out := map[string]string{}
	put := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	put("error_file", d.ErrorFile)
	if d.ErrorLine > 0 {
		out["error_line"] = strconv.Itoa(d.ErrorLine)
	}
	put("error_code", d.ErrorCode)
	put("error_indicator", d.ErrorIndicator)
	put("missing_module", d.MissingModule)
	if d.CurrentTimeout > 0 {
		out["current_timeout"] = strconv.Itoa(d.CurrentTimeout)
	}
	if len(d.CVEs) > 0 {
		cves := append([]string(nil), d.CVEs...)
		sort.Strings(cves)
		put("cves", strings.Join(cves, ","))
	}
	put("vulnerable_package", d.VulnerablePackage)
	put("version_operator", d.VersionOperator)
	put("vulnerable_version", d.VulnerableVersion)
	put("missing_env_var", d.MissingEnvVar)
	put("package_manager", d.PackageManager)
	put("install_command", d.InstallCommand)
	put("build_tool", d.BuildTool)
	put("config_file", d.ConfigFile)
	put("go_module", d.GoModule)
	put("gem_name", d.GemName)
	return out
}

// Fingerprint is an order-independent digest of the populated fields.
// Two Details with the same values always produce the same fingerprint.
func (d Details) Fingerprint() string {
	pairs := d.Pairs()
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, strings.ToLower(pairs[k]))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Merge fills fields that are empty in d from other. Set fields are never overwritten.
func (d *Details) Merge(other Details) {
	fillString(&d.ErrorFile, other.ErrorFile)
	if d.ErrorLine == 0 {
		d.ErrorLine = other.ErrorLine
	}
	fillString(&d.ErrorCode, other.ErrorCode)
	fillString(&d.ErrorIndicator, other.ErrorIndicator)
	fillString(&d.MissingModule, other.MissingModule)
	if d.CurrentTimeout == 0 {
		d.CurrentTimeout = other.CurrentTimeout
	}
	if len(d.CVEs) == 0 && len(other.CVEs) > 0 {
		d.CVEs = append([]string(nil), other.CVEs...)
	}
	fillString(&d.VulnerablePackage, other.VulnerablePackage)
	fillString(&d.VersionOperator, other.VersionOperator)
	fillString(&d.VulnerableVersion, other.VulnerableVersion)
	fillString(&d.MissingEnvVar, other.MissingEnvVar)
	fillString(&d.PackageManager, other.PackageManager)
	fillString(&d.InstallCommand, other.InstallCommand)
	fillString(&d.BuildTool, other.BuildTool)
	fillString(&d.ConfigFile, other.ConfigFile)
	fillString(&d.GoModule, other.GoModule)
	fillString(&d.GemName, other.GemName)
}

// Scoped keeps only the fields that category uses and clears the rest, so
// unrelated log noise never reaches the fingerprint.
func (d Details) Scoped(c Category) Details {
	var out Details
	switch c {
	case CategoryDependency:
		out.MissingModule = d.MissingModule
		out.PackageManager = d.PackageManager
		out.InstallCommand = d.InstallCommand
		out.BuildTool = d.BuildTool
		out.ConfigFile = d.ConfigFile
		out.GoModule = d.GoModule
		out.GemName = d.GemName
	case CategorySyntaxError:
		out.ErrorFile = d.ErrorFile
		out.ErrorLine = d.ErrorLine
		out.ErrorCode = d.ErrorCode
		out.ErrorIndicator = d.ErrorIndicator
	case CategoryFailedTest, CategoryOther:
		out.ErrorFile = d.ErrorFile
		out.ErrorLine = d.ErrorLine
	case CategoryTimeout:
		out.CurrentTimeout = d.CurrentTimeout
	case CategorySecurity:
		out.CVEs = d.CVEs
		out.VulnerablePackage = d.VulnerablePackage
		out.VersionOperator = d.VersionOperator
		out.VulnerableVersion = d.VulnerableVersion
	case CategoryConfiguration:
		out.MissingEnvVar = d.MissingEnvVar
		out.ConfigFile = d.ConfigFile
	}
	return out
}

func fillString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// DetailsFromMap validates an untyped detail mapping (as returned by the
// oracle) against the fixed key vocabulary. Unknown keys are dropped and
// values of the wrong shape are coerced where possible.
func DetailsFromMap(m map[string]any) Details {
	var d Details
	str := func(k string) string {
		switch v := m[k].(type) {
		case string:
			return strings.TrimSpace(v)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		default:
			return ""
		}
	}
	num := func(k string) int {
		switch v := m[k].(type) {
		case float64:
			if v > 0 {
				return int(v)
			}
		case int:
			if v > 0 {
				return v
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				return n
			}
		}
		return 0
	}

	d.ErrorFile = str("error_file")
	d.ErrorLine = num("error_line")
	d.ErrorCode = str("error_code")
	d.ErrorIndicator = str("error_indicator")
	d.MissingModule = str("missing_module")
	d.CurrentTimeout = num("current_timeout")
	switch v := m["cves"].(type) {
	case []any:
		for _, c := range v {
			if s, ok := c.(string); ok && s != "" {
				d.CVEs = append(d.CVEs, s)
			}
		}
	case []string:
		d.CVEs = append(d.CVEs, v...)
	case string:
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				d.CVEs = append(d.CVEs, c)
			}
		}
	}
	d.VulnerablePackage = str("vulnerable_package")
	d.VersionOperator = str("version_operator")
	d.VulnerableVersion = str("vulnerable_version")
	d.MissingEnvVar = str("missing_env_var")
	d.PackageManager = str("package_manager")
	d.InstallCommand = str("install_command")
	d.BuildTool = str("build_tool")
	d.ConfigFile = str("config_file")
	d.GoModule = str("go_module")
	d.GemName = str("gem_name")
	return d
}
