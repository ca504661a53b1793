package remediation

import "strings"

// pythonDistributions maps import names to the PyPI distribution that
// provides them when the two differ.
var pythonDistributions = map[string]string{
	"cv2":      "opencv-python",
	"sklearn":  "scikit-learn",
	"PIL":      "Pillow",
	"yaml":     "PyYAML",
	"dotenv":   "python-dotenv",
	"bs4":      "beautifulsoup4",
	"dateutil": "python-dateutil",
	"jwt":      "PyJWT",
	"magic":    "python-magic",
}

// PythonPackage resolves the pip package for an import path such as
// "yaml" or "sklearn.model_selection".
func PythonPackage(module string) string {
	module = strings.TrimSpace(module)
	if pkg, ok := pythonDistributions[module]; ok {
		return pkg
	}
	root, _, _ := strings.Cut(module, ".")
	if pkg, ok := pythonDistributions[root]; ok {
		return pkg
	}
	return root
}

// MavenCoordinates splits a Java package into a best-guess groupId and
// artifactId: com.google.gson -> (com.google, gson).
func MavenCoordinates(pkg string) (groupID, artifactID string) {
	pkg = strings.Trim(strings.TrimSpace(pkg), ".")
	i := strings.LastIndex(pkg, ".")
	if i < 0 {
		return pkg, pkg
	}
	return pkg[:i], pkg[i+1:]
}

// npmPackage trims deep imports ("lodash/fp" -> "lodash", "@scope/pkg/x" -> "@scope/pkg").
// Relative paths are not packages and return "".
func npmPackage(module string) string {
	module = strings.TrimSpace(module)
	if module == "" || strings.HasPrefix(module, ".") || strings.HasPrefix(module, "/") {
		return ""
	}
	parts := strings.Split(module, "/")
	if strings.HasPrefix(module, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// rustCrate trims a use path ("serde::Deserialize" -> "serde").
func rustCrate(module string) string {
	root, _, _ := strings.Cut(strings.TrimSpace(module), "::")
	return root
}
