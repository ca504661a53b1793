package remediation

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

var (
	// ErrAnchorNotFound means an update patch could not find its anchor line.
	ErrAnchorNotFound = errors.New("patch anchor not found")
	// ErrNoChange means the file already contains the patched entry.
	ErrNoChange = errors.New("patch already applied")
	// ErrPatchMismatch means the target line no longer matches the log.
	ErrPatchMismatch = errors.New("patch does not match file contents")
)

// FileAction is the commit action needed to write a patched file.
type FileAction string

const (
	FileCreate FileAction = "create"
	FileUpdate FileAction = "update"
)

// ApplyPatch applies p to the current contents of its target file and
// returns the new contents and whether the file is created or updated.
// exists reports whether the file is present on the target branch.
func ApplyPatch(current string, exists bool, p *models.Patch) (string, FileAction, error) {
	if p == nil {
		return "", "", fmt.Errorf("apply patch: nil patch")
	}
	action := FileCreate
	if exists {
		action = FileUpdate
	}

	switch p.Operation {
	case models.PatchCreate:
		if exists && current == p.Content {
			return "", "", ErrNoChange
		}
		return p.Content, action, nil

	case models.PatchAppend:
		if !exists {
			return ensureNewline(p.Content), FileCreate, nil
		}
		if alreadyListed(path.Base(p.FilePath), current, p.Content) {
			return "", "", ErrNoChange
		}
		out := current
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		return out + ensureNewline(p.Content), FileUpdate, nil

	case models.PatchUpdate:
		switch {
		case p.ReplaceLine > 0:
			if !exists {
				return "", "", fmt.Errorf("%w: %s does not exist", ErrPatchMismatch, p.FilePath)
			}
			out, err := replaceLine(current, p.ReplaceLine, p.Anchor, p.Content)
			return out, FileUpdate, err
		case p.ReplacePrefix != "":
			if !exists {
				return ensureNewline(p.Content), FileCreate, nil
			}
			out, err := replacePrefixed(current, p.ReplacePrefix, p.Content)
			return out, FileUpdate, err
		default:
			if !exists {
				return "", "", fmt.Errorf("%w: %s does not exist", ErrAnchorNotFound, p.FilePath)
			}
			out, err := insertAtAnchor(current, p)
			return out, FileUpdate, err
		}
	}
	return "", "", fmt.Errorf("apply patch: unknown operation %q", p.Operation)
}

func replaceLine(current string, lineNo int, expect, content string) (string, error) {
	lines := strings.Split(current, "\n")
	if lineNo > len(lines) {
		return "", fmt.Errorf("%w: line %d past end of file", ErrPatchMismatch, lineNo)
	}
	old := lines[lineNo-1]
	if expect != "" && strings.TrimSpace(old) != strings.TrimSpace(expect) {
		return "", fmt.Errorf("%w: line %d is %q", ErrPatchMismatch, lineNo, strings.TrimSpace(old))
	}
	replacement := indentOf(old) + strings.TrimSpace(content)
	if replacement == old {
		return "", ErrNoChange
	}
	lines[lineNo-1] = replacement
	return strings.Join(lines, "\n"), nil
}

func replacePrefixed(current, prefix, content string) (string, error) {
	lines := strings.Split(current, "\n")
	want := strings.ToLower(prefix)
	for i, line := range lines {
		if requirementName(line) != want {
			continue
		}
		if strings.TrimSpace(line) == strings.TrimSpace(content) {
			return "", ErrNoChange
		}
		lines[i] = strings.TrimSpace(content)
		return strings.Join(lines, "\n"), nil
	}
	out := current
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + ensureNewline(content), nil
}

func insertAtAnchor(current string, p *models.Patch) (string, error) {
	if entryPresent(current, p.Content) {
		return "", ErrNoChange
	}
	lines := strings.Split(current, "\n")
	at := -1
	for i, line := range lines {
		if strings.Contains(line, p.Anchor) {
			at = i
			break
		}
	}
	if at < 0 {
		return "", fmt.Errorf("%w: %q in %s", ErrAnchorNotFound, p.Anchor, p.FilePath)
	}
	isJSON := strings.HasSuffix(p.FilePath, ".json")
	anchorLine := lines[at]
	anchorIndent := indentOf(anchorLine)

	// "dependencies": {} has to be opened up before anything fits inside.
	if isJSON && !p.InsertBefore {
		rest := strings.TrimSpace(anchorLine[strings.Index(anchorLine, p.Anchor)+len(p.Anchor):])
		if strings.HasPrefix(rest, "}") {
			head := anchorLine[:strings.Index(anchorLine, p.Anchor)+len(p.Anchor)]
			block := []string{head, anchorIndent + "    " + strings.TrimSpace(p.Content), anchorIndent + rest}
			lines = splice(lines, at, 1, block)
			return strings.Join(lines, "\n"), nil
		}
	}

	var indent string
	insertAt := at + 1
	if p.InsertBefore {
		insertAt = at
		prev := neighbour(lines, at, -1)
		if prev >= 0 && len(indentOf(lines[prev])) > len(anchorIndent) {
			indent = indentOf(lines[prev])
		} else {
			indent = anchorIndent + "    "
		}
	} else {
		next := neighbour(lines, at, +1)
		switch {
		case next >= 0 && !isClosing(lines[next]):
			indent = indentOf(lines[next])
		case strings.HasSuffix(strings.TrimSpace(anchorLine), "{"):
			indent = anchorIndent + "    "
		default:
			indent = anchorIndent
		}
	}

	block := indentBlock(p.Content, indent)
	if isJSON && !p.InsertBefore {
		next := neighbour(lines, at, +1)
		if next >= 0 && !isClosing(lines[next]) {
			block[len(block)-1] += ","
		}
	}
	lines = splice(lines, insertAt, 0, block)
	return strings.Join(lines, "\n"), nil
}

// entryPresent reports whether the entry content adds is already in the file.
func entryPresent(current, content string) bool {
	first := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	switch {
	case strings.Contains(content, "<artifactId>"):
		for _, l := range strings.Split(content, "\n") {
			if strings.Contains(l, "<artifactId>") {
				return strings.Contains(current, strings.TrimSpace(l))
			}
		}
	case strings.HasPrefix(first, `"`):
		key, _, found := strings.Cut(first[1:], `"`)
		if found {
			return strings.Contains(current, `"`+key+`":`) || strings.Contains(current, `"`+key+`" :`)
		}
	case strings.Contains(first, " = "):
		key := strings.TrimSpace(strings.SplitN(first, "=", 2)[0])
		for _, l := range strings.Split(current, "\n") {
			t := strings.TrimSpace(l)
			if strings.HasPrefix(t, key+" ") || strings.HasPrefix(t, key+"=") {
				return true
			}
		}
		return false
	}
	for _, l := range strings.Split(current, "\n") {
		if strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(l), ",")) == first {
			return true
		}
	}
	return false
}

// alreadyListed reports whether every entry of an append is already present.
func alreadyListed(base, current, content string) bool {
	var entries []string
	for _, l := range strings.Split(content, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			entries = append(entries, t)
		}
	}
	if len(entries) == 0 {
		return true
	}
	existing := strings.Split(current, "\n")
	for _, e := range entries {
		if !listed(base, existing, e) {
			return false
		}
	}
	return true
}

func listed(base string, existing []string, entry string) bool {
	for _, line := range existing {
		t := strings.TrimSpace(line)
		if t == entry {
			return true
		}
		switch {
		case strings.HasSuffix(base, ".txt"):
			if requirementName(t) != "" && requirementName(t) == requirementName(entry) {
				return true
			}
		case strings.HasPrefix(base, ".env"):
			k, _, _ := strings.Cut(t, "=")
			e, _, _ := strings.Cut(entry, "=")
			if strings.TrimSpace(strings.TrimPrefix(k, "export ")) == e {
				return true
			}
		case base == "go.mod":
			want := strings.Fields(entry)
			have := strings.Fields(t)
			if len(want) >= 2 && len(have) >= 1 {
				mod := want[1]
				if have[0] == mod || (len(have) >= 2 && have[0] == "require" && have[1] == mod) {
					return true
				}
			}
		case base == "Gemfile":
			if strings.ReplaceAll(t, `"`, "'") == entry || strings.HasPrefix(strings.ReplaceAll(t, `"`, "'"), entry+",") {
				return true
			}
		}
	}
	return false
}

// requirementName returns the lowercased distribution name of a pip
// requirement line, or "" for comments and blanks.
func requirementName(line string) string {
	t := strings.TrimSpace(line)
	if t == "" || strings.HasPrefix(t, "#") || strings.HasPrefix(t, "-") {
		return ""
	}
	if i := strings.IndexAny(t, "=<>!~[;# "); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

func indentBlock(content, indent string) []string {
	raw := strings.Split(strings.TrimRight(content, "\n"), "\n")
	out := make([]string, len(raw))
	for i, l := range raw {
		if strings.TrimSpace(l) == "" {
			out[i] = ""
			continue
		}
		out[i] = indent + l
	}
	return out
}

func neighbour(lines []string, from, step int) int {
	for i := from + step; i >= 0 && i < len(lines); i += step {
		if strings.TrimSpace(lines[i]) != "" {
			return i
		}
	}
	return -1
}

func isClosing(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "}") || strings.HasPrefix(t, "]") || strings.HasPrefix(t, "</")
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func splice(lines []string, at, drop int, insert []string) []string {
	out := make([]string, 0, len(lines)-drop+len(insert))
	out = append(out, lines[:at]...)
	out = append(out, insert...)
	return append(out, lines[at+drop:]...)
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
