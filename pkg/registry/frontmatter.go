package registry

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

// fields is the decoded metadata block of a definition file. When the file
// carries no frontmatter the fields are recovered heuristically from the
// body and heuristic is true.
type fields struct {
	values    map[string]interface{}
	heuristic bool
}

// parseFrontmatter extracts the YAML frontmatter of a definition file. Files
// without a frontmatter block fall back to heuristic extraction: the first
// heading becomes the name and the first qualifying paragraph becomes the
// description.
func parseFrontmatter(content []byte) (*fields, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, err
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return extractHeuristics(string(content)), nil
	}

	return &fields{values: metaData}, nil
}

// extractHeuristics recovers name and description from a file without a
// metadata block.
func extractHeuristics(content string) *fields {
	values := make(map[string]interface{})

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(trimmed, "# "); ok {
			values["name"] = strings.TrimSpace(name)
			break
		}
	}

	if para := firstQualifyingParagraph(content); para != "" {
		values["description"] = truncate(para, maxDescriptionLen)
	}

	return &fields{values: values, heuristic: true}
}

// firstQualifyingParagraph returns the first non-heading line that starts
// with an uppercase letter and is long enough to serve as a description.
func firstQualifyingParagraph(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		if len(line) < 21 {
			continue
		}
		if line[0] < 'A' || line[0] > 'Z' {
			continue
		}
		return strings.TrimSpace(line)
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// str returns the named field as a string, or fallback if absent.
func (f *fields) str(key, fallback string) string {
	v, ok := f.values[key]
	if !ok {
		return fallback
	}
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	default:
		return fallback
	}
}

// strList returns the named field as a string list. YAML sequences, flow
// sequences and comma-separated scalar strings are all accepted.
func (f *fields) strList(key string) []string {
	v, ok := f.values[key]
	if !ok {
		return nil
	}
	return toStringList(v)
}

func toStringList(v interface{}) []string {
	switch vv := v.(type) {
	case []interface{}:
		var out []string
		for _, item := range vv {
			switch s := item.(type) {
			case string:
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					out = append(out, trimmed)
				}
			case int:
				out = append(out, strconv.Itoa(s))
			}
		}
		return out
	case string:
		trimmed := strings.Trim(strings.TrimSpace(vv), "[]")
		if trimmed == "" {
			return nil
		}
		var out []string
		for _, part := range strings.Split(trimmed, ",") {
			part = strings.TrimSpace(part)
			part = strings.Trim(part, `"'`)
			if part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

// intList returns the named field as an int list, accepting the same shapes
// as strList. Non-numeric elements are dropped.
func (f *fields) intList(key string) ([]int, bool) {
	v, ok := f.values[key]
	if !ok {
		return nil, false
	}

	var out []int
	switch vv := v.(type) {
	case int:
		out = append(out, vv)
	case []interface{}:
		for _, item := range vv {
			switch n := item.(type) {
			case int:
				out = append(out, n)
			case string:
				if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
					out = append(out, parsed)
				}
			}
		}
	case string:
		for _, part := range toStringList(vv) {
			if parsed, err := strconv.Atoi(part); err == nil {
				out = append(out, parsed)
			}
		}
	default:
		return nil, false
	}
	return out, true
}

// boolean returns the named field as a bool. String forms "true", "yes" and
// "1" are accepted as true.
func (f *fields) boolean(key string, fallback bool) bool {
	v, ok := f.values[key]
	if !ok {
		return fallback
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1":
			return true
		default:
			return false
		}
	default:
		return fallback
	}
}

// has reports whether the named field is present.
func (f *fields) has(key string) bool {
	_, ok := f.values[key]
	return ok
}
