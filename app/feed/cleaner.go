package feed

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	cdataPattern      = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanValue turns a raw item value into a trimmed plain string.
// Slices are joined with a single space, CDATA wrappers are removed and
// entities are decoded.
func CleanValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	case []any:
		parts := make([]string, 0, len(val))
		for _, part := range val {
			parts = append(parts, flatten(part))
		}
		s = strings.Join(parts, " ")
	case []string:
		s = strings.Join(val, " ")
	default:
		s = flatten(val)
	}

	s = cdataPattern.ReplaceAllString(s, "$1")
	s = html.UnescapeString(s)

	return strings.TrimSpace(s)
}

func CleanDescription(v any) string {
	s := CleanValue(v)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// StripTags returns the text content of an HTML fragment.
func StripTags(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}

	return doc.Text()
}

func flatten(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case Item:
		// Nested objects only have their own text as scalar form
		text, _ := val[TextKey].(string)
		return text
	case map[string]any:
		text, _ := val[TextKey].(string)
		return text
	case []any:
		parts := make([]string, 0, len(val))
		for _, part := range val {
			parts = append(parts, flatten(part))
		}
		return strings.Join(parts, " ")
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		if val {
			return "1"
		}
		return ""
	default:
		return fmt.Sprint(val)
	}
}
