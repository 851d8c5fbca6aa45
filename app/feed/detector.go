package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Keys searched, in order, for the record array of a JSON object payload.
var jsonItemKeys = []string{"jobs", "items", "results", "data", "listings", "positions", "vacancies"}

type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// Run classifies the payload and extracts its raw records.
func (d *Detector) Run(payload []byte) (Dialect, []Item, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return "", nil, &ParseError{Diagnostics: []string{"empty payload"}}
	}

	var diagnostics []string

	if trimmed[0] == '{' || trimmed[0] == '[' {
		var data any
		err := json.Unmarshal(trimmed, &data)
		if err == nil {
			return DialectJSON, jsonItems(data), nil
		}
		diagnostics = append(diagnostics, fmt.Sprintf("json: %v", err))
	}

	doc, err := parseXML(trimmed)
	if err != nil {
		diagnostics = append(diagnostics, fmt.Sprintf("xml: %v", err))
		return "", nil, &ParseError{Diagnostics: diagnostics}
	}

	dialect, items := xmlItems(doc)
	return dialect, items, nil
}

func jsonItems(data any) []Item {
	switch v := data.(type) {
	case []any:
		return objectsOf(v)
	case map[string]any:
		for _, key := range jsonItemKeys {
			if arr, ok := v[key].([]any); ok {
				return objectsOf(arr)
			}
		}

		// Largest array wins; ties go to the alphabetically first key
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var largest []any
		for _, key := range keys {
			if arr, ok := v[key].([]any); ok && len(arr) > len(largest) {
				largest = arr
			}
		}
		return objectsOf(largest)
	default:
		return nil
	}
}

func objectsOf(values []any) []Item {
	items := make([]Item, 0, len(values))
	for _, value := range values {
		if obj, ok := value.(map[string]any); ok {
			items = append(items, toItem(obj))
		}
	}
	return items
}

func toItem(obj map[string]any) Item {
	item := make(Item, len(obj))
	for k, v := range obj {
		if nested, ok := v.(map[string]any); ok {
			item[k] = toItem(nested)
			continue
		}
		item[k] = v
	}
	return item
}

func xmlItems(doc *xmlDocument) (Dialect, []Item) {
	root := doc.root

	var dialect Dialect
	var nodes []*xmlNode

	if channel := root.firstChild("channel"); channel != nil && len(channel.childrenNamed("item")) > 0 {
		dialect, nodes = DialectRSS, channel.childrenNamed("item")
	} else if found := root.childrenNamed("item"); len(found) > 0 {
		dialect, nodes = DialectItem, found
	} else if found := root.childrenNamed("job"); len(found) > 0 {
		dialect, nodes = DialectJob, found
	} else if found := root.childrenNamed("entry"); len(found) > 0 {
		dialect, nodes = DialectAtom, found
	} else {
		return emptyDialect(root), nil
	}

	if usesFieldElements(nodes[0]) {
		items := make([]Item, 0, len(nodes))
		for _, n := range nodes {
			if item := doc.flattenFields(n); len(item) > 0 {
				items = append(items, item)
			}
		}
		return DialectField, items
	}

	items := make([]Item, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, doc.flatten(n))
	}
	return dialect, items
}

func usesFieldElements(n *xmlNode) bool {
	for _, c := range n.childrenNamed("Field") {
		if _, ok := c.attr("name"); ok {
			return true
		}
	}
	return false
}

func emptyDialect(root *xmlNode) Dialect {
	switch {
	case root.name.Local == "feed":
		return DialectAtom
	case root.firstChild("channel") != nil:
		return DialectRSS
	default:
		return DialectItem
	}
}
