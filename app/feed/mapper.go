package feed

import (
	"strings"
)

var DefaultMapping = Mapping{
	FieldTitle:       "title",
	FieldDescription: "description",
	FieldCompany:     "company",
	FieldLocation:    "location",
	FieldURL:         "link",
	FieldDate:        "pubDate",
	FieldSalary:      "salary",
	FieldType:        "type",
}

type Mapper struct{}

func NewMapper() *Mapper {
	return &Mapper{}
}

// Run builds a canonical job from a raw item. Source paths that cannot be
// resolved leave the field empty.
func (m *Mapper) Run(item Item, mapping Mapping, feedConfig *Config) Job {
	job := Job{}
	if feedConfig != nil {
		job.FeedName = feedConfig.Name
		job.DefaultCategory = feedConfig.DefaultCategory
		job.DefaultRegion = feedConfig.DefaultRegion
	}

	for field, path := range mapping {
		if path == "" {
			continue
		}
		job.Set(field, CleanValue(Lookup(item, path)))
	}

	return job
}

// Lookup resolves a source path against an item. A key present verbatim
// wins; otherwise dotted paths walk nested objects.
func Lookup(item Item, path string) any {
	if v, ok := item[path]; ok {
		return v
	}

	if !strings.Contains(path, ".") {
		return nil
	}

	var current any = item
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case Item:
			v, ok := node[part]
			if !ok {
				return nil
			}
			current = v
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil
			}
			current = v
		default:
			return nil
		}
	}

	return current
}

// lookupString is Lookup followed by CleanValue.
func lookupString(item Item, path string) string {
	return CleanValue(Lookup(item, path))
}
