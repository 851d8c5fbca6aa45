package feed

import (
	"regexp"
	"strings"
)

type ProviderID string

const (
	ProviderIndeed   ProviderID = "indeed"
	ProviderCatho    ProviderID = "catho"
	ProviderInfoJobs ProviderID = "infojobs"
	ProviderVagas    ProviderID = "vagas"
	ProviderLinkedIn ProviderID = "linkedin"
	ProviderWhatJobs ProviderID = "whatjobs"
	ProviderGeneric  ProviderID = "generic"
)

type Provider struct {
	ID         ProviderID
	Name       string
	URLPattern *regexp.Regexp
	Mapping    Mapping

	// Descriptions get whitespace collapsed
	CollapseDescription bool
}

// Providers in detection order. Generic matches everything and must stay last.
var Providers = []Provider{
	{
		ID:         ProviderIndeed,
		Name:       "Indeed",
		URLPattern: regexp.MustCompile(`indeed\.com`),
		Mapping: Mapping{
			FieldTitle:       "title",
			FieldDescription: "description",
			FieldCompany:     "source",
			FieldLocation:    "location",
			FieldURL:         "link",
			FieldDate:        "pubDate",
			FieldSalary:      "salary",
		},
	},
	{
		ID:         ProviderCatho,
		Name:       "Catho",
		URLPattern: regexp.MustCompile(`catho\.com\.br`),
		Mapping: Mapping{
			FieldTitle:       "title",
			FieldDescription: "description",
			FieldCompany:     "company",
			FieldLocation:    "location",
			FieldURL:         "link",
			FieldDate:        "pubDate",
			FieldSalary:      "salary",
		},
	},
	{
		ID:         ProviderInfoJobs,
		Name:       "InfoJobs",
		URLPattern: regexp.MustCompile(`infojobs\.com\.br`),
		Mapping: Mapping{
			FieldTitle:       "title",
			FieldDescription: "description",
			FieldCompany:     "company",
			FieldLocation:    "city",
			FieldURL:         "link",
			FieldDate:        "pubDate",
			FieldSalary:      "salaryDescription",
		},
	},
	{
		ID:         ProviderVagas,
		Name:       "Vagas.com",
		URLPattern: regexp.MustCompile(`vagas\.com\.br`),
		Mapping: Mapping{
			FieldTitle:       "title",
			FieldDescription: "description",
			FieldCompany:     "company",
			FieldLocation:    "location",
			FieldURL:         "link",
			FieldDate:        "pubDate",
			FieldSalary:      "salary",
		},
	},
	{
		ID:         ProviderLinkedIn,
		Name:       "LinkedIn",
		URLPattern: regexp.MustCompile(`linkedin\.com`),
		Mapping: Mapping{
			FieldTitle:       "title",
			FieldDescription: "description",
			FieldCompany:     "company",
			FieldLocation:    "location",
			FieldURL:         "link",
			FieldDate:        "pubDate",
		},
	},
	{
		ID:         ProviderWhatJobs,
		Name:       "WhatJobs",
		URLPattern: regexp.MustCompile(`whatjobs\.com`),
		Mapping: Mapping{
			FieldTitle:       "title",
			FieldDescription: "description",
			FieldCompany:     "company",
			FieldLocation:    "location",
			FieldURL:         "url",
			FieldDate:        "date",
			FieldSalary:      "salary",
			FieldType:        "job_type",
			"logo":           "logo",
			"category":       "category",
			"subcategory":    "subcategory",
			"country":        "country",
			"state":          "state",
			"city":           "city",
			"postal_code":    "postal_code",
		},
		CollapseDescription: true,
	},
	{
		ID:         ProviderGeneric,
		Name:       "Generic RSS",
		URLPattern: regexp.MustCompile(`.*`),
		Mapping:    DefaultMapping,
	},
}

func GetProvider(id ProviderID) Provider {
	for _, p := range Providers {
		if p.ID == id {
			return p
		}
	}
	return Providers[len(Providers)-1]
}

// DetectProvider returns the first specific provider whose pattern matches
// the URL, or the generic provider.
func DetectProvider(url string) Provider {
	for _, p := range Providers {
		if p.ID == ProviderGeneric {
			continue
		}
		if p.URLPattern.MatchString(url) {
			return p
		}
	}
	return GetProvider(ProviderGeneric)
}

// ResolveProvider honours an explicit provider in the config before
// falling back to URL detection.
func ResolveProvider(feedConfig *Config) Provider {
	if feedConfig.Provider != "" {
		return GetProvider(feedConfig.Provider)
	}
	if feedConfig.WhatJobs != nil {
		return GetProvider(ProviderWhatJobs)
	}
	return DetectProvider(feedConfig.URL)
}

// EffectiveMapping overlays the feed's own field mapping on the provider's.
func (p Provider) EffectiveMapping(custom Mapping) Mapping {
	mapping := make(Mapping, len(p.Mapping)+len(custom))
	for field, path := range p.Mapping {
		mapping[field] = path
	}
	for field, path := range custom {
		mapping[field] = path
	}
	return mapping
}

// Extract fills fields the mapping left empty using provider-specific rules.
func (p Provider) Extract(item Item, job *Job) {
	if p.CollapseDescription {
		job.Description = CleanDescription(job.Description)
	}

	switch p.ID {
	case ProviderIndeed:
		fillBlank(job, FieldLocation, func() string { return indeedLocation(item) })
		fillBlank(job, FieldCompany, func() string { return indeedCompany(item) })
		fillBlank(job, FieldSalary, func() string { return indeedSalary(item) })
	case ProviderCatho:
		fillBlank(job, FieldLocation, func() string {
			return firstNonEmpty(lookupString(item, "catho:location"), matchLine(item, lineLocal))
		})
		fillBlank(job, FieldCompany, func() string {
			return firstNonEmpty(lookupString(item, "catho:company"), matchLine(item, lineCompanyPT))
		})
		fillBlank(job, FieldSalary, func() string {
			return firstNonEmpty(lookupString(item, "catho:salary"), matchLine(item, lineSalaryPT))
		})
	case ProviderInfoJobs:
		fillBlank(job, FieldLocation, func() string { return lookupString(item, "infojobs:city") })
		fillBlank(job, FieldCompany, func() string { return lookupString(item, "infojobs:company") })
		fillBlank(job, FieldSalary, func() string { return lookupString(item, "infojobs:salaryDescription") })
	case ProviderVagas:
		fillBlank(job, FieldLocation, func() string {
			return firstNonEmpty(matchLine(item, lineLocationPT), matchLine(item, lineLocal))
		})
		fillBlank(job, FieldCompany, func() string { return matchLine(item, lineCompanyPT) })
		fillBlank(job, FieldSalary, func() string { return matchLine(item, lineSalaryPT) })
	case ProviderLinkedIn:
		fillBlank(job, FieldLocation, func() string { return firstGroup(linkedInLocation, lookupString(item, "title"), 1) })
		fillBlank(job, FieldCompany, func() string { return firstGroup(linkedInCompany, lookupString(item, "title"), 1) })
	case ProviderWhatJobs, ProviderGeneric:
	}
}

var (
	indeedTitleLocation = regexp.MustCompile(`(?i)em ([^-]+)`)
	indeedTitleCompany  = regexp.MustCompile(`(?i)^(.+?)\s*-\s*(.+?)(?:\s*em\s|$)`)
	brazilianSalary     = regexp.MustCompile(`(?i)R\$\s*[\d.,]+`)
	linkedInLocation    = regexp.MustCompile(`(?i)\sin\s(.+)$`)
	linkedInCompany     = regexp.MustCompile(`(?i)\sat\s(.+?)(?:\sin\s|$)`)
)

func indeedLocation(item Item) string {
	return firstNonEmpty(
		firstGroup(indeedTitleLocation, lookupString(item, "title"), 1),
		matchLine(item, lineLocation),
	)
}

func indeedCompany(item Item) string {
	return firstNonEmpty(
		matchLine(item, lineCompany),
		firstGroup(indeedTitleCompany, lookupString(item, "title"), 2),
	)
}

func indeedSalary(item Item) string {
	if salary := matchLine(item, lineSalary); salary != "" {
		return salary
	}
	return strings.TrimSpace(brazilianSalary.FindString(lookupString(item, "description")))
}

// Description lines of the form "<label> value"
var (
	lineLocal      = labelPattern("Local:")
	lineLocationPT = labelPattern("Localização:")
	lineCompanyPT  = labelPattern("Empresa:")
	lineSalaryPT   = labelPattern("Salário:")
	lineLocation   = labelPattern("Location:")
	lineCompany    = labelPattern("Company:")
	lineSalary     = labelPattern("Salary:")
)

func labelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) + `\s*([^\n]+)`)
}

// matchLine returns the rest of the description line matched by re.
func matchLine(item Item, re *regexp.Regexp) string {
	return firstGroup(re, lookupString(item, "description"), 1)
}

func firstGroup(re *regexp.Regexp, s string, group int) string {
	m := re.FindStringSubmatch(s)
	if len(m) <= group {
		return ""
	}
	return strings.TrimSpace(m[group])
}

func fillBlank(job *Job, field string, extract func() string) {
	if job.Get(field) != "" {
		return
	}
	if v := extract(); v != "" {
		job.Set(field, v)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// MappingSuggestions lists candidate source fields per canonical field.
func MappingSuggestions(id ProviderID) map[string][]string {
	suggestions := map[string][]string{
		FieldTitle:       {"title", "job_title", "position"},
		FieldDescription: {"description", "content:encoded", "summary", "job_description"},
		FieldCompany:     {"company", "employer", "organization", "company_name"},
		FieldLocation:    {"location", "city", "address", "job_location", "workplace"},
		FieldURL:         {"link", "url", "apply_url", "job_url"},
		FieldDate:        {"pubDate", "published", "date", "created_date"},
		FieldSalary:      {"salary", "compensation", "pay", "wage", "salaryDescription"},
		FieldType:        {"type", "employment_type", "job_type", "category"},
	}

	switch id {
	case ProviderIndeed:
		suggestions[FieldCompany] = append(suggestions[FieldCompany], "source")
	case ProviderInfoJobs:
		suggestions[FieldLocation] = append(suggestions[FieldLocation], "infojobs:city")
		suggestions[FieldSalary] = append(suggestions[FieldSalary], "infojobs:salaryDescription")
	case ProviderCatho:
		suggestions[FieldLocation] = append(suggestions[FieldLocation], "catho:location")
		suggestions[FieldCompany] = append(suggestions[FieldCompany], "catho:company")
		suggestions[FieldSalary] = append(suggestions[FieldSalary], "catho:salary")
	}

	return suggestions
}
