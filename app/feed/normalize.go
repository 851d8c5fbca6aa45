package feed

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "FULL_TIME"
	EmploymentPartTime   EmploymentType = "PART_TIME"
	EmploymentContractor EmploymentType = "CONTRACTOR"
	EmploymentTemporary  EmploymentType = "TEMPORARY"
	EmploymentIntern     EmploymentType = "INTERN"
)

// Taxonomy names
const (
	TaxonomyCategory = "category"
	TaxonomyType     = "type"
	TaxonomyRegion   = "region"
)

const DefaultExpiry = 30 * 24 * time.Hour

var employmentTypes = map[string]EmploymentType{
	"full time":      EmploymentFullTime,
	"full-time":      EmploymentFullTime,
	"fulltime":       EmploymentFullTime,
	"tempo integral": EmploymentFullTime,
	"part time":      EmploymentPartTime,
	"part-time":      EmploymentPartTime,
	"meio periodo":   EmploymentPartTime,
	"contract":       EmploymentContractor,
	"contractor":     EmploymentContractor,
	"contrato":       EmploymentContractor,
	"freelance":      EmploymentContractor,
	"temporary":      EmploymentTemporary,
	"temporario":     EmploymentTemporary,
	"internship":     EmploymentIntern,
	"intern":         EmploymentIntern,
	"estagio":        EmploymentIntern,
}

var remoteKeywords = []string{
	"remoto", "remote", "home office", "trabalho remoto", "teletrabalho", "work from home", "wfh",
}

type state struct {
	abbr string
	name string
}

// Longer names first so "Mato Grosso do Sul" is not read as "Mato Grosso".
var brazilianStates = []state{
	{"RN", "Rio Grande do Norte"}, {"RS", "Rio Grande do Sul"}, {"MS", "Mato Grosso do Sul"},
	{"DF", "Distrito Federal"}, {"ES", "Espírito Santo"}, {"RJ", "Rio de Janeiro"},
	{"SC", "Santa Catarina"}, {"MG", "Minas Gerais"}, {"PE", "Pernambuco"},
	{"MT", "Mato Grosso"}, {"AM", "Amazonas"}, {"TO", "Tocantins"},
	{"AL", "Alagoas"}, {"SP", "São Paulo"}, {"MA", "Maranhão"},
	{"PB", "Paraíba"}, {"RO", "Rondônia"}, {"SE", "Sergipe"},
	{"AP", "Amapá"}, {"BA", "Bahia"}, {"CE", "Ceará"},
	{"GO", "Goiás"}, {"PR", "Paraná"}, {"PI", "Piauí"},
	{"RR", "Roraima"}, {"AC", "Acre"}, {"PA", "Pará"},
}

var (
	tokenSplit  = regexp.MustCompile(`[^\p{L}]+`)
	citySplit   = regexp.MustCompile(`[,\-]`)
	accentStrip = runes.Remove(runes.In(unicode.Mn))
)

type Enricher struct {
	autoTaxonomies bool
}

func NewEnricher(autoTaxonomies bool) *Enricher {
	return &Enricher{autoTaxonomies: autoTaxonomies}
}

func (e *Enricher) Run(job Job, now time.Time) Enrichment {
	enrichment := Enrichment{
		Fingerprint:    Fingerprint(job.Title, job.Company, job.Location),
		EmploymentType: string(NormalizeEmploymentType(job.Type)),
		Remote:         IsRemote(job),
		ExpiresAt:      ExpiryDate(job, now),
		Taxonomies:     make(map[string]string),
	}

	if published, err := ParseDate(job.Date); err == nil {
		enrichment.PostedAt = &published
	}

	if category := firstNonEmpty(job.DefaultCategory, job.Extra["category"]); category != "" {
		enrichment.Taxonomies[TaxonomyCategory] = category
	}

	if strings.TrimSpace(job.Type) != "" {
		enrichment.Taxonomies[TaxonomyType] = enrichment.EmploymentType
	}

	region := firstNonEmpty(job.Extra["state"], job.Extra["city"])
	if region == "" && e.autoTaxonomies {
		region = ExtractRegion(job.Location)
	}
	region = firstNonEmpty(region, job.DefaultRegion)
	if region != "" {
		enrichment.Region = region
		enrichment.Taxonomies[TaxonomyRegion] = region
	}

	return enrichment
}

func NormalizeEmploymentType(raw string) EmploymentType {
	if t, ok := employmentTypes[foldText(raw)]; ok {
		return t
	}
	return EmploymentFullTime
}

func IsRemote(job Job) bool {
	text := strings.ToLower(job.Title + " " + job.Description + " " + job.Location)
	for _, keyword := range remoteKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// ExtractRegion finds a Brazilian state in a location string, by whole-word
// abbreviation or by name, and falls back to the text before the first
// comma or dash.
func ExtractRegion(location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return ""
	}

	tokens := tokenSplit.Split(location, -1)
	for _, s := range brazilianStates {
		for _, token := range tokens {
			if token == s.abbr {
				return s.name
			}
		}
	}

	folded := " " + strings.Join(tokenSplit.Split(foldText(location), -1), " ") + " "
	for _, s := range brazilianStates {
		if strings.Contains(folded, " "+foldText(s.name)+" ") {
			return s.name
		}
	}

	parts := citySplit.Split(location, 2)
	return strings.TrimSpace(parts[0])
}

// ExpiryDate uses the listing's own expiry when parseable, otherwise
// DefaultExpiry from now.
func ExpiryDate(job Job, now time.Time) time.Time {
	if job.Expires != "" {
		if expires, err := ParseDate(job.Expires); err == nil {
			return expires
		}
	}
	return now.Add(DefaultExpiry)
}

// foldText lower-cases, trims and strips diacritics.
func foldText(s string) string {
	t := transform.Chain(norm.NFD, accentStrip, norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
