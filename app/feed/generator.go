package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/lysyi3m/job-comb/app/database"
)

// Generator republishes imported jobs as an RSS 2.0 channel.
type Generator struct {
	baseURL string
	version string
}

func NewGenerator(baseURL, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
	}
}

func (g *Generator) Run(feed database.Feed, jobs []database.Job) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", cmp.Or(feed.Title, feed.Name), 4)
	g.writeElement(&buf, "link", feed.URL, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Jobs imported from %s", cmp.Or(feed.URL, feed.Name)), 4)

	if g.baseURL != "" {
		selfLink := fmt.Sprintf("%s/feeds/%s", g.baseURL, feed.Name)
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(selfLink)))
	}

	lastBuildDate := time.Now()
	if len(jobs) > 0 {
		lastBuildDate = jobs[0].ImportedAt
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Job-Comb/%s", g.version), 4)

	for _, job := range jobs {
		g.writeItem(&buf, job)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, job database.Job) {
	buf.WriteString("    <item>\n")

	guid := cmp.Or(job.URL, job.Fingerprint)
	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(guid)))
	xml.EscapeText(buf, []byte(guid))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", job.Title, 6)
	g.writeElement(buf, "link", job.URL, 6)
	g.writeElement(buf, "description", cmp.Or(job.Description, "No description available"), 6)

	published := job.ImportedAt
	if job.PostedAt != nil {
		published = *job.PostedAt
	}
	g.writeElement(buf, "pubDate", published.Format(time.RFC1123Z), 6)
	g.writeElement(buf, "dc:creator", job.Company, 6)

	taxonomies := make([]string, 0, len(job.Taxonomies))
	for taxonomy := range job.Taxonomies {
		taxonomies = append(taxonomies, taxonomy)
	}
	sort.Strings(taxonomies)

	for _, taxonomy := range taxonomies {
		term := job.Taxonomies[taxonomy]
		if term == "" {
			continue
		}
		buf.WriteString(fmt.Sprintf("      <category domain=\"%s\">", html.EscapeString(taxonomy)))
		xml.EscapeText(buf, []byte(term))
		buf.WriteString("</category>\n")
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
