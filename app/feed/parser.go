package feed

import (
	"bytes"

	"github.com/mmcdole/gofeed"
)

type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
}

type Parser struct {
	detector     *Detector
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		detector:     NewDetector(),
		gofeedParser: gofeed.NewParser(),
	}
}

// Run detects the payload dialect and extracts raw records. Channel
// metadata is filled for RSS and Atom payloads only.
func (p *Parser) Run(data []byte) (*Metadata, Dialect, []Item, error) {
	dialect, items, err := p.detector.Run(data)
	if err != nil {
		return nil, "", nil, err
	}

	return p.metadata(data, dialect), dialect, items, nil
}

// Inspect summarises a payload for feed testing and returns its records.
func (p *Parser) Inspect(data []byte) (*Inspection, []Item, error) {
	metadata, dialect, items, err := p.Run(data)
	if err != nil {
		return nil, nil, err
	}

	return &Inspection{
		Dialect:     dialect,
		Title:       metadata.Title,
		Description: metadata.Description,
		ItemsCount:  len(items),
	}, items, nil
}

func (p *Parser) metadata(data []byte, dialect Dialect) *Metadata {
	metadata := &Metadata{}
	if dialect != DialectRSS && dialect != DialectAtom {
		return metadata
	}

	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeRSS, gofeed.FeedTypeAtom:
	default:
		return metadata
	}

	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return metadata
	}

	metadata.Title = parsed.Title
	metadata.Link = parsed.Link
	metadata.Description = parsed.Description
	metadata.Language = parsed.Language

	return metadata
}
