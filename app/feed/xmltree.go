package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

type xmlNode struct {
	name     xml.Name
	attrs    []xml.Attr
	text     strings.Builder
	children []*xmlNode
}

type xmlDocument struct {
	root     *xmlNode
	prefixes map[string]string // namespace URI -> prefix
}

func parseXML(payload []byte) (*xmlDocument, error) {
	decoder := xml.NewDecoder(bytes.NewReader(payload))
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Entity = xml.HTMLEntity

	doc := &xmlDocument{prefixes: make(map[string]string)}
	var stack []*xmlNode

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			node := &xmlNode{name: t.Name, attrs: t.Attr}
			for _, attr := range t.Attr {
				if attr.Name.Space == "xmlns" {
					doc.prefixes[attr.Value] = attr.Name.Local
				}
			}
			if len(stack) == 0 {
				if doc.root != nil {
					return nil, errors.New("multiple root elements")
				}
				doc.root = node
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if doc.root == nil {
		return nil, errors.New("no root element")
	}

	return doc, nil
}

// key returns "prefix:local" for namespaced elements and the bare local
// name for elements in no namespace or in the default namespace.
func (d *xmlDocument) key(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	if prefix, ok := d.prefixes[name.Space]; ok {
		return prefix + ":" + name.Local
	}
	// Undeclared prefixes are left unresolved by the decoder
	if !strings.ContainsAny(name.Space, "/:") {
		return name.Space + ":" + name.Local
	}
	return name.Local
}

func (n *xmlNode) attr(local string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Local == local && a.Name.Space == "" {
			return a.Value, true
		}
	}
	return "", false
}

func (n *xmlNode) childrenNamed(local string) []*xmlNode {
	var out []*xmlNode
	for _, c := range n.children {
		if c.name.Local == local {
			out = append(out, c)
		}
	}
	return out
}

func (n *xmlNode) firstChild(local string) *xmlNode {
	for _, c := range n.children {
		if c.name.Local == local {
			return c
		}
	}
	return nil
}

func (d *xmlDocument) value(n *xmlNode) any {
	text := n.text.String()

	if len(n.children) > 0 {
		item := d.flatten(n)
		// Mixed content keeps its own text next to the children
		if strings.TrimSpace(text) != "" {
			item[TextKey] = text
		}
		return item
	}

	if strings.TrimSpace(text) == "" {
		if href, ok := n.attr("href"); ok {
			return href
		}
	}
	return text
}

// flatten converts an element's children into an Item. The first
// occurrence of a repeated child wins.
func (d *xmlDocument) flatten(n *xmlNode) Item {
	item := make(Item, len(n.children))
	for _, c := range n.children {
		key := d.key(c.name)
		if _, exists := item[key]; exists {
			continue
		}
		item[key] = d.value(c)
	}
	return item
}

// flattenFields converts <Field name="x">value</Field> children into an Item.
func (d *xmlDocument) flattenFields(n *xmlNode) Item {
	item := make(Item)
	for _, c := range n.childrenNamed("Field") {
		name, ok := c.attr("name")
		if !ok || name == "" {
			continue
		}
		item[name] = c.text.String()
	}
	return item
}
