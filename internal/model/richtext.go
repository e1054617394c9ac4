package model

import (
	"encoding/json"
	"strings"
)

// Rich text node types.
const (
	NodeDocument  = "document"
	NodeParagraph = "paragraph"
	NodeText      = "text"
	NodeHyperlink = "hyperlink"
)

// Document is the root of a rich-text tree.
type Document struct {
	NodeType string         `json:"nodeType"`
	Data     map[string]any `json:"data"`
	Content  []Paragraph    `json:"content"`
}

// Paragraph is a block of inline nodes.
type Paragraph struct {
	NodeType string         `json:"nodeType"`
	Data     map[string]any `json:"data"`
	Content  []Inline       `json:"content"`
}

// Mark is a text decoration such as bold.
type Mark struct {
	Type string `json:"type"`
}

// Inline is either a text node or a hyperlink wrapping text nodes.
type Inline struct {
	NodeType string
	Value    string
	Marks    []Mark
	URI      string
	Content  []Inline
}

// MarshalJSON renders the node in the shape the CMS expects for its type.
func (n Inline) MarshalJSON() ([]byte, error) {
	if n.NodeType == NodeHyperlink {
		content := n.Content
		if content == nil {
			content = []Inline{}
		}
		return json.Marshal(struct {
			NodeType string         `json:"nodeType"`
			Data     map[string]any `json:"data"`
			Content  []Inline       `json:"content"`
		}{n.NodeType, map[string]any{"uri": n.URI}, content})
	}
	marks := n.Marks
	if marks == nil {
		marks = []Mark{}
	}
	return json.Marshal(struct {
		NodeType string         `json:"nodeType"`
		Value    string         `json:"value"`
		Marks    []Mark         `json:"marks"`
		Data     map[string]any `json:"data"`
	}{n.NodeType, n.Value, marks, map[string]any{}})
}

// UnmarshalJSON accepts both text and hyperlink nodes.
func (n *Inline) UnmarshalJSON(b []byte) error {
	var raw struct {
		NodeType string `json:"nodeType"`
		Value    string `json:"value"`
		Marks    []Mark `json:"marks"`
		Data     struct {
			URI string `json:"uri"`
		} `json:"data"`
		Content []Inline `json:"content"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*n = Inline{
		NodeType: raw.NodeType,
		Value:    raw.Value,
		Marks:    raw.Marks,
		URI:      raw.Data.URI,
		Content:  raw.Content,
	}
	return nil
}

// Text returns a plain text node.
func Text(value string) Inline {
	return Inline{NodeType: NodeText, Value: value}
}

// Hyperlink returns a hyperlink node whose label is the URI itself.
func Hyperlink(uri string) Inline {
	return Inline{NodeType: NodeHyperlink, URI: uri, Content: []Inline{Text(uri)}}
}

// NewDocument builds a document with one text paragraph per argument.
// Blank paragraphs are dropped.
func NewDocument(paragraphs ...string) Document {
	doc := Document{NodeType: NodeDocument, Data: map[string]any{}, Content: []Paragraph{}}
	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		doc.Content = append(doc.Content, Paragraph{
			NodeType: NodeParagraph,
			Data:     map[string]any{},
			Content:  []Inline{Text(p)},
		})
	}
	return doc
}

// LinkDocument builds a single-paragraph document holding a hyperlink.
func LinkDocument(uri string) Document {
	return Document{
		NodeType: NodeDocument,
		Data:     map[string]any{},
		Content: []Paragraph{{
			NodeType: NodeParagraph,
			Data:     map[string]any{},
			Content:  []Inline{Text(""), Hyperlink(uri), Text("")},
		}},
	}
}

// PlainText flattens the document, separating paragraphs with blank lines.
func (d Document) PlainText() string {
	var paras []string
	for _, p := range d.Content {
		var sb strings.Builder
		for _, in := range p.Content {
			writeInline(&sb, in)
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			paras = append(paras, s)
		}
	}
	return strings.Join(paras, "\n\n")
}

// FirstURI returns the first hyperlink target in the document.
func (d Document) FirstURI() string {
	for _, p := range d.Content {
		for _, in := range p.Content {
			if in.NodeType == NodeHyperlink {
				return in.URI
			}
		}
	}
	return ""
}

func writeInline(sb *strings.Builder, n Inline) {
	if n.NodeType == NodeHyperlink {
		for _, c := range n.Content {
			writeInline(sb, c)
		}
		return
	}
	sb.WriteString(n.Value)
}
