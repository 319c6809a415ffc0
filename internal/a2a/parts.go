package a2a

import (
	"encoding/json"
	"fmt"
)

// Part kinds carried in a message. The wire shape is a flat object
// discriminated by "kind".
const (
	PartKindText = "text"
	PartKindData = "data"
	PartKindFile = "file"
)

// FileContent is the payload of a file part.
type FileContent struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    string `json:"bytes,omitempty"`
}

// Part is a tagged union over text, data and file content. Exactly one of
// Text, Data or File is meaningful, selected by Kind.
type Part struct {
	Kind string
	Text string
	Data map[string]any
	File *FileContent
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// DataPart builds a data part.
func DataPart(data map[string]any) Part {
	return Part{Kind: PartKindData, Data: data}
}

// FilePart builds a file part with base64-encoded bytes.
func FilePart(name, mimeType, b64 string) Part {
	return Part{Kind: PartKindFile, File: &FileContent{Name: name, MimeType: mimeType, Bytes: b64}}
}

type partWire struct {
	Kind string         `json:"kind"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
	File *FileContent   `json:"file,omitempty"`
}

// MarshalJSON serialises the union to the flat discriminated wire shape.
func (p Part) MarshalJSON() ([]byte, error) {
	w := partWire{Kind: p.Kind}
	switch p.Kind {
	case PartKindText:
		w.Text = p.Text
	case PartKindData:
		w.Data = p.Data
	case PartKindFile:
		w.File = p.File
	default:
		return nil, fmt.Errorf("unknown part kind: %q", p.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the flat wire shape back into the union. Parts with
// an unrecognised kind decode with Kind preserved and no payload so that
// pass-through round-trips do not fail.
func (p *Part) UnmarshalJSON(data []byte) error {
	var w partWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Kind = w.Kind
	p.Text = w.Text
	p.Data = w.Data
	p.File = w.File
	return nil
}
