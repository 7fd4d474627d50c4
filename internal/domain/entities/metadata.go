package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawMetadata is caller-supplied metadata before sanitization: either a
// typed JurisMeta record or a FreeformMeta map. Only the sanitizer looks
// inside it.
type RawMetadata interface {
	Fields() map[string]any
}

// JurisMeta is the typed metadata record for case law and statutes.
// Nil fields are "not provided" and never reach the index.
type JurisMeta struct {
	Filename      *string        `json:"filename,omitempty"`
	Category      *string        `json:"category,omitempty"` // e.g. "penal", "civil"
	CaseID        *string        `json:"case_id,omitempty"`
	ECLI          *string        `json:"ecli,omitempty"`
	Tribunal      *string        `json:"tribunal,omitempty"`
	Chamber       *string        `json:"chamber,omitempty"`
	Date          *string        `json:"date,omitempty"`
	Procedure     *string        `json:"procedure,omitempty"`
	Rapporteur    *string        `json:"rapporteur,omitempty"`
	SubjectMatter *string        `json:"subject_matter,omitempty"`
	Outcome       *string        `json:"outcome,omitempty"`
	Origin        *string        `json:"origin,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

var jurisKeys = map[string]struct{}{
	"filename": {}, "category": {}, "case_id": {}, "ecli": {}, "tribunal": {},
	"chamber": {}, "date": {}, "procedure": {}, "rapporteur": {},
	"subject_matter": {}, "outcome": {}, "origin": {}, "extra": {},
}

// Fields flattens the record. Set typed fields win over same-named keys in Extra.
func (m *JurisMeta) Fields() map[string]any {
	out := make(map[string]any)
	if m == nil {
		return out
	}
	for k, v := range m.Extra {
		out[k] = v
	}
	set := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	set("filename", m.Filename)
	set("category", m.Category)
	set("case_id", m.CaseID)
	set("ecli", m.ECLI)
	set("tribunal", m.Tribunal)
	set("chamber", m.Chamber)
	set("date", m.Date)
	set("procedure", m.Procedure)
	set("rapporteur", m.Rapporteur)
	set("subject_matter", m.SubjectMatter)
	set("outcome", m.Outcome)
	set("origin", m.Origin)
	return out
}

// FreeformMeta is an arbitrary key/value map supplied by the caller.
type FreeformMeta map[string]any

// Fields returns a shallow copy of the map.
func (m FreeformMeta) Fields() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// DecodeRawMetadata picks the metadata representation for a JSON object.
// An object whose keys are all JurisMeta fields, with string (or null)
// values and an object-valued "extra", decodes as *JurisMeta; anything else
// is kept as FreeformMeta so no caller key is lost. Numbers are kept as
// json.Number to preserve the integer/float distinction.
func DecodeRawMetadata(data []byte) (RawMetadata, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding meta: %w", err)
	}
	if !looksTyped(raw) {
		return FreeformMeta(raw), nil
	}
	typed := &JurisMeta{}
	for k, v := range raw {
		if k == "extra" {
			if extra, ok := v.(map[string]any); ok {
				typed.Extra = extra
			}
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		typed.setField(k, s)
	}
	return typed, nil
}

func looksTyped(raw map[string]any) bool {
	if len(raw) == 0 {
		return false
	}
	for k, v := range raw {
		if _, ok := jurisKeys[k]; !ok {
			return false
		}
		if k == "extra" {
			if _, ok := v.(map[string]any); !ok && v != nil {
				return false
			}
			continue
		}
		switch v.(type) {
		case nil, string:
		default:
			return false
		}
	}
	return true
}

func (m *JurisMeta) setField(key, value string) {
	v := value
	switch key {
	case "filename":
		m.Filename = &v
	case "category":
		m.Category = &v
	case "case_id":
		m.CaseID = &v
	case "ecli":
		m.ECLI = &v
	case "tribunal":
		m.Tribunal = &v
	case "chamber":
		m.Chamber = &v
	case "date":
		m.Date = &v
	case "procedure":
		m.Procedure = &v
	case "rapporteur":
		m.Rapporteur = &v
	case "subject_matter":
		m.SubjectMatter = &v
	case "outcome":
		m.Outcome = &v
	case "origin":
		m.Origin = &v
	}
}

// IngestItem is the wire shape of one document in an ingestion request.
type IngestItem struct {
	DocID string      `json:"doc_id"`
	Text  string      `json:"text"`
	Meta  RawMetadata `json:"meta,omitempty"`
}

// UnmarshalJSON decodes the item, resolving the metadata union.
func (it *IngestItem) UnmarshalJSON(data []byte) error {
	var wire struct {
		DocID string          `json:"doc_id"`
		Text  string          `json:"text"`
		Meta  json.RawMessage `json:"meta"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	meta, err := DecodeRawMetadata(wire.Meta)
	if err != nil {
		return err
	}
	it.DocID = wire.DocID
	it.Text = wire.Text
	it.Meta = meta
	return nil
}

// Document converts the wire item into a domain document.
func (it IngestItem) Document() Document {
	return Document{ID: it.DocID, Text: it.Text, Meta: it.Meta}
}

// DecodeIngestItems accepts either a bare JSON list of items or an object
// of the form {"items": [...]}.
func DecodeIngestItems(data []byte) ([]IngestItem, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidInput)
	}
	var items []IngestItem
	if data[0] == '{' {
		var wrapped struct {
			Items []IngestItem `json:"items"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		items = wrapped.Items
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return items, nil
}
