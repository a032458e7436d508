package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/japaniel/entipedia/pkg/wikipedia"
)

var knowledgeBaseID = regexp.MustCompile(`^Q\d+$`)

// Entity is one extracted entity. Fields the service sent that Entity does
// not model are kept and written back unchanged.
type Entity struct {
	EntityID   string
	Mention    string
	Normalized string
	Type       string

	// Wikipedia is set once the entity has been looked up. A non-nil, empty
	// record means the lookup found no page.
	Wikipedia *wikipedia.Record

	raw map[string]json.RawMessage
}

// HasKnowledgeBaseID reports whether the entity links to a Wikidata item.
// Service-local identifiers such as "T3" do not.
func (e *Entity) HasKnowledgeBaseID() bool {
	return knowledgeBaseID.MatchString(e.EntityID)
}

// CacheMention is the mention text used to tell apart entities that share an
// ID: the normalized form when present, else the raw mention.
func (e *Entity) CacheMention() string {
	if e.Normalized != "" {
		return e.Normalized
	}
	return e.Mention
}

type admMention struct {
	Normalized string `json:"normalized"`
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entity{raw: raw}
	for key, dst := range map[string]*string{
		"entityId":   &e.EntityID,
		"mention":    &e.Mention,
		"normalized": &e.Normalized,
		"type":       &e.Type,
	} {
		if v, ok := raw[key]; ok {
			// Non-string values stay in raw only.
			_ = json.Unmarshal(v, dst)
		}
	}
	if e.Normalized == "" {
		e.Normalized = headMention(raw)
	}
	if v, ok := raw["wikipedia"]; ok {
		var rec wikipedia.Record
		if err := json.Unmarshal(v, &rec); err == nil {
			e.Wikipedia = &rec
		}
	}
	return nil
}

// headMention reads the normalized text of the head mention of an annotated
// document entity.
func headMention(raw map[string]json.RawMessage) string {
	var mentions []admMention
	if err := json.Unmarshal(raw["mentions"], &mentions); err != nil || len(mentions) == 0 {
		return ""
	}
	var head int
	_ = json.Unmarshal(raw["headMentionIndex"], &head)
	if head < 0 || head >= len(mentions) {
		head = 0
	}
	return mentions[head].Normalized
}

func (e *Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.raw)+1)
	for k, v := range e.raw {
		out[k] = v
	}
	for key, v := range map[string]string{
		"entityId": e.EntityID,
		"mention":  e.Mention,
		"type":     e.Type,
	} {
		if _, ok := out[key]; !ok && v != "" {
			out[key] = v
		}
	}
	if e.Wikipedia != nil {
		out["wikipedia"] = *e.Wikipedia
	}
	return marshal(out)
}

// Document is an extraction result in either of the shapes the service
// produces: the flat {"entities": [...]} answer or the annotated data model
// returned for verbose requests, where entities live under
// attributes.entities.items.
type Document struct {
	root     map[string]json.RawMessage
	attrs    map[string]json.RawMessage
	entAttr  map[string]json.RawMessage
	entities []*Entity
}

// ErrNotObject is returned for result bodies that are not JSON objects.
var ErrNotObject = errors.New("extract: document is not a JSON object")

// ParseDocument decodes a result body.
func ParseDocument(data []byte) (*Document, error) {
	d := &Document{}
	if err := json.Unmarshal(data, &d.root); err != nil || d.root == nil {
		return nil, ErrNotObject
	}

	items := d.root["entities"]
	if a, ok := d.root["attributes"]; ok {
		if err := json.Unmarshal(a, &d.attrs); err != nil {
			return nil, fmt.Errorf("extract: decode attributes: %w", err)
		}
		if ea, ok := d.attrs["entities"]; ok {
			if err := json.Unmarshal(ea, &d.entAttr); err != nil {
				return nil, fmt.Errorf("extract: decode entities attribute: %w", err)
			}
		}
		items = d.entAttr["items"]
	}
	if len(items) > 0 && string(items) != "null" {
		if err := json.Unmarshal(items, &d.entities); err != nil {
			return nil, fmt.Errorf("extract: decode entities: %w", err)
		}
	}
	return d, nil
}

// Verbose reports whether the document is in the annotated data model.
func (d *Document) Verbose() bool {
	return d.attrs != nil
}

// Entities returns the document's entities in order. The pointers are live:
// changes are reflected when the document is marshaled.
func (d *Document) Entities() []*Entity {
	return d.entities
}

// DetectedLanguage returns the top language detection result of an annotated
// document, or "" when there is none.
func (d *Document) DetectedLanguage() string {
	var detection struct {
		DetectionResults []struct {
			Language string `json:"language"`
		} `json:"detectionResults"`
	}
	if err := json.Unmarshal(d.attrs["languageDetection"], &detection); err != nil {
		return ""
	}
	if len(detection.DetectionResults) == 0 {
		return ""
	}
	return detection.DetectionResults[0].Language
}

func (d *Document) MarshalJSON() ([]byte, error) {
	items, err := marshal(d.entitiesOrEmpty())
	if err != nil {
		return nil, err
	}

	root := copyRaw(d.root)
	if d.attrs == nil {
		if _, ok := root["entities"]; ok || len(d.entities) > 0 {
			root["entities"] = items
		}
		return marshal(root)
	}

	attrs := copyRaw(d.attrs)
	if d.entAttr != nil || len(d.entities) > 0 {
		entAttr := copyRaw(d.entAttr)
		entAttr["items"] = items
		b, err := marshal(entAttr)
		if err != nil {
			return nil, err
		}
		attrs["entities"] = b
	}
	b, err := marshal(attrs)
	if err != nil {
		return nil, err
	}
	root["attributes"] = b
	return marshal(root)
}

func (d *Document) entitiesOrEmpty() []*Entity {
	if d.entities == nil {
		return []*Entity{}
	}
	return d.entities
}

func copyRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// marshal is json.Marshal without HTML escaping; infobox text keeps its '&'.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
