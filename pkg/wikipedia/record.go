package wikipedia

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PageURLFormat builds a reader-facing article URL from a language code and a
// title with underscores.
const PageURLFormat = "https://%s.wikipedia.org/wiki/%s"

// Record is the supplementary data attached to an entity: the article's
// infobox, selected Wikidata claims, the canonical title and the article URL.
// The zero Record stands for "no article" and encodes as {}.
type Record struct {
	Infobox  map[string]string `json:"infobox"`
	Wikidata map[string]any    `json:"wikidata"`
	Title    string            `json:"title"`
	URL      string            `json:"url"`
}

// PageURL returns the article URL for a title on the given language edition.
func PageURL(lang, title string) string {
	return fmt.Sprintf(PageURLFormat, lang, title)
}

// IsEmpty reports whether r carries no data at all.
func (r Record) IsEmpty() bool {
	return len(r.Infobox) == 0 && len(r.Wikidata) == 0 && r.Title == "" && r.URL == ""
}

// MarshalJSON encodes an empty record as {} and any other record with all
// four fields, so a found article without an infobox still shows "infobox": {}.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.IsEmpty() {
		return []byte("{}"), nil
	}
	type plain Record
	p := plain(r)
	if p.Infobox == nil {
		p.Infobox = map[string]string{}
	}
	if p.Wikidata == nil {
		p.Wikidata = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
