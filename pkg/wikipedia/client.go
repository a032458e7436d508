// Package wikipedia resolves Wikidata QIDs to Wikipedia articles.
//
// A lookup reads the item from Wikidata to find the article title on the
// requested language edition and the item's claims, then reads the article's
// wikitext from that edition to extract its infobox.
package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/japaniel/entipedia/pkg/logging"
	"github.com/japaniel/entipedia/pkg/wikitext"
	"github.com/sirupsen/logrus"
)

const (
	DefaultWikidataURL  = "https://www.wikidata.org/w/api.php"
	DefaultWikipediaURL = "https://%s.wikipedia.org/w/api.php"
	DefaultTimeout      = 15 * time.Second
	DefaultUserAgent    = "entipedia/0.1 (https://github.com/japaniel/entipedia)"

	// maxBodySize bounds every API response.
	maxBodySize = 20 * 1024 * 1024
	// labelBatch is the most ids wbgetentities accepts per request.
	labelBatch = 50
)

// ErrPageNotFound reports that the item or its article does not exist on the
// requested language edition.
var ErrPageNotFound = errors.New("wikipedia: page not found")

// Page is the raw result of a lookup.
type Page struct {
	QID      string
	Lang     string
	Title    string
	Wikitext string
	Wikidata map[string]any
}

// Record converts the page into the supplementary record attached to entities.
func (p *Page) Record() Record {
	return Record{
		Infobox:  wikitext.Infobox(p.Wikitext),
		Wikidata: p.Wikidata,
		Title:    p.Title,
		URL:      PageURL(p.Lang, p.Title),
	}
}

// Client talks to the Wikidata and MediaWiki action APIs.
type Client struct {
	HTTPClient *http.Client
	// WikidataURL is the Wikidata api.php endpoint.
	WikidataURL string
	// WikipediaURL is a format string taking the language code.
	WikipediaURL string
	UserAgent    string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

// NewClient returns a client for the public Wikimedia endpoints.
func NewClient() *Client {
	return &Client{
		HTTPClient:   &http.Client{},
		WikidataURL:  DefaultWikidataURL,
		WikipediaURL: DefaultWikipediaURL,
		UserAgent:    DefaultUserAgent,
		Timeout:      DefaultTimeout,
	}
}

// Fetch looks up the article for qid on the lang edition and returns its
// supplementary record. A missing article is ErrPageNotFound.
func (c *Client) Fetch(ctx context.Context, qid, lang string) (Record, error) {
	page, err := c.Page(ctx, qid, lang)
	if err != nil {
		return Record{}, err
	}
	return page.Record(), nil
}

// Page looks up qid and the article it links to on the lang edition.
func (c *Client) Page(ctx context.Context, qid, lang string) (*Page, error) {
	item, err := c.item(ctx, qid, lang)
	if err != nil {
		return nil, err
	}
	link, ok := item.Sitelinks[lang+"wiki"]
	if !ok || link.Title == "" {
		return nil, fmt.Errorf("%w: %s has no %swiki article", ErrPageNotFound, qid, lang)
	}

	claims, err := c.claims(ctx, item, lang)
	if err != nil {
		return nil, err
	}

	text, err := c.wikitext(ctx, link.Title, lang)
	if err != nil {
		return nil, err
	}

	return &Page{
		QID:      qid,
		Lang:     lang,
		Title:    strings.ReplaceAll(link.Title, " ", "_"),
		Wikitext: text,
		Wikidata: claims,
	}, nil
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type entitiesResponse struct {
	Entities map[string]entity `json:"entities"`
	Error    *apiError         `json:"error"`
}

type entity struct {
	ID      string  `json:"id"`
	Missing *string `json:"missing"`
	Labels  map[string]struct {
		Value string `json:"value"`
	} `json:"labels"`
	Sitelinks map[string]struct {
		Title string `json:"title"`
	} `json:"sitelinks"`
	Claims map[string][]claim `json:"claims"`
}

type claim struct {
	Mainsnak struct {
		Snaktype  string `json:"snaktype"`
		Datavalue struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
	Rank string `json:"rank"`
}

func (c *Client) item(ctx context.Context, qid, lang string) (*entity, error) {
	q := url.Values{}
	q.Set("action", "wbgetentities")
	q.Set("ids", qid)
	q.Set("props", "sitelinks|claims|labels")
	q.Set("sitefilter", lang+"wiki")
	q.Set("languages", lang)
	q.Set("format", "json")

	var resp entitiesResponse
	if err := c.getJSON(ctx, c.WikidataURL, q, &resp); err != nil {
		return nil, fmt.Errorf("wikidata %s: %w", qid, err)
	}
	if resp.Error != nil {
		if resp.Error.Code == "no-such-entity" {
			return nil, fmt.Errorf("%w: %s", ErrPageNotFound, resp.Error.Info)
		}
		return nil, fmt.Errorf("wikidata %s: %s: %s", qid, resp.Error.Code, resp.Error.Info)
	}
	item, ok := resp.Entities[qid]
	if !ok || item.Missing != nil {
		return nil, fmt.Errorf("%w: no wikidata item %s", ErrPageNotFound, qid)
	}
	return &item, nil
}

// claims keeps the known properties of item, resolving item-valued claims to
// their labels. A property with one value maps to that value, otherwise to the
// list of values in claim order.
func (c *Client) claims(ctx context.Context, item *entity, lang string) (map[string]any, error) {
	type pending struct {
		name   string
		values []string
		ids    []bool
	}
	var collected []pending
	var itemIDs []string

	for pid, list := range item.Claims {
		name, ok := properties[pid]
		if !ok {
			continue
		}
		p := pending{name: name}
		for _, cl := range list {
			if cl.Rank == "deprecated" || cl.Mainsnak.Snaktype != "value" {
				continue
			}
			v, isItem := datavalue(cl.Mainsnak.Datavalue.Type, cl.Mainsnak.Datavalue.Value)
			if v == "" {
				continue
			}
			p.values = append(p.values, v)
			p.ids = append(p.ids, isItem)
			if isItem {
				itemIDs = append(itemIDs, v)
			}
		}
		if len(p.values) > 0 {
			collected = append(collected, p)
		}
	}

	labels, err := c.labels(ctx, itemIDs, lang)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(collected))
	for _, p := range collected {
		values := make([]string, len(p.values))
		for i, v := range p.values {
			if p.ids[i] {
				if label, ok := labels[v]; ok {
					v = label
				}
			}
			values[i] = v
		}
		if len(values) == 1 {
			out[p.name] = values[0]
		} else {
			out[p.name] = values
		}
	}
	return out, nil
}

// datavalue renders a claim value as text. The bool reports an item id that
// still needs a label.
func datavalue(typ string, raw json.RawMessage) (string, bool) {
	switch typ {
	case "string":
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s, false
		}
	case "wikibase-entityid":
		var v struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(raw, &v) == nil {
			return v.ID, strings.HasPrefix(v.ID, "Q")
		}
	case "time":
		var v struct {
			Time string `json:"time"`
		}
		if json.Unmarshal(raw, &v) == nil {
			return strings.TrimPrefix(v.Time, "+"), false
		}
	case "quantity":
		var v struct {
			Amount string `json:"amount"`
		}
		if json.Unmarshal(raw, &v) == nil {
			return strings.TrimPrefix(v.Amount, "+"), false
		}
	case "monolingualtext":
		var v struct {
			Text string `json:"text"`
		}
		if json.Unmarshal(raw, &v) == nil {
			return v.Text, false
		}
	case "globecoordinate":
		var v struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		}
		if json.Unmarshal(raw, &v) == nil {
			return fmt.Sprintf("%g,%g", v.Latitude, v.Longitude), false
		}
	}
	return "", false
}

// labels returns the lang label of each id, falling back to English.
func (c *Client) labels(ctx context.Context, ids []string, lang string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ids = dedupe(ids)

	languages := lang
	if lang != "en" {
		languages = lang + "|en"
	}
	for start := 0; start < len(ids); start += labelBatch {
		end := start + labelBatch
		if end > len(ids) {
			end = len(ids)
		}
		q := url.Values{}
		q.Set("action", "wbgetentities")
		q.Set("ids", strings.Join(ids[start:end], "|"))
		q.Set("props", "labels")
		q.Set("languages", languages)
		q.Set("format", "json")

		var resp entitiesResponse
		if err := c.getJSON(ctx, c.WikidataURL, q, &resp); err != nil {
			return nil, fmt.Errorf("wikidata labels: %w", err)
		}
		for id, e := range resp.Entities {
			if l, ok := e.Labels[lang]; ok {
				out[id] = l.Value
			} else if l, ok := e.Labels["en"]; ok {
				out[id] = l.Value
			}
		}
	}
	return out, nil
}

type parseResponse struct {
	Parse *struct {
		Title    string `json:"title"`
		Wikitext string `json:"wikitext"`
	} `json:"parse"`
	Error *apiError `json:"error"`
}

func (c *Client) wikitext(ctx context.Context, title, lang string) (string, error) {
	q := url.Values{}
	q.Set("action", "parse")
	q.Set("page", title)
	q.Set("prop", "wikitext")
	q.Set("redirects", "1")
	q.Set("format", "json")
	q.Set("formatversion", "2")

	var resp parseResponse
	if err := c.getJSON(ctx, fmt.Sprintf(c.WikipediaURL, lang), q, &resp); err != nil {
		return "", fmt.Errorf("%swiki %q: %w", lang, title, err)
	}
	if resp.Error != nil {
		if resp.Error.Code == "missingtitle" {
			return "", fmt.Errorf("%w: %q on %s.wikipedia.org", ErrPageNotFound, title, lang)
		}
		return "", fmt.Errorf("%swiki %q: %s: %s", lang, title, resp.Error.Code, resp.Error.Info)
	}
	if resp.Parse == nil {
		return "", fmt.Errorf("%swiki %q: empty parse response", lang, title)
	}
	return resp.Parse.Wikitext, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, v any) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return err
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	// Wikimedia rejects requests without a descriptive User-Agent.
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c.logger().WithField("url", req.URL.Redacted()).Debug("wikimedia request")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) logger() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.Discard()
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
