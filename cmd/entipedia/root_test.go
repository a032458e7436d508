package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/japaniel/entipedia/pkg/augment"
	"github.com/japaniel/entipedia/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flatEntities = `{"entities": [
  {"type": "PERSON", "mention": "Count", "normalized": "Count von Count", "count": 1, "entityId": "Q12345"},
  {"type": "LOCATION", "mention": "Sesame Street", "count": 1, "entityId": "T1"}
]}`

const admEntities = `{
  "version": "1.1.0",
  "data": "The Count lives on Sesame Street.",
  "attributes": {
    "languageDetection": {"detectionResults": [{"language": "eng", "confidence": 0.98}]},
    "entities": {"type": "list", "itemType": "entities", "items": [
      {"entityId": "Q12345", "type": "PERSON", "headMentionIndex": 0,
       "mentions": [{"startOffset": 4, "endOffset": 9, "normalized": "Count"}]}
    ]}
  }
}`

const wikidataItem = `{"entities": {"Q12345": {"id": "Q12345",
  "sitelinks": {"enwiki": {"site": "enwiki", "title": "Count von Count"}},
  "claims": {"P345": [{"mainsnak": {"snaktype": "value", "property": "P345",
    "datavalue": {"type": "string", "value": "ch0000709"}}, "rank": "normal"}]}}}}`

const parsedPage = `{"parse": {"title": "Count von Count",
  "wikitext": "{{Infobox character\n| name = Count von Count\n| species = Muppet [[vampire]]\n}}"}}`

type fakeServices struct {
	*httptest.Server
	mu       sync.Mutex
	key      string
	query    string
	body     map[string]string
	extracts int
}

func newFakeServices(t *testing.T) *fakeServices {
	t.Helper()
	f := &fakeServices{}
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.extracts++
		f.key = r.Header.Get("X-RosetteAPI-Key")
		f.query = r.URL.RawQuery
		f.body = nil
		_ = json.Unmarshal(b, &f.body)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/rest/v1/entities" && r.URL.Query().Get("output") == "rosette":
			_, _ = w.Write([]byte(admEntities))
		case r.URL.Path == "/rest/v1/entities":
			_, _ = w.Write([]byte(flatEntities))
		case r.URL.Path == "/rest/v1/language":
			_, _ = w.Write([]byte(`{"languageDetections": [{"language": "eng", "confidence": 0.9}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code": "notFound", "message": "no such endpoint"}`))
		}
	})
	mux.HandleFunc("/wikidata", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") == "Q12345" {
			_, _ = w.Write([]byte(wikidataItem))
			return
		}
		_, _ = w.Write([]byte(`{"error": {"code": "no-such-entity", "info": "missing"}}`))
	})
	mux.HandleFunc("/en/api.php", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(parsedPage))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)

	for _, name := range []string{"ROSETTE_USER_KEY", "ENTIPEDIA_USER_KEY", "ENTIPEDIA_WORKERS", "ENTIPEDIA_API_URL"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	t.Setenv("ENTIPEDIA_WIKIDATA_URL", f.URL+"/wikidata")
	t.Setenv("ENTIPEDIA_WIKIPEDIA_URL", f.URL+"/%s/api.php")
	return f
}

func (f *fakeServices) apiURL() string { return f.URL + "/rest/v1/" }

type result struct {
	stdout string
	stderr string
	err    error
}

func runCLI(t *testing.T, stdin string, prompt func() (string, error), args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if prompt == nil {
		prompt = func() (string, error) { return "", errNoKey }
	}
	a := &app{
		stdin:   strings.NewReader(stdin),
		stdout:  &stdout,
		stderr:  &stderr,
		prompt:  prompt,
		dotenv:  []string{},
		fetcher: content.NewFetcher(),
	}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestAugmentFlatResult(t *testing.T) {
	f := newFakeServices(t)

	res := runCLI(t, "The Count lives on Sesame Street.", nil, "-a", f.apiURL(), "-k", "secret", "-w", "eng")
	require.NoError(t, res.err, res.stderr)

	var out struct {
		Entities []map[string]json.RawMessage `json:"entities"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	require.Len(t, out.Entities, 2)

	var wiki struct {
		Infobox  map[string]string `json:"infobox"`
		Wikidata map[string]any    `json:"wikidata"`
		Title    string            `json:"title"`
		URL      string            `json:"url"`
	}
	require.NoError(t, json.Unmarshal(out.Entities[0]["wikipedia"], &wiki))
	assert.Equal(t, "Count_von_Count", wiki.Title)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Count_von_Count", wiki.URL)
	assert.Equal(t, map[string]string{"name": "Count von Count", "species": "Muppet vampire"}, wiki.Infobox)
	assert.Equal(t, "ch0000709", wiki.Wikidata["IMDB"])
	assert.NotContains(t, out.Entities[1], "wikipedia")

	assert.Equal(t, "secret", f.key)
	assert.Equal(t, "", f.query)
	assert.Equal(t, map[string]string{"content": "The Count lives on Sesame Street."}, f.body)
	assert.True(t, strings.HasPrefix(res.stdout, "{\n  \""), "output is indented: %q", res.stdout)
	assert.Contains(t, res.stderr, "extracting entities")
}

func TestAugmentVerboseAutoLanguage(t *testing.T) {
	f := newFakeServices(t)
	t.Setenv("ROSETTE_USER_KEY", "from-env")

	res := runCLI(t, "The Count lives on Sesame Street.", nil, "-a", f.apiURL(), "-k", "ignored", "-v", "-w", "auto", "-l", "eng")
	require.NoError(t, res.err, res.stderr)

	var out struct {
		Attributes struct {
			Entities struct {
				Items []map[string]json.RawMessage `json:"items"`
			} `json:"entities"`
		} `json:"attributes"`
		Data string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	require.Len(t, out.Attributes.Entities.Items, 1)
	assert.Contains(t, string(out.Attributes.Entities.Items[0]["wikipedia"]), "Count_von_Count")
	assert.Equal(t, "The Count lives on Sesame Street.", out.Data)

	assert.Equal(t, "from-env", f.key)
	assert.Equal(t, "output=rosette", f.query)
	assert.Equal(t, "eng", f.body["language"])
}

func TestAutoLanguageNeedsDetection(t *testing.T) {
	f := newFakeServices(t)
	res := runCLI(t, "text", nil, "-a", f.apiURL(), "-k", "k", "-w", "auto")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "detected language")
}

func TestContentURI(t *testing.T) {
	f := newFakeServices(t)
	res := runCLI(t, "https://en.wikipedia.org/wiki/Count von Count\n", nil, "-a", f.apiURL(), "-k", "k", "-u", "-w", "eng")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, map[string]string{"contentUri": "https://en.wikipedia.org/wiki/Count%20von%20Count"}, f.body)
}

func TestReadableFetchesLocally(t *testing.T) {
	f := newFakeServices(t)
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Count</title></head><body><article>
<p>Count von Count is a vampire Muppet on the television show Sesame Street, known for his love of counting things.</p>
<p>He has appeared on the show since its fourth season in 1972 and counts bats, spiders and cobwebs.</p>
<p>The Count lives in a castle with his pet bats and an organ that he plays whenever he finishes counting something.
Thunder and lightning follow each of his counts, and he laughs after every number he reaches.</p>
<p>His fondness for numbers has made him a favourite character for teaching children to count from one to ten and beyond.</p>
</article></body></html>`))
	}))
	defer page.Close()

	res := runCLI(t, page.URL+"/count", nil, "-a", f.apiURL(), "-k", "k", "-u", "--readable", "-w", "eng")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, f.body["content"], "vampire Muppet")
	assert.NotContains(t, f.body, "contentUri")
}

func TestMissingWikipediaLanguage(t *testing.T) {
	f := newFakeServices(t)
	res := runCLI(t, "text", nil, "-a", f.apiURL(), "-k", "k")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "wikipedia-language")
	assert.Zero(t, f.extracts)
}

func TestUnknownWikipediaLanguage(t *testing.T) {
	f := newFakeServices(t)
	res := runCLI(t, "text", nil, "-a", f.apiURL(), "-k", "k", "-w", "xx")
	var rerr *augment.ResolutionError
	assert.True(t, errors.As(res.err, &rerr), "%v", res.err)
	assert.Empty(t, res.stdout)
}

func TestKeyPrompt(t *testing.T) {
	f := newFakeServices(t)

	res := runCLI(t, "text", nil, "-a", f.apiURL(), "-w", "eng")
	assert.ErrorIs(t, res.err, errNoKey)
	assert.Zero(t, f.extracts)

	res = runCLI(t, "text", func() (string, error) { return "typed", nil }, "-a", f.apiURL(), "-w", "eng")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "typed", f.key)
}

func TestOtherEndpoint(t *testing.T) {
	f := newFakeServices(t)
	res := runCLI(t, "text", nil, "-a", f.apiURL(), "-k", "k", "-e", "language")
	require.NoError(t, res.err, res.stderr)
	assert.JSONEq(t, `{"languageDetections": [{"language": "eng", "confidence": 0.9}]}`, res.stdout)

	res = runCLI(t, "text", nil, "-a", f.apiURL(), "-k", "k", "-e", "relationships")
	assert.Error(t, res.err)
}

func TestLocalTokensNeedNoKey(t *testing.T) {
	newFakeServices(t)
	res := runCLI(t, "私は東京へ行った。", nil, "--local", "-e", "tokens")
	require.NoError(t, res.err, res.stderr)

	var out struct {
		Tokens []string `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Contains(t, out.Tokens, "東京")
}

func TestLanguageCommand(t *testing.T) {
	res := runCLI(t, "", nil, "language", "deu")
	require.NoError(t, res.err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rec))
	assert.Equal(t, "de", rec["639-1"])
	assert.Equal(t, "German", rec["Language name"])

	res = runCLI(t, "", nil, "language", "--by", "Language name", "German")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `"639-2/T": "deu"`)

	res = runCLI(t, "", nil, "language", "--by", "639-1", "--list")
	require.NoError(t, res.err)
	var keys []string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &keys))
	assert.Contains(t, keys, "de")

	res = runCLI(t, "", nil, "language", "zzz")
	assert.Error(t, res.err)

	res = runCLI(t, "", nil, "language", "--by", "Shoe size", "deu")
	assert.Error(t, res.err)
}
