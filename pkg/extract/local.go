package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/japaniel/entipedia/pkg/morph"
)

// LocalLanguage is the only language the local handlers analyze.
const LocalLanguage = "jpn"

// ErrLocalContentURI is returned when a local handler is given a URI; only
// inline content can be analyzed without the service.
var ErrLocalContentURI = errors.New("extract: local analysis needs inline content")

type localTokens struct {
	Language string   `json:"language"`
	Tokens   []string `json:"tokens"`
}

type localSentences struct {
	Language  string   `json:"language"`
	Sentences []string `json:"sentences"`
}

type localMorphology struct {
	Language string        `json:"language"`
	Tokens   []string      `json:"tokens"`
	Lemmas   []string      `json:"lemmas"`
	PosTags  []string      `json:"posTags"`
	Readings []string      `json:"readings"`
	Analysis []morph.Token `json:"analysis,omitempty"`
}

// LocalHandlers answers the morphology, sentences and tokens endpoints for
// Japanese text with an in-process analyzer.
func LocalHandlers(a *morph.Analyzer) map[Endpoint]Handler {
	return map[Endpoint]Handler{
		Tokens: local(func(req Request) any {
			out := localTokens{Language: LocalLanguage, Tokens: []string{}}
			for _, tok := range a.Analyze(req.Content) {
				out.Tokens = append(out.Tokens, tok.Surface)
			}
			return out
		}),
		Sentences: local(func(req Request) any {
			out := localSentences{Language: LocalLanguage, Sentences: []string{}}
			for _, s := range morph.SplitSentences(req.Content) {
				if s = strings.TrimSpace(s); s != "" {
					out.Sentences = append(out.Sentences, s)
				}
			}
			return out
		}),
		Morphology: local(func(req Request) any {
			tokens := a.Analyze(req.Content)
			out := localMorphology{
				Language: LocalLanguage,
				Tokens:   make([]string, 0, len(tokens)),
				Lemmas:   make([]string, 0, len(tokens)),
				PosTags:  make([]string, 0, len(tokens)),
				Readings: make([]string, 0, len(tokens)),
			}
			for _, tok := range tokens {
				out.Tokens = append(out.Tokens, tok.Surface)
				out.Lemmas = append(out.Lemmas, tok.BaseForm)
				out.PosTags = append(out.PosTags, tok.PrimaryPOS)
				out.Readings = append(out.Readings, morph.ToHiragana(tok.Reading))
			}
			if req.Verbose {
				out.Analysis = tokens
			}
			return out
		}),
	}
}

func local(analyze func(Request) any) Handler {
	return func(ctx context.Context, req Request) (json.RawMessage, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if req.ContentURI != "" {
			return nil, ErrLocalContentURI
		}
		if req.Language != "" && req.Language != LocalLanguage {
			return nil, fmt.Errorf("extract: local analysis supports %q only, got %q", LocalLanguage, req.Language)
		}
		return json.Marshal(analyze(req))
	}
}
