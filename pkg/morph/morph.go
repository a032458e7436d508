// Package morph segments and tokenizes Japanese text with kagome and the IPA
// dictionary. It backs the extraction endpoints that can be answered without
// the remote service.
package morph

import (
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Token is a single analyzed unit of text.
type Token struct {
	Surface       string   `json:"surface"`            // The text as it appears (e.g. "行っ")
	BaseForm      string   `json:"lemma"`              // The dictionary form (e.g. "行く")
	Reading       string   `json:"reading,omitempty"`  // Katakana pronunciation (e.g. "イッ")
	PartsOfSpeech []string `json:"features,omitempty"` // Kagome IPA feature labels
	// PrimaryPOS is the first part of speech if available.
	PrimaryPOS string `json:"pos,omitempty"`
}

// Sentence is a sentence together with its tokens.
type Sentence struct {
	Text   string  `json:"text"`
	Tokens []Token `json:"tokens"`
}

// Analyzer wraps a kagome tokenizer. It is safe for concurrent use.
type Analyzer struct {
	t *tokenizer.Tokenizer
}

// NewAnalyzer creates a tokenizer over the IPA dictionary.
func NewAnalyzer() (*Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Analyzer{t: t}, nil
}

// Analyze breaks text into tokens with readings and base forms. Whitespace
// tokens and unknown dummy nodes are dropped.
func (a *Analyzer) Analyze(text string) []Token {
	var result []Token
	for _, token := range a.t.Tokenize(text) {
		if token.Class == tokenizer.DUMMY || strings.TrimSpace(token.Surface) == "" {
			continue
		}

		// IPA features:
		// 0: Part of Speech, 1-3: Sub-POS, 4: Conjugation Type,
		// 5: Conjugation Form, 6: Base Form, 7: Reading, 8: Pronunciation
		features := token.Features()

		base := token.Surface
		if len(features) > 6 && features[6] != "*" {
			base = features[6]
		}
		reading := ""
		if len(features) > 7 && features[7] != "*" {
			reading = features[7]
		}
		primaryPOS := ""
		if len(features) > 0 {
			primaryPOS = features[0]
		}

		result = append(result, Token{
			Surface:       token.Surface,
			BaseForm:      base,
			Reading:       reading,
			PartsOfSpeech: features,
			PrimaryPOS:    primaryPOS,
		})
	}
	return result
}

// AnalyzeDocument splits text into sentences and tokenizes each one.
// Blank sentences are skipped.
func (a *Analyzer) AnalyzeDocument(text string) []Sentence {
	var result []Sentence
	for _, s := range SplitSentences(text) {
		if strings.TrimSpace(s) == "" {
			continue
		}
		result = append(result, Sentence{
			Text:   s,
			Tokens: a.Analyze(s),
		})
	}
	return result
}

// SplitSentences splits on 。！？ and newlines, keeping each delimiter with
// the sentence it ends.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '。' || r == '！' || r == '？' || r == '\n' {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}
