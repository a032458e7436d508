package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/japaniel/entipedia/pkg/augment"
	"github.com/japaniel/entipedia/pkg/config"
	"github.com/japaniel/entipedia/pkg/content"
	"github.com/japaniel/entipedia/pkg/extract"
	"github.com/japaniel/entipedia/pkg/logging"
	"github.com/japaniel/entipedia/pkg/morph"
	"github.com/japaniel/entipedia/pkg/wikipedia"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// autoLanguage asks for the language the service detected in the document.
const autoLanguage = "auto"

// app carries the process streams so commands can run in tests.
type app struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	prompt  func() (string, error)
	dotenv  []string
	fetcher *content.Fetcher
}

func newApp() *app {
	return &app{
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		prompt:  terminalPrompt(os.Stdin, os.Stderr),
		fetcher: content.NewFetcher(),
	}
}

type rootOptions struct {
	input             string
	contentURI        bool
	language          string
	wikipediaLanguage string
	verbose           bool
	readable          bool
	endpoint          string
	local             bool
}

func newRootCmd(a *app) *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   "entipedia",
		Short: "Augment extracted entities with Wikipedia and Wikidata",
		Long: `entipedia sends a document to a Rosette-style entity extraction service and
attaches, to every entity linked to a Wikidata item, the Wikipedia infobox and
selected Wikidata claims for that item. The augmented result is printed as
JSON on stdout; diagnostics go to stderr.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, opts)
		},
	}
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "file with the input document, or the document itself (default stdin)")
	f.BoolVarP(&opts.contentURI, "content-uri", "u", false, "treat the input as a URI for the service to fetch")
	f.StringVarP(&opts.language, "language", "l", "", "ISO 639-2/T code overriding the service's language detection")
	f.StringVarP(&opts.wikipediaLanguage, "wikipedia-language", "w", "", `ISO 639-2/T code of the Wikipedia edition to use, or "auto" for the detected language`)
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "request the full annotated document")
	f.BoolVar(&opts.readable, "readable", false, "with --content-uri, fetch the page locally and send its readable text")
	f.StringVarP(&opts.endpoint, "endpoint", "e", "entities", "endpoint to call ("+strings.Join(extract.EndpointNames(), ", ")+"); only entities is augmented")
	f.BoolVar(&opts.local, "local", false, "answer morphology, sentences and tokens locally for Japanese text")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newLanguageCmd(a))
	return cmd
}

func (a *app) run(cmd *cobra.Command, opts rootOptions) error {
	ctx := cmd.Context()

	endpoint, err := extract.ParseEndpoint(opts.endpoint)
	if err != nil {
		return err
	}
	if endpoint == extract.Entities && opts.wikipediaLanguage == "" {
		return errors.New(`required flag "wikipedia-language" not set`)
	}
	if opts.readable && !opts.contentURI {
		return errors.New("--readable needs --content-uri")
	}

	cfg, err := config.Load(cmd.Flags(), config.Options{DotEnv: a.dotenv})
	if err != nil {
		return err
	}
	log, closeLog := a.logger(cfg)
	defer closeLog()

	req, err := a.request(ctx, opts, log)
	if err != nil {
		return err
	}

	dispatcher, err := a.dispatcher(cfg, opts, endpoint, log)
	if err != nil {
		return err
	}

	if endpoint != extract.Entities {
		log.WithField("endpoint", endpoint.String()).Info("calling extraction service")
		raw, err := dispatcher.Handle(ctx, endpoint, req)
		if err != nil {
			return err
		}
		return a.writeJSON(raw)
	}

	log.Info("extracting entities")
	doc, err := dispatcher.Extract(ctx, req)
	if err != nil {
		return err
	}
	log.WithField("entities", len(doc.Entities())).Info("extraction done")

	lang := opts.wikipediaLanguage
	if lang == autoLanguage {
		if lang = doc.DetectedLanguage(); lang == "" {
			return errors.New("no detected language in the result; pass --verbose or an explicit --wikipedia-language")
		}
		log.WithField("language", lang).Info("using detected language")
	}

	aug, err := augment.New(a.wikipediaClient(cfg, log))
	if err != nil {
		return err
	}
	aug.Logger = log
	aug.Workers = cfg.Workers

	log.Info("augmenting entities via Wikimedia")
	if _, err := aug.Augment(ctx, doc.Entities(), lang); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"fetched": aug.Cache.Misses(), "reused": aug.Cache.Hits()}).Info("augmentation done")
	return a.writeJSON(doc)
}

func (a *app) logger(cfg *config.Config) (*logrus.Logger, func()) {
	if cfg.LogFile == "" {
		return logging.New(a.stderr, cfg.LogLevel), func() {}
	}
	w := logging.FileWriter(cfg.LogFile)
	return logging.New(w, cfg.LogLevel), func() { _ = w.Close() }
}

// request builds the extraction request from the input options.
func (a *app) request(ctx context.Context, opts rootOptions, log logrus.FieldLogger) (extract.Request, error) {
	text, err := content.Load(opts.input, a.stdin)
	if err != nil {
		return extract.Request{}, err
	}
	req := extract.Request{Language: opts.language, Verbose: opts.verbose}
	if !opts.contentURI {
		req.Content = text
		return req, nil
	}

	uri := content.QuoteURI(strings.TrimSpace(text))
	if !opts.readable {
		req.ContentURI = uri
		return req, nil
	}
	log.WithField("uri", uri).Info("fetching article")
	article, err := a.fetcher.FetchArticle(ctx, uri)
	if err != nil {
		return extract.Request{}, err
	}
	log.WithFields(logrus.Fields{"title": article.Title, "chars": len(article.Text)}).Info("article extracted")
	req.Content = article.Text
	return req, nil
}

// dispatcher wires the handlers the run needs. The API key is only resolved
// when the remote service will be called.
func (a *app) dispatcher(cfg *config.Config, opts rootOptions, e extract.Endpoint, log logrus.FieldLogger) (*extract.Dispatcher, error) {
	var local map[extract.Endpoint]extract.Handler
	if opts.local {
		analyzer, err := morph.NewAnalyzer()
		if err != nil {
			return nil, fmt.Errorf("load morphological analyzer: %w", err)
		}
		local = extract.LocalHandlers(analyzer)
		if _, ok := local[e]; ok {
			return extract.NewDispatcher(local), nil
		}
	}

	key := cfg.UserKey
	if key == "" {
		var err error
		if key, err = a.prompt(); err != nil {
			return nil, err
		}
	}
	client := extract.NewClient(cfg.APIURL, key)
	client.Timeout = cfg.ExtractTimeout
	client.Logger = log
	return extract.NewDispatcher(client.Handlers(), local), nil
}

func (a *app) wikipediaClient(cfg *config.Config, log logrus.FieldLogger) *wikipedia.Client {
	c := wikipedia.NewClient()
	c.WikidataURL = cfg.WikidataURL
	c.WikipediaURL = cfg.WikipediaURL
	c.UserAgent = cfg.UserAgent
	c.Timeout = cfg.Timeout
	c.Logger = log
	return c
}

// writeJSON prints v indented by two spaces without HTML escaping.
func (a *app) writeJSON(v any) error {
	if raw, ok := v.(json.RawMessage); ok {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(a.stdout)
		return err
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
