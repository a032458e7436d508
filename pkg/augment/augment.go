// Package augment attaches Wikipedia data to extracted entities.
//
// A pass resolves the requested language once, then looks up every entity
// that carries a Wikidata ID. Lookups are memoized in a Cache shared across
// passes, and results are only written to the entities after every lookup
// has succeeded.
package augment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/japaniel/entipedia/pkg/extract"
	"github.com/japaniel/entipedia/pkg/iso639"
	"github.com/japaniel/entipedia/pkg/logging"
	"github.com/japaniel/entipedia/pkg/wikipedia"
	"github.com/sirupsen/logrus"
)

// PageFetcher looks up the Wikipedia record for a Wikidata item on the
// edition with the given two-letter code.
type PageFetcher interface {
	Fetch(ctx context.Context, qid, lang string) (wikipedia.Record, error)
}

// ResolutionError means the requested language has no Wikipedia edition
// code. No entity is modified when it is returned.
type ResolutionError struct {
	Language string
	KeyField string
	Reason   string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("augment: cannot resolve language %q by %s: %s", e.Language, e.KeyField, e.Reason)
}

// ErrNoResolvedEntities is reported as a warning when no entity carries a
// Wikidata ID.
var ErrNoResolvedEntities = errors.New("augment: no entities are linked to Wikidata")

// Warnings are non-fatal conditions met during a pass.
type Warnings []error

// Augmenter runs augmentation passes.
type Augmenter struct {
	// Table maps the pass language to its record. Nil uses the 639-2/T table.
	Table   *iso639.Table
	Fetcher PageFetcher
	// Cache is shared by every pass run with this Augmenter. Nil means no
	// reuse across passes.
	Cache  *Cache
	Logger logrus.FieldLogger
	// Workers is the number of concurrent lookups; 1 or less is sequential.
	Workers int
}

// New returns an Augmenter over the default table with a fresh cache.
func New(fetcher PageFetcher) (*Augmenter, error) {
	table, err := iso639.Build(iso639.DefaultKey)
	if err != nil {
		return nil, err
	}
	return &Augmenter{
		Table:   table,
		Fetcher: fetcher,
		Cache:   NewCache(),
		Workers: 1,
	}, nil
}

type lookup struct {
	index int
	key   Key
}

// Augment attaches a Wikipedia record to every entity in entities that has a
// Wikidata ID, using the edition for lang (an ISO 639-2/T code). Entities
// without a page get an empty record. Other entities, and the order of the
// slice, are left alone.
func (a *Augmenter) Augment(ctx context.Context, entities []*extract.Entity, lang string) (Warnings, error) {
	log := a.logger()

	code, err := a.resolve(lang)
	if err != nil {
		return nil, err
	}

	var lookups []lookup
	for i, e := range entities {
		if e == nil || !e.HasKnowledgeBaseID() {
			continue
		}
		lookups = append(lookups, lookup{index: i, key: Key{ID: e.EntityID, Lang: code, Mention: e.CacheMention()}})
	}
	if len(lookups) == 0 {
		log.WithField("entities", len(entities)).Warn(ErrNoResolvedEntities.Error())
		return Warnings{ErrNoResolvedEntities}, nil
	}

	cache := a.Cache
	if cache == nil {
		cache = NewCache()
	}

	records := make([]wikipedia.Record, len(lookups))
	if a.Workers <= 1 {
		for i, l := range lookups {
			rec, err := cache.Get(ctx, l.key, a.fetcher(l.key, log))
			if err != nil {
				return nil, err
			}
			records[i] = rec
		}
	} else if err := a.parallel(ctx, cache, lookups, records, log); err != nil {
		return nil, err
	}

	for i, l := range lookups {
		rec := records[i]
		entities[l.index].Wikipedia = &rec
	}
	log.WithFields(logrus.Fields{
		"entities": len(lookups),
		"hits":     cache.Hits(),
		"misses":   cache.Misses(),
	}).Debug("augmentation pass complete")
	return nil, nil
}

func (a *Augmenter) resolve(lang string) (string, error) {
	table := a.Table
	if table == nil {
		var err error
		if table, err = iso639.Build(iso639.DefaultKey); err != nil {
			return "", err
		}
	}
	rec, ok := table.Lookup(lang)
	if !ok {
		return "", &ResolutionError{Language: lang, KeyField: table.KeyField(), Reason: "unknown code"}
	}
	code := rec.Get(iso639.Field6391)
	if code == "" {
		return "", &ResolutionError{Language: lang, KeyField: table.KeyField(), Reason: "no 639-1 code"}
	}
	return code, nil
}

func (a *Augmenter) fetcher(k Key, log logrus.FieldLogger) func(context.Context) (wikipedia.Record, error) {
	return func(ctx context.Context) (wikipedia.Record, error) {
		fields := logrus.Fields{"qid": k.ID, "lang": k.Lang, "mention": k.Mention}
		log.WithFields(fields).Infof("fetching %s.wikipedia.org page for entity %s", k.Lang, k.ID)
		rec, err := a.Fetcher.Fetch(ctx, k.ID, k.Lang)
		switch {
		case errors.Is(err, wikipedia.ErrPageNotFound):
			log.WithFields(fields).Info("no wikipedia page for entity")
			return wikipedia.Record{}, nil
		case err != nil:
			return wikipedia.Record{}, fmt.Errorf("augment %s: %w", k.ID, err)
		}
		return rec, nil
	}
}

// parallel fills records using a worker pool. The first failure cancels the
// remaining lookups.
func (a *Augmenter) parallel(ctx context.Context, cache *Cache, lookups []lookup, records []wikipedia.Record, log logrus.FieldLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		firstErr error
		done     int
	)
	pool := NewWorkerPool(a.Workers, len(lookups))
	pool.Start(ctx)
	for i, l := range lookups {
		i, l := i, l
		err := pool.Submit(func(ctx context.Context) error {
			rec, err := cache.Get(ctx, l.key, a.fetcher(l.key, log))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return err
			}
			records[i] = rec
			done++
			return nil
		})
		if err != nil {
			pool.Close()
			return err
		}
	}
	pool.Close()

	if firstErr != nil {
		return firstErr
	}
	if done != len(lookups) {
		// Workers stop early only when ctx is canceled.
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("augment: %d of %d lookups did not run", len(lookups)-done, len(lookups))
	}
	return nil
}

func (a *Augmenter) logger() logrus.FieldLogger {
	if a.Logger != nil {
		return a.Logger
	}
	return logging.Discard()
}
