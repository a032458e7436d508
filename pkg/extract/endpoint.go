// Package extract talks to a Rosette-style text analytics service and models
// the documents it returns.
//
// Endpoints are selected with the Endpoint enum and served by a Dispatcher,
// which maps each endpoint to a Handler. The HTTP Client registers handlers
// for every endpoint; LocalHandlers can stand in for the Japanese morphology,
// tokens and sentences endpoints without a network round trip.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Endpoint selects one analytics operation.
type Endpoint int

const (
	Entities Endpoint = iota + 1
	Language
	Morphology
	Sentences
	Tokens
)

var endpointPaths = map[Endpoint]string{
	Entities:   "entities",
	Language:   "language",
	Morphology: "morphology/complete",
	Sentences:  "sentences",
	Tokens:     "tokens",
}

// String returns the endpoint's URL path below the API root.
func (e Endpoint) String() string {
	if p, ok := endpointPaths[e]; ok {
		return p
	}
	return fmt.Sprintf("Endpoint(%d)", int(e))
}

// ParseEndpoint maps a name such as "entities" or "morphology" to its
// Endpoint.
func ParseEndpoint(name string) (Endpoint, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for e, p := range endpointPaths {
		if name == p || name == strings.SplitN(p, "/", 2)[0] {
			return e, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (valid: %s)", ErrUnsupportedEndpoint, name, strings.Join(EndpointNames(), ", "))
}

// EndpointNames lists the short names ParseEndpoint accepts.
func EndpointNames() []string {
	names := make([]string, 0, len(endpointPaths))
	for _, p := range endpointPaths {
		names = append(names, strings.SplitN(p, "/", 2)[0])
	}
	sort.Strings(names)
	return names
}

// ErrUnsupportedEndpoint is returned for an endpoint with no handler.
var ErrUnsupportedEndpoint = errors.New("extract: unsupported endpoint")

// Request is the document sent to an endpoint. Exactly one of Content and
// ContentURI is set. Language is an optional ISO 639-2/T override of the
// service's own language detection.
type Request struct {
	Content    string `json:"content,omitempty"`
	ContentURI string `json:"contentUri,omitempty"`
	Language   string `json:"language,omitempty"`
	// Verbose asks for the full annotated document instead of the flat result.
	Verbose bool `json:"-"`
}

func (r Request) validate() error {
	switch {
	case r.Content == "" && r.ContentURI == "":
		return errors.New("extract: request has no content")
	case r.Content != "" && r.ContentURI != "":
		return errors.New("extract: request sets both content and contentUri")
	}
	return nil
}

// Handler answers one endpoint.
type Handler func(ctx context.Context, req Request) (json.RawMessage, error)

// Dispatcher routes requests to the handler registered for their endpoint.
type Dispatcher struct {
	handlers map[Endpoint]Handler
}

// NewDispatcher returns a dispatcher with the given handlers registered.
// Later maps override earlier ones for the same endpoint.
func NewDispatcher(handlers ...map[Endpoint]Handler) *Dispatcher {
	d := &Dispatcher{handlers: make(map[Endpoint]Handler)}
	for _, hs := range handlers {
		for e, h := range hs {
			d.Register(e, h)
		}
	}
	return d
}

// Register sets the handler for e.
func (d *Dispatcher) Register(e Endpoint, h Handler) {
	d.handlers[e] = h
}

// Handle validates req and passes it to the handler for e.
func (d *Dispatcher) Handle(ctx context.Context, e Endpoint, req Request) (json.RawMessage, error) {
	h, ok := d.handlers[e]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEndpoint, e)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	return h(ctx, req)
}

// Extract runs the entities endpoint and parses the result.
func (d *Dispatcher) Extract(ctx context.Context, req Request) (*Document, error) {
	raw, err := d.Handle(ctx, Entities, req)
	if err != nil {
		return nil, err
	}
	return ParseDocument(raw)
}
