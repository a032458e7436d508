package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	path  string
	query string
	key   string
	body  map[string]string
}

func newFakeService(t *testing.T, status int, answer string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.query = r.URL.RawQuery
		c.key = r.Header.Get("X-RosetteAPI-Key")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &c.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(answer))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestClientCall(t *testing.T) {
	srv, got := newFakeService(t, http.StatusOK, flatDoc)
	c := NewClient(srv.URL+"/rest/v1/", "secret")

	raw, err := c.Call(context.Background(), Entities, Request{Content: "The Count", Language: "eng"})
	require.NoError(t, err)
	assert.JSONEq(t, flatDoc, string(raw))

	assert.Equal(t, "/rest/v1/entities", got.path)
	assert.Equal(t, "", got.query)
	assert.Equal(t, "secret", got.key)
	assert.Equal(t, map[string]string{"content": "The Count", "language": "eng"}, got.body)
}

func TestClientVerboseAndURI(t *testing.T) {
	srv, got := newFakeService(t, http.StatusOK, admDoc)
	c := NewClient(srv.URL, "k")

	_, err := c.Call(context.Background(), Morphology, Request{ContentURI: "https://example.com/a", Verbose: true})
	require.NoError(t, err)
	assert.Equal(t, "/morphology/complete", got.path)
	assert.Equal(t, "output=rosette", got.query)
	assert.Equal(t, map[string]string{"contentUri": "https://example.com/a"}, got.body)
}

func TestClientAPIError(t *testing.T) {
	srv, _ := newFakeService(t, http.StatusUnauthorized, `{"code": "unauthorized", "message": "bad key"}`)
	c := NewClient(srv.URL, "wrong")

	_, err := c.Call(context.Background(), Entities, Request{Content: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "%v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "unauthorized", apiErr.Code)
	assert.Contains(t, err.Error(), "bad key")
}

func TestClientRejectsNonJSON(t *testing.T) {
	srv, _ := newFakeService(t, http.StatusOK, `<html>`)
	_, err := NewClient(srv.URL, "k").Call(context.Background(), Entities, Request{Content: "x"})
	assert.Error(t, err)
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "k")
	c.Timeout = 50 * time.Millisecond
	_, err := c.Call(context.Background(), Entities, Request{Content: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcher(t *testing.T) {
	srv, got := newFakeService(t, http.StatusOK, flatDoc)
	d := NewDispatcher(NewClient(srv.URL, "k").Handlers())

	doc, err := d.Extract(context.Background(), Request{Content: "The Count"})
	require.NoError(t, err)
	assert.Len(t, doc.Entities(), 2)
	assert.Equal(t, "/entities", got.path)

	_, err = d.Handle(context.Background(), Entities, Request{})
	assert.Error(t, err)
	_, err = d.Handle(context.Background(), Entities, Request{Content: "a", ContentURI: "b"})
	assert.Error(t, err)

	empty := NewDispatcher()
	_, err = empty.Handle(context.Background(), Tokens, Request{Content: "a"})
	assert.ErrorIs(t, err, ErrUnsupportedEndpoint)
}

func TestParseEndpoint(t *testing.T) {
	tests := map[string]Endpoint{
		"entities":            Entities,
		"Language":            Language,
		"morphology":          Morphology,
		"morphology/complete": Morphology,
		" sentences ":         Sentences,
		"tokens":              Tokens,
	}
	for in, want := range tests {
		got, err := ParseEndpoint(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEndpoint("relationships")
	assert.ErrorIs(t, err, ErrUnsupportedEndpoint)
	assert.Equal(t, []string{"entities", "language", "morphology", "sentences", "tokens"}, EndpointNames())
	assert.Equal(t, "Endpoint(99)", Endpoint(99).String())
}
