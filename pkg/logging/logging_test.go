package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("qid", "Q12345").Info("fetching page")
	assert.Contains(t, buf.String(), "level=info")
	assert.Contains(t, buf.String(), "qid=Q12345")

	assert.Equal(t, logrus.InfoLevel, New(&buf, "nonsense").GetLevel())
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entipedia.log")
	w := FileWriter(path)
	New(w, "info").Info("hello")
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "hello")
}

func TestDiscard(t *testing.T) {
	assert.Same(t, Discard(), Discard())
	Discard().Error("dropped")
}
