package iso639

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEveryField(t *testing.T) {
	ds, err := Default()
	require.NoError(t, err)

	for _, field := range ds.Fields() {
		table, err := Build(field)
		require.NoError(t, err, "field %q", field)
		assert.Equal(t, field, table.KeyField())
		for _, k := range table.Keys() {
			rec, ok := table.Lookup(k)
			require.True(t, ok)
			assert.Equal(t, k, rec.Get(field), "field %q", field)
		}
	}
}

func TestBuildUnknownField(t *testing.T) {
	_, err := Build("639-9")
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "639-9", cfgErr.Field)
	assert.Contains(t, cfgErr.Valid, Field6392T)
	assert.Contains(t, cfgErr.Valid, FieldName)
	assert.Contains(t, err.Error(), "639-2/B")
}

func TestGermanByCodeAndName(t *testing.T) {
	byCode, err := Build(Field6392T)
	require.NoError(t, err)
	byName, err := Build(FieldName)
	require.NoError(t, err)

	rec, ok := byCode.Lookup("deu")
	require.True(t, ok)
	assert.Equal(t, "de", rec.Get(Field6391))
	assert.Equal(t, "ger", rec.Get(Field6392B))
	assert.Equal(t, "Deutsch", rec.Get(FieldNative))

	same, ok := byName.Lookup("German")
	require.True(t, ok)
	assert.Equal(t, rec.Fields(), same.Fields())

	back, err := Build(Field6391)
	require.NoError(t, err)
	rec, ok = back.Lookup("de")
	require.True(t, ok)
	assert.Equal(t, "deu", rec.Get(Field6392T))
}

func TestEmptyKeyRowsAreNotIndexed(t *testing.T) {
	ds, err := Default()
	require.NoError(t, err)
	table, err := ds.Index(Field6392T)
	require.NoError(t, err)

	// Serbo-Croatian has a 639-1 code but no 639-2 codes.
	var found bool
	for _, rec := range ds.Records() {
		if rec.Get(FieldName) == "Serbo-Croatian" {
			found = true
			assert.Empty(t, rec.Get(Field6392T))
		}
	}
	require.True(t, found, "Serbo-Croatian should be in the dataset")
	assert.Less(t, table.Len(), len(ds.Records()))

	_, ok := table.Lookup("")
	assert.False(t, ok)

	byTwo, err := ds.Index(Field6391)
	require.NoError(t, err)
	rec, ok := byTwo.Lookup("sh")
	require.True(t, ok)
	assert.Equal(t, "Serbo-Croatian", rec.Get(FieldName))
}

func TestLaterRowWins(t *testing.T) {
	tsv := "639-1\t639-2/T\tLanguage name\n" +
		"xx\txxx\tFirst\n" +
		"\tyyy\tNo two-letter code\n" +
		"xx\tzzz\tSecond\n"
	ds, err := Load(strings.NewReader(tsv))
	require.NoError(t, err)
	assert.Len(t, ds.Records(), 3)

	table, err := ds.Index("639-1")
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	rec, ok := table.Lookup("xx")
	require.True(t, ok)
	assert.Equal(t, "Second", rec.Get(FieldName))
	assert.Equal(t, "zzz", rec.Get(Field6392T))
}

func TestShortRowsLeaveColumnsEmpty(t *testing.T) {
	ds, err := Load(strings.NewReader("a\tb\tc\n1\t2\n"))
	require.NoError(t, err)
	recs := ds.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "2", recs[0].Get("b"))
	assert.Equal(t, "", recs[0].Get("c"))
}

func TestLookupMissing(t *testing.T) {
	table, err := Build(DefaultKey)
	require.NoError(t, err)
	_, ok := table.Lookup("qqq")
	assert.False(t, ok)
}

func TestRecordJSON(t *testing.T) {
	table, err := Build(Field6392T)
	require.NoError(t, err)
	rec, ok := table.Lookup("deu")
	require.True(t, ok)

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "deus", got[Field6396])
	assert.Nil(t, got[FieldNotes])
	assert.Contains(t, got, FieldNotes)
}
