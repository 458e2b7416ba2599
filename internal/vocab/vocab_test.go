package vocab

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit(t *testing.T) {
	tests := []struct {
		name     string
		values   []string
		expected []string
	}{
		{"first occurrence order", []string{"b", "a", "b", "c", "a"}, []string{"b", "a", "c"}},
		{"sentinel excluded", []string{"x", Sentinel, "y"}, []string{"x", "y"}},
		{"empty", nil, []string{}},
		{"empty string is a value", []string{"", "a", ""}, []string{"", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Fit(tt.values))
		})
	}
}

func TestApply(t *testing.T) {
	known := []string{"1", "2", "3"}
	got := Apply([]string{"1", "54", "3", "", Sentinel}, known)
	assert.Equal(t, []string{"1", Sentinel, "3", Sentinel, Sentinel}, got)
}

func TestApplyIsIdempotent(t *testing.T) {
	known := Fit([]string{"GROCERY I", "BEVERAGES", "DAIRY"})
	values := []string{"DAIRY", "PRODUCE", "GROCERY I", "MEATS", Sentinel}

	once := Apply(values, known)
	twice := Apply(once, known)
	assert.Equal(t, once, twice)
}

func TestApplyOnFitValuesIsNoop(t *testing.T) {
	values := []string{"a", "b", "a", "c"}
	assert.Equal(t, values, Apply(values, Fit(values)))
}

func TestSentinelClosure(t *testing.T) {
	col, err := NewColumn([]string{"1", "2"})
	require.NoError(t, err)

	for _, v := range []string{"1", "2", "3", "", "UNK", Sentinel, "01"} {
		category := col.Lookup(v)
		assert.True(t, category == Sentinel || col.Contains(category), "value %q encoded to %q", v, category)
	}
}

func TestColumnCodes(t *testing.T) {
	col, err := NewColumn([]string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, int32(0), col.Encode("a"))
	assert.Equal(t, int32(2), col.Encode("c"))
	assert.Equal(t, int32(3), col.Encode("zzz"))
	assert.Equal(t, int32(3), col.Code(Sentinel))
	assert.Equal(t, col.SentinelCode(), col.Encode(""))
	assert.Equal(t, []string{"a", "b", "c", Sentinel}, col.Levels())
}

func TestNewColumnRejectsInvalidValues(t *testing.T) {
	_, err := NewColumn([]string{"a", "a"})
	assert.True(t, errors.Is(err, sweeperrors.ErrInvalidVocabulary))

	_, err = NewColumn([]string{"a", Sentinel})
	assert.True(t, errors.Is(err, sweeperrors.ErrInvalidVocabulary))
}

func TestVocabularyRequire(t *testing.T) {
	v, err := New(map[string][]string{"family": {"A"}, "class": {"1"}})
	require.NoError(t, err)

	assert.NoError(t, v.Require([]string{"family", "class"}))
	err = v.Require([]string{"family", "store_nbr"})
	assert.True(t, errors.Is(err, sweeperrors.ErrMissingVocabulary))
}

func TestBuilder(t *testing.T) {
	b := NewBuilder([]string{"family", "store_nbr"})
	rows := [][2]string{{"A", "1"}, {"B", "1"}, {"A", "2"}, {Sentinel, "3"}}
	for _, r := range rows {
		b.Observe("family", r[0])
		b.Observe("store_nbr", r[1])
		b.Observe("ignored", r[0])
	}
	v, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{
		"family":    {"A", "B"},
		"store_nbr": {"1", "2", "3"},
	}, v.Map())
}

func TestDecodeTrainingDocument(t *testing.T) {
	doc := `{"family": ["GROCERY I", "BEVERAGES"], "store_nbr": ["44", "3"]}`
	v, err := Decode(bytes.NewBufferString(doc), FormatJSON)
	require.NoError(t, err)

	col, ok := v.Column("store_nbr")
	require.True(t, ok)
	assert.Equal(t, []string{"44", "3"}, col.Values())
	assert.Equal(t, int32(0), col.Encode("44"))
}

func TestDecodeRejectsSentinel(t *testing.T) {
	doc := "family:\n  - A\n  - __UNK__\n"
	_, err := Decode(bytes.NewBufferString(doc), FormatYAML)
	assert.True(t, errors.Is(err, sweeperrors.ErrInvalidVocabulary))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	v, err := New(map[string][]string{
		"family":  {"DAIRY", "BREAD/BAKERY"},
		"cluster": {"13", "8", "1"},
	})
	require.NoError(t, err)

	for _, name := range []string{"vocab.json", "vocab.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "models", name)
			require.NoError(t, Save(path, v))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, v.Map(), loaded.Map())
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("a/b.YML"))
	assert.Equal(t, FormatYAML, FormatFromPath("vocab.yaml"))
	assert.Equal(t, FormatJSON, FormatFromPath("lgbm_cat_vocab.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("vocab"))
}
