package fallback

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDelimitedComma(t *testing.T) {
	rows, err := ParseDelimited(strings.NewReader("a,b,c\n1,2,3\n4,5,6\n"))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, rows[0])
	assert.Equal(t, "6", rows[1]["c"])
}

func TestParseDelimitedSemicolon(t *testing.T) {
	rows, err := ParseDelimited(strings.NewReader("code_mission;intitule_mission;cp\n129;Enseignement;1 000,00\n"))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "129", rows[0]["code_mission"])
	assert.Equal(t, "1 000,00", rows[0]["cp"])
}

func TestParseDelimitedQuotedFields(t *testing.T) {
	rows, err := ParseDelimited(strings.NewReader(
		"a;b\n\"valeur; avec délimiteur\";\"guillemet \"\"interne\"\"\"\n"))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "valeur; avec délimiteur", rows[0]["a"])
	assert.Equal(t, `guillemet "interne"`, rows[0]["b"])
}

func TestParseDelimitedShortRow(t *testing.T) {
	rows, err := ParseDelimited(strings.NewReader("a,b,c\n1,2\n"))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0]["c"], "missing trailing columns are empty")
}

func TestParseDelimitedEmpty(t *testing.T) {
	rows, err := ParseDelimited(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRowsCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state_spending_2025.csv")
	require.NoError(t, os.WriteFile(path, []byte("code_mission,cp\n129,10\n"), 0o644))

	rows, err := Rows(dir, "state_spending", 2025)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "129", rows[0]["code_mission"])
}

func TestRowsJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state_revenues_2025.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"source":"TVA","montant":5}]`), 0o644))

	rows, err := Rows(dir, "state_revenues", 2025)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "TVA", rows[0]["source"])
}

func TestRowsMissing(t *testing.T) {
	_, err := Rows(t.TempDir(), "state_spending", 1999)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRowsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x_2025.json"), []byte("{not an array"), 0o644))

	_, err := Rows(dir, "x", 2025)
	require.Error(t, err)
}
