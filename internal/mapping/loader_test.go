package mapping

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedded(t *testing.T) {
	s, err := Load(Embedded())
	require.NoError(t, err)

	for name, want := range map[string]int{
		"firstName":  1,
		"lastName":   2,
		"email":      3,
		"birthDate":  4,
		"gender":     5,
		"address":    10,
		"city":       11,
		"zip":        13,
		"country":    14,
		"language":   35,
		"salutation": 46,
	} {
		id, err := s.FieldID(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, id, name)
	}

	id, err := s.ChoiceID("gender", "male")
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	id, err = s.ChoiceID("gender", "female")
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	id, err = s.ChoiceID("salutation", "mr")
	require.NoError(t, err)
	assert.Equal(t, 1, id)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	fieldsPath := filepath.Join(dir, "fields.ini")
	choicesPath := filepath.Join(dir, "choices.ini")
	require.NoError(t, os.WriteFile(fieldsPath, []byte("myField = 7147\nother = 7148\n"), 0o600))
	require.NoError(t, os.WriteFile(choicesPath, []byte("[myField]\nyes = 1\nno = 2\n"), 0o600))

	fields, choices, err := Files{FieldsPath: fieldsPath, ChoicesPath: choicesPath}.Load()
	require.NoError(t, err)
	assert.Equal(t, Fields{{Name: "myField", ID: 7147}, {Name: "other", ID: 7148}}, fields)
	require.Len(t, choices, 1)
	assert.Equal(t, FieldChoices{Field: "myField", Choices: []Entry{{Name: "yes", ID: 1}, {Name: "no", ID: 2}}}, choices[0])
}

func TestFiles_PartialFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	fieldsPath := filepath.Join(dir, "fields.ini")
	require.NoError(t, os.WriteFile(fieldsPath, []byte("only = 1\n"), 0o600))

	fields, choices, err := Files{FieldsPath: fieldsPath}.Load()
	require.NoError(t, err)
	assert.Len(t, fields, 1)
	assert.NotEmpty(t, choices)
}

func TestFiles_MissingFile(t *testing.T) {
	_, _, err := Files{FieldsPath: filepath.Join(t.TempDir(), "missing.ini")}.Load()
	require.Error(t, err)
}

func TestParseFields_NonNumeric(t *testing.T) {
	_, err := ParseFields([]byte("email = three\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"three"`)
}

func TestParseChoices_KeyOutsideSection(t *testing.T) {
	_, err := ParseChoices([]byte("stray = 1\n[gender]\nmale = 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stray")
}

func TestStatic(t *testing.T) {
	s, err := Load(Static{Fields: FieldsFromMap(map[string]int{"x": 1})})
	require.NoError(t, err)
	assert.Equal(t, "x", s.FieldName(1))
	assert.Empty(t, s.Choices())
}

func TestWriteRoundTrip(t *testing.T) {
	s, err := Load(Embedded())
	require.NoError(t, err)

	var fb, cb bytes.Buffer
	require.NoError(t, WriteFields(&fb, s.Fields()))
	require.NoError(t, WriteChoices(&cb, s.Choices()))

	fields, err := ParseFields(fb.Bytes())
	require.NoError(t, err)
	choices, err := ParseChoices(cb.Bytes())
	require.NoError(t, err)

	assert.Equal(t, s.Fields(), fields)
	assert.Equal(t, s.Choices(), choices)
}
