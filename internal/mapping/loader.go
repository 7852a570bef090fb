package mapping

import (
	"embed"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/ini.v1"
)

//go:embed defaults/fields.ini defaults/choices.ini
var defaultsFS embed.FS

// Loader supplies the initial mappings of a store.
type Loader interface {
	Load() (Fields, Choices, error)
}

// Load builds a store from l.
func Load(l Loader) (*Store, error) {
	fields, choices, err := l.Load()
	if err != nil {
		return nil, err
	}
	return NewStore(fields, choices), nil
}

// Static is a Loader over literal mappings.
type Static struct {
	Fields  Fields
	Choices Choices
}

func (s Static) Load() (Fields, Choices, error) {
	return s.Fields, s.Choices, nil
}

// Files loads INI mappings from disk. An empty path falls back to the bundled
// defaults for that mapping.
type Files struct {
	FieldsPath  string
	ChoicesPath string
}

func (f Files) Load() (Fields, Choices, error) {
	var fieldsSrc, choicesSrc any = f.FieldsPath, f.ChoicesPath
	if f.FieldsPath == "" {
		data, err := defaultsFS.ReadFile("defaults/fields.ini")
		if err != nil {
			return nil, nil, err
		}
		fieldsSrc = data
	}
	if f.ChoicesPath == "" {
		data, err := defaultsFS.ReadFile("defaults/choices.ini")
		if err != nil {
			return nil, nil, err
		}
		choicesSrc = data
	}

	fields, err := ParseFields(fieldsSrc)
	if err != nil {
		return nil, nil, err
	}
	choices, err := ParseChoices(choicesSrc)
	if err != nil {
		return nil, nil, err
	}
	return fields, choices, nil
}

// Embedded returns a Loader for the bundled default mappings.
func Embedded() Loader {
	return Files{}
}

// ParseFields reads a flat "name = id" INI source (a path, []byte or io.Reader).
func ParseFields(source any) (Fields, error) {
	cfg, err := ini.Load(source)
	if err != nil {
		return nil, fmt.Errorf("load fields mapping: %w", err)
	}

	var out Fields
	for _, key := range cfg.Section(ini.DefaultSection).Keys() {
		id, err := parseID(key)
		if err != nil {
			return nil, fmt.Errorf("fields mapping: %w", err)
		}
		out = append(out, Entry{Name: key.Name(), ID: id})
	}
	return out, nil
}

// ParseChoices reads an INI source where each [field] section lists
// "choice = id" pairs.
func ParseChoices(source any) (Choices, error) {
	cfg, err := ini.Load(source)
	if err != nil {
		return nil, fmt.Errorf("load choices mapping: %w", err)
	}

	var out Choices
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			if len(sec.Keys()) > 0 {
				return nil, fmt.Errorf("choices mapping: choice %q outside a field section", sec.Keys()[0].Name())
			}
			continue
		}
		fc := FieldChoices{Field: sec.Name()}
		for _, key := range sec.Keys() {
			id, err := parseID(key)
			if err != nil {
				return nil, fmt.Errorf("choices mapping [%s]: %w", sec.Name(), err)
			}
			fc.Choices = append(fc.Choices, Entry{Name: key.Name(), ID: id})
		}
		out = append(out, fc)
	}
	return out, nil
}

func parseID(key *ini.Key) (int, error) {
	id, err := strconv.Atoi(key.Value())
	if err != nil {
		return 0, fmt.Errorf("%s: value %q is not a numeric id", key.Name(), key.Value())
	}
	return id, nil
}

// WriteFields renders fields in the format ParseFields reads.
func WriteFields(w io.Writer, fields Fields) error {
	cfg := ini.Empty()
	sec := cfg.Section(ini.DefaultSection)
	for _, f := range fields {
		if _, err := sec.NewKey(f.Name, strconv.Itoa(f.ID)); err != nil {
			return err
		}
	}
	_, err := cfg.WriteTo(w)
	return err
}

// WriteChoices renders choices in the format ParseChoices reads.
func WriteChoices(w io.Writer, choices Choices) error {
	cfg := ini.Empty()
	for _, fc := range choices {
		sec, err := cfg.NewSection(fc.Field)
		if err != nil {
			return err
		}
		for _, c := range fc.Choices {
			if _, err := sec.NewKey(c.Name, strconv.Itoa(c.ID)); err != nil {
				return err
			}
		}
	}
	_, err := cfg.WriteTo(w)
	return err
}
