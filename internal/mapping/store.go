// Package mapping translates between human-readable contact field and choice
// names and the numeric ids the Emarsys API expects.
package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/snowcap/emarsys-cli/internal/resolve"
)

// System fields are understood by the API as-is and never translated.
var systemFields = map[string]bool{
	"key_id":   true,
	"id":       true,
	"contacts": true,
	"uid":      true,
}

// IsSystemField reports whether name is passed through untranslated.
func IsSystemField(name string) bool {
	return systemFields[name]
}

var (
	ErrUnrecognizedField       = errors.New("unrecognized field")
	ErrUnrecognizedChoiceField = errors.New("unrecognized field for choice")
	ErrUnrecognizedChoice      = errors.New("unrecognized choice")
	ErrSystemField             = errors.New("system field has no numeric id")
	ErrDuplicateField          = errors.New("field given more than once")
)

// LookupError describes a failed name or id lookup. Is matches the Err* kind.
type LookupError struct {
	Kind    error
	Message string
}

func (e *LookupError) Error() string { return e.Message }

func (e *LookupError) Is(target error) bool { return target == e.Kind }

func lookupErr(kind error, format string, args ...any) error {
	return &LookupError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Entry is a single name/id pair.
type Entry struct {
	Name string
	ID   int
}

// Fields is an ordered field mapping. Order decides reverse-lookup precedence.
type Fields []Entry

// FieldChoices is the ordered choice set for one field.
type FieldChoices struct {
	Field   string
	Choices []Entry
}

// Choices is an ordered choice mapping.
type Choices []FieldChoices

// FieldsFromMap converts m into Fields ordered by name.
func FieldsFromMap(m map[string]int) Fields {
	out := make(Fields, 0, len(m))
	for name, id := range m {
		out = append(out, Entry{Name: name, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ChoicesFromMap converts m into Choices ordered by field, then choice name.
func ChoicesFromMap(m map[string]map[string]int) Choices {
	out := make(Choices, 0, len(m))
	for field, set := range m {
		out = append(out, FieldChoices{Field: field, Choices: []Entry(FieldsFromMap(set))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

type orderedIDs struct {
	ids   map[string]int
	order []string
}

func newOrderedIDs() *orderedIDs {
	return &orderedIDs{ids: make(map[string]int)}
}

func (o *orderedIDs) set(name string, id int) {
	if _, ok := o.ids[name]; !ok {
		o.order = append(o.order, name)
	}
	o.ids[name] = id
}

func (o *orderedIDs) nameOf(id int) (string, bool) {
	for _, name := range o.order {
		if o.ids[name] == id {
			return name, true
		}
	}
	return "", false
}

func (o *orderedIDs) entries() []Entry {
	out := make([]Entry, len(o.order))
	for i, name := range o.order {
		out[i] = Entry{Name: name, ID: o.ids[name]}
	}
	return out
}

// Store holds the field and choice mappings of one client.
// It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	fields      *orderedIDs
	choices     map[string]*orderedIDs
	choiceOrder []string
}

// NewStore returns a store seeded with fields and choices.
func NewStore(fields Fields, choices Choices) *Store {
	s := &Store{
		fields:  newOrderedIDs(),
		choices: make(map[string]*orderedIDs),
	}
	s.AddFields(fields)
	s.AddChoices(choices)
	return s
}

// AddFields merges fields into the mapping. Existing names are overwritten in
// place; new names are appended.
func (s *Store) AddFields(fields Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fields {
		s.fields.set(f.Name, f.ID)
	}
}

// AddChoices merges choices into the mapping. A known field keeps its existing
// choices and gains or overwrites the given ones.
func (s *Store) AddChoices(choices Choices) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fc := range choices {
		set, ok := s.choices[fc.Field]
		if !ok {
			set = newOrderedIDs()
			s.choices[fc.Field] = set
			s.choiceOrder = append(s.choiceOrder, fc.Field)
		}
		for _, c := range fc.Choices {
			set.set(c.Name, c.ID)
		}
	}
}

// FieldID returns the numeric id of field. Numeric input is returned as-is.
func (s *Store) FieldID(field string) (int, error) {
	if id, err := strconv.Atoi(field); err == nil {
		return id, nil
	}
	if IsSystemField(field) {
		return 0, lookupErr(ErrSystemField, "Field %q is a system field and has no id", field)
	}

	s.mu.RLock()
	id, ok := s.fields.ids[field]
	s.mu.RUnlock()
	if !ok {
		return 0, lookupErr(ErrUnrecognizedField, "Unrecognized field name %q", field)
	}
	return id, nil
}

// FieldKey returns the key field takes in a request payload: system fields
// unchanged, everything else as its decimal id.
func (s *Store) FieldKey(field string) (string, error) {
	if IsSystemField(field) {
		return field, nil
	}
	id, err := s.FieldID(field)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(id), nil
}

// FieldName returns the first name mapped to id, or id in decimal form when no
// name is mapped.
func (s *Store) FieldName(id int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.fields.nameOf(id); ok {
		return name
	}
	return strconv.Itoa(id)
}

// canonicalField resolves a numeric field reference to its mapped name.
func (s *Store) canonicalField(field string) string {
	if id, err := strconv.Atoi(field); err == nil {
		return s.FieldName(id)
	}
	return field
}

// ChoiceID returns the id of choice for field. field may be a name or an id.
func (s *Store) ChoiceID(field, choice string) (int, error) {
	name := s.canonicalField(field)

	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.choices[name]
	if !ok {
		return 0, lookupErr(ErrUnrecognizedChoiceField, "Unrecognized field %q for choice %q", field, choice)
	}
	id, ok := set.ids[choice]
	if !ok {
		return 0, lookupErr(ErrUnrecognizedChoice, "Unrecognized choice %q for field %q", choice, field)
	}
	return id, nil
}

// ChoiceName returns the first choice name mapped to id for field, or id in
// decimal form when none is. An unknown field is an error.
func (s *Store) ChoiceName(field string, id int) (string, error) {
	name := s.canonicalField(field)

	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.choices[name]
	if !ok {
		return "", lookupErr(ErrUnrecognizedChoiceField, "Unrecognized field %q for choice id \"%d\"", field, id)
	}
	if choice, ok := set.nameOf(id); ok {
		return choice, nil
	}
	return strconv.Itoa(id), nil
}

// Fields returns a snapshot of the field mapping in insertion order.
func (s *Store) Fields() Fields {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Fields(s.fields.entries())
}

// Choices returns a snapshot of the choice mapping in insertion order.
func (s *Store) Choices() Choices {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Choices, len(s.choiceOrder))
	for i, field := range s.choiceOrder {
		out[i] = FieldChoices{Field: field, Choices: s.choices[field].entries()}
	}
	return out
}

// MapFieldsToIDs re-keys a contact payload from field names to ids. Entries of a
// nested "contacts" list are re-keyed the same way; any slice of string-keyed
// maps is accepted. Two keys naming the same field are an error.
func (s *Store) MapFieldsToIDs(data map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(data))
	sources := make(map[string]string, len(data))
	for key, value := range data {
		if key == "contacts" {
			mapped, err := s.mapContacts(value)
			if err != nil {
				return nil, err
			}
			out[key] = mapped
			continue
		}
		k, err := s.FieldKey(key)
		if err != nil {
			return nil, err
		}
		if prev, dup := sources[k]; dup {
			first, second := prev, key
			if first > second {
				first, second = second, first
			}
			return nil, lookupErr(ErrDuplicateField, "Fields %q and %q both name field %s", first, second, k)
		}
		sources[k] = key
		out[k] = value
	}
	return out, nil
}

func (s *Store) mapContacts(value any) (any, error) {
	list := reflect.ValueOf(value)
	if !list.IsValid() || (list.Kind() != reflect.Slice && list.Kind() != reflect.Array) {
		return value, nil
	}
	out := make([]any, list.Len())
	for i := 0; i < list.Len(); i++ {
		item := list.Index(i).Interface()
		contact, ok := stringMap(item)
		if !ok {
			out[i] = item
			continue
		}
		mapped, err := s.MapFieldsToIDs(contact)
		if err != nil {
			return nil, fmt.Errorf("contacts[%d]: %w", i, err)
		}
		out[i] = mapped
	}
	return out, nil
}

// stringMap returns v as a map[string]any when v is any map keyed by strings,
// including named types such as api.Params.
func stringMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// MapIDsToFields re-keys numeric keys of data to field names. Unmapped ids and
// non-numeric keys are kept.
func (s *Store) MapIDsToFields(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		if id, err := strconv.Atoi(key); err == nil {
			out[s.FieldName(id)] = value
			continue
		}
		out[key] = value
	}
	return out
}

// SuggestFields returns up to limit field names resembling query.
func (s *Store) SuggestFields(query string, limit int) []string {
	fields := s.Fields()
	items := make([]resolve.Named, len(fields))
	for i, f := range fields {
		items[i] = resolve.Named{ID: f.ID, Name: f.Name}
	}
	matches := resolve.FuzzyMatchAll(strings.TrimSpace(query), items, limit)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Name
	}
	return out
}
