package graph

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// SourceID names one plugin file (e.g. "Fallout4.esm").
type SourceID string

// Ext returns the extension including the dot, or "" when there is none.
func (s SourceID) Ext() string {
	name := string(s)
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		return name[idx:]
	}
	return ""
}

// Base returns the name without its extension.
func (s SourceID) Base() string {
	return strings.TrimSuffix(string(s), s.Ext())
}

// FormKey identifies a record: a local id inside the plugin that defines it.
type FormKey struct {
	Local  uint32
	Source SourceID
}

// String formats the key as "00ABCD:Mod.esp".
func (k FormKey) String() string {
	return fmt.Sprintf("%06X:%s", k.Local, k.Source)
}

// IsZero reports whether the key is unset.
func (k FormKey) IsZero() bool {
	return k.Local == 0 && k.Source == ""
}

// ParseFormKey parses the "00ABCD:Mod.esp" form.
func ParseFormKey(s string) (FormKey, error) {
	idStr, source, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || idStr == "" || source == "" {
		return FormKey{}, fmt.Errorf("invalid form key %q: want <hex id>:<plugin>", s)
	}
	id, err := strconv.ParseUint(idStr, 16, 32)
	if err != nil {
		return FormKey{}, fmt.Errorf("invalid form key %q: %w", s, err)
	}
	return FormKey{Local: uint32(id), Source: SourceID(source)}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (k FormKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *FormKey) UnmarshalText(text []byte) error {
	parsed, err := ParseFormKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Record is one major record of a plugin. Its origin is Key.Source.
type Record struct {
	Key      FormKey           `yaml:"key" json:"key"`
	Kind     string            `yaml:"kind,omitempty" json:"kind,omitempty"`
	EditorID string            `yaml:"editor_id,omitempty" json:"editor_id,omitempty"`
	Links    []FormKey         `yaml:"links,omitempty" json:"links,omitempty"`
	Fields   map[string]string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Origin returns the plugin that defines the record.
func (r Record) Origin() SourceID {
	return r.Key.Source
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	if r.Links != nil {
		out.Links = append([]FormKey(nil), r.Links...)
	}
	if r.Fields != nil {
		out.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// OriginClass tells whether a record was created by the plugin being
// partitioned or overrides a record defined elsewhere.
type OriginClass int

const (
	SelfOriginated OriginClass = iota
	Override
)

func (c OriginClass) String() string {
	switch c {
	case SelfOriginated:
		return "self-originated"
	case Override:
		return "override"
	default:
		return "OriginClass(" + strconv.Itoa(int(c)) + ")"
	}
}

// Classify returns the origin class of rec relative to the input plugin.
func Classify(rec Record, input SourceID) OriginClass {
	if rec.Origin() == input {
		return SelfOriginated
	}
	return Override
}

// Provider supplies the ordered records of one source plugin.
// An error yielded by Records aborts the consumer.
type Provider interface {
	Source() SourceID
	Records() iter.Seq2[Record, error]
}
