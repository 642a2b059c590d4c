package graph

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

// FirstLocalID is the first local id handed out to new records; lower ids
// are reserved by the engine.
const FirstLocalID uint32 = 0x800

var (
	// ErrDuplicateKey is returned when a plugin already holds a record with the same key.
	ErrDuplicateKey = errors.New("duplicate form key")
	// ErrSelfOverride is returned when a plugin is asked to override one of its own records.
	ErrSelfOverride = errors.New("plugin cannot override its own record")
)

// Plugin is an in-memory plugin file: a name, the next free local id and the
// ordered list of records it carries (new records and overrides).
type Plugin struct {
	Name        SourceID `yaml:"name" json:"name"`
	NextLocalID uint32   `yaml:"next_local_id,omitempty" json:"next_local_id,omitempty"`
	Entries     []Record `yaml:"records" json:"records"`

	keys map[FormKey]int
}

// NewPlugin creates an empty plugin.
func NewPlugin(name SourceID) *Plugin {
	return &Plugin{Name: name, NextLocalID: FirstLocalID}
}

// Source implements Provider.
func (p *Plugin) Source() SourceID { return p.Name }

// Records implements Provider. Plugins never yield errors.
func (p *Plugin) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for _, rec := range p.Entries {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Len returns the number of records.
func (p *Plugin) Len() int { return len(p.Entries) }

// Lookup returns the record stored under key.
func (p *Plugin) Lookup(key FormKey) (Record, bool) {
	idx, ok := p.index()[key]
	if !ok {
		return Record{}, false
	}
	return p.Entries[idx], true
}

// Add appends rec unchanged. Records created by this plugin advance NextLocalID.
func (p *Plugin) Add(rec Record) error {
	if _, ok := p.index()[rec.Key]; ok {
		return fmt.Errorf("%s: %w: %s", p.Name, ErrDuplicateKey, rec.Key)
	}
	if rec.Origin() == p.Name && rec.Key.Local >= p.NextLocalID {
		p.NextLocalID = rec.Key.Local + 1
	}
	p.keys[rec.Key] = len(p.Entries)
	p.Entries = append(p.Entries, rec.Clone())
	return nil
}

// Duplicate copies rec into the plugin as a new record and returns its key.
// With keepLocalID the original local id is reused, otherwise the next free
// id is allocated.
func (p *Plugin) Duplicate(rec Record, keepLocalID bool) (FormKey, error) {
	if p.NextLocalID < FirstLocalID {
		p.NextLocalID = FirstLocalID
	}
	key := FormKey{Source: p.Name}
	if keepLocalID {
		key.Local = rec.Key.Local
	} else {
		key.Local = p.allocate()
	}
	dup := rec.Clone()
	dup.Key = key
	if err := p.Add(dup); err != nil {
		return FormKey{}, err
	}
	return key, nil
}

// Override registers rec as an override: the record keeps its key, and with
// it the plugin that originally defines it.
func (p *Plugin) Override(rec Record) error {
	if rec.Origin() == p.Name {
		return fmt.Errorf("%s: %w: %s", p.Name, ErrSelfOverride, rec.Key)
	}
	return p.Add(rec)
}

// Masters returns the sorted set of other plugins this plugin references,
// through override origins and links.
func (p *Plugin) Masters() []SourceID {
	seen := make(map[SourceID]struct{})
	for _, rec := range p.Entries {
		if rec.Origin() != p.Name {
			seen[rec.Origin()] = struct{}{}
		}
		for _, link := range rec.Links {
			if link.Source != p.Name {
				seen[link.Source] = struct{}{}
			}
		}
	}
	out := make([]SourceID, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

func (p *Plugin) allocate() uint32 {
	idx := p.index()
	for {
		id := p.NextLocalID
		p.NextLocalID++
		if _, taken := idx[FormKey{Local: id, Source: p.Name}]; !taken {
			return id
		}
	}
}

// index lazily rebuilds the key index; decoded plugins arrive without one.
func (p *Plugin) index() map[FormKey]int {
	if p.keys == nil {
		p.keys = make(map[FormKey]int, len(p.Entries))
		for i, rec := range p.Entries {
			p.keys[rec.Key] = i
		}
	}
	return p.keys
}

// Validate checks that the plugin is named and that no two records share a key.
// It also rebuilds the key index.
func (p *Plugin) Validate() error {
	if p.Name == "" {
		return errors.New("plugin has no name")
	}
	p.keys = make(map[FormKey]int, len(p.Entries))
	for i, rec := range p.Entries {
		if rec.Key.Source == "" {
			return fmt.Errorf("%s: record %d has no source plugin", p.Name, i)
		}
		if _, ok := p.keys[rec.Key]; ok {
			return fmt.Errorf("%s: %w: %s", p.Name, ErrDuplicateKey, rec.Key)
		}
		p.keys[rec.Key] = i
		if rec.Origin() == p.Name && rec.Key.Local >= p.NextLocalID {
			p.NextLocalID = rec.Key.Local + 1
		}
	}
	if p.NextLocalID < FirstLocalID {
		p.NextLocalID = FirstLocalID
	}
	return nil
}
