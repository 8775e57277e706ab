package record

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/sheetsync/internal/model"
)

// Descriptor is a validated, resolved view of a Syncable.
// It is computed once per record type and cached by the Registry.
type Descriptor struct {
	Type Syncable

	Name          string
	Table         string
	PrimaryKey    string
	SpreadsheetID string
	SheetName     string

	BatchSize     int        // 0 when the type has no preference
	Mode          model.Mode // "" when the type has no preference
	UniqueFields  []string
	Headers       []string
	CreationField string
	Dedup         bool

	Linker RowLinker // nil unless the type implements RowLinker
}

// Row returns the raw ordered row for rec.
func (d *Descriptor) Row(rec Record) []Field {
	return d.Type.ToRow(rec)
}

// HasTimestamps reports whether the type declares a creation timestamp.
func (d *Descriptor) HasTimestamps() bool {
	return d.CreationField != ""
}

// Registry maps record type names to their Syncable implementation.
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	types    map[string]Syncable
	resolved map[string]*Descriptor
}

// NewRegistry creates a registry holding the given types.
func NewRegistry(types ...Syncable) (*Registry, error) {
	r := &Registry{
		types:    make(map[string]Syncable),
		resolved: make(map[string]*Descriptor),
	}
	for _, t := range types {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a record type. Names must be unique.
func (r *Registry) Register(t Syncable) error {
	if t == nil {
		return &ValidationError{Reason: "record type is nil"}
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return &ValidationError{Reason: "record type has an empty name"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[name]; exists {
		return &ValidationError{RecordType: name, Reason: "record type registered twice"}
	}
	r.types[name] = t
	return nil
}

// Names returns the registered record type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve validates the named record type and returns its cached descriptor.
// Returns a ValidationError if the name is unknown or the contract is not met.
func (r *Registry) Resolve(name string) (*Descriptor, error) {
	r.mu.RLock()
	if d, ok := r.resolved[name]; ok {
		r.mu.RUnlock()
		return d, nil
	}
	t, ok := r.types[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ValidationError{RecordType: name, Reason: "unknown record type"}
	}

	d, err := describe(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.resolved[name]; ok {
		return cached, nil
	}
	r.resolved[name] = d
	return d, nil
}

// describe checks the required members and captures every optional one.
func describe(t Syncable) (*Descriptor, error) {
	name := t.Name()
	fail := func(format string, args ...any) (*Descriptor, error) {
		return nil, &ValidationError{RecordType: name, Reason: fmt.Sprintf(format, args...)}
	}

	d := &Descriptor{
		Type:          t,
		Name:          name,
		Table:         strings.TrimSpace(t.Table()),
		PrimaryKey:    strings.TrimSpace(t.PrimaryKey()),
		SpreadsheetID: strings.TrimSpace(t.SinkIdentifier()),
		SheetName:     strings.TrimSpace(t.SheetName()),
		BatchSize:     t.PreferredBatchSize(),
		Mode:          t.PreferredSyncMode(),
		UniqueFields:  copyStrings(t.UniqueIdentifyingFields()),
		Headers:       copyStrings(t.DeclaredHeaders()),
		CreationField: strings.TrimSpace(t.CreationField()),
		Dedup:         t.Dedup(),
	}
	if linker, ok := t.(RowLinker); ok {
		d.Linker = linker
	}

	switch {
	case d.Table == "":
		return fail("missing source table")
	case d.PrimaryKey == "":
		return fail("missing primary key column")
	case d.SpreadsheetID == "":
		return fail("missing sink identifier")
	case d.SheetName == "":
		return fail("missing sheet name")
	case d.BatchSize < 0:
		return fail("negative preferred batch size %d", d.BatchSize)
	case d.Mode != "" && !d.Mode.Valid():
		return fail("unknown preferred sync mode %q", d.Mode)
	}
	return d, nil
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
