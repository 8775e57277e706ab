// Package record defines the capability contract a record type satisfies to
// be synchronizable, and the registry that resolves and caches it.
//
// A record type is described by a single interface, Syncable. Optional
// members return an absent marker (zero value) instead of being probed for at
// runtime; embedding Base supplies every absent marker. Registry.Resolve
// validates the contract once per type and caches the resulting Descriptor.
//
// Two kinds of record types exist:
//   - Go types implementing Syncable directly (embedded use)
//   - TableType, built from the record_types section of the YAML config
package record
