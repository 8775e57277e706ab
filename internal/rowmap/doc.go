// Package rowmap identifies records by content and reconciles a batch of
// records against a sheet snapshot.
//
// A record's identity is the xxh3 digest of a canonical encoding of its
// identifier tuple: the primary key followed by the type's unique fields, or
// by the fields the fuzzy identifier infers when none are declared. The hash
// lives in a reserved trailing column of the sheet, so a re-run updates the
// row it wrote before instead of appending a duplicate.
package rowmap
