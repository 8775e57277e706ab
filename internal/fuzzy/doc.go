// Package fuzzy infers the identifying fields of a record type that does not
// declare any.
//
// Analyze is a pure function of a sample row and a schema snapshot: the same
// inputs always yield the same field list. That determinism is what keeps a
// record's content hash stable from one run to the next.
//
// Each field's score is the sum of:
//   - a schema score (primary key 1.0, unique index 0.9, foreign key 0.4,
//     ordinary index 0.3; nullable columns × 0.8)
//   - a name bonus of 0.3 for identifier-like names (id, *_id, uuid, email, ...)
//   - a value-shape score (medium strings 0.6, floats with 1–3 decimals 0.5,
//     creation timestamps 0.8, small integers 0.1, booleans 0, ...)
//
// capped at 1.0. Fields scoring at least 0.6 are selected best-first, at most
// five; the list is topped up to two from the remaining best fields, and the
// creation timestamp is always included when the type has one.
package fuzzy
