// Package doccode classifies filenames into document code rules and derives
// everything a rule decides about a code: its storage path segments and,
// for auto-named rules, the next identifier in sequence.
//
// # Rules
//
// A Rule pairs an anchored regular expression with a split template and an
// optional naming format. Rules are evaluated in registration order and the
// first match wins. At most one rule may carry NoDoccode; it catches names
// no other rule claims.
//
// # Sequences
//
// Identifier allocation delegates the counter to a Sequencer. The in-memory
// sequencer serves tests and single-process use; the store package provides
// a SQLite sequencer whose increment is a single statement, so concurrent
// processes sharing one database never observe the same number twice.
//
// # Split
//
// Split is a pure function of (rule, code). Storage backends never derive
// paths any other way, so every process sharing a storage root agrees on
// where a code lives.
package doccode
