// Package store is dms's SQLite database. It keeps the state that must be
// shared by every process using one repository: per-rule identifier
// sequences, document tags, and optionally the revisions themselves when
// storage.backend is "sqlite".
//
// Consumers depend on the narrow interfaces in interfaces.go, not on
// SQLiteStore, so tests and alternative backends can stand in.
package store

// TagCount is a tag and the number of documents carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
