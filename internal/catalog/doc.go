// Package catalog persists finalized recordings in a SQLite database and
// generates the time-sortable identifiers recordings are named by.
//
// The catalog only ever sees completed files: a session inserts an entry
// after its scratch file has been finalized and moved into place, and the
// startup sweep inserts entries for orphaned captures it salvages. Entries
// are append-mostly; besides Remove, only the title and thumbnail change
// after insert.
package catalog
