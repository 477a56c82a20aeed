// Package sqlqueue stores queued items as rows of a SQLite table.
//
// Each item is one row carrying its own attempt counter; insertion order is
// the autoincrement id. A unique (queue_name, subject_id) index rejects a
// second pending item for the same subject.
package sqlqueue
