// Package storage is lexibot's small persistence layer.
//
// It keeps:
//   - an append-only delivery audit log (one record per delivered item)
//   - tutor conversation turns, when memory.driver is "storage"
package storage
