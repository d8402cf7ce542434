// Package store persists per-user conversation history for the agent service.
//
// Two HistoryStore implementations exist:
//
//   - SQLiteStore: modernc.org/sqlite (pure Go, no cgo) in WAL mode. Used
//     when database.path is configured.
//   - MemoryStore: a mutex-guarded map. Used when no path is configured and
//     in tests.
//
// Exchanges are ordered by insertion, not by timestamp, so two exchanges
// written in the same clock tick keep their order. ListExchanges with a
// positive limit returns the newest entries, oldest first, which is the
// shape an LLM prompt wants.
package store
