// Package progress persists form progress to a key-value Storage with a
// trailing-edge debounce.
//
// Save schedules a write of the given snapshot after the debounce window. A
// later Save inside the window replaces the pending snapshot and restarts the
// timer, so only the most recent snapshot is ever written. Flush writes the
// pending snapshot immediately and Cancel drops it.
//
// Persistence is best effort. Storage failures are logged and swallowed: Save
// never reports them, and Load treats unreadable or corrupt data as "no
// snapshot". Callers keep working in memory.
//
// The snapshot is spread over four keys under a namespace:
//
//	<ns>:answers   JSON object of field id to value
//	<ns>:session   session id
//	<ns>:step      current step index
//	<ns>:record    JSON {session, id} of the remote record (written by
//	               SetRecordID, not by Save)
package progress
