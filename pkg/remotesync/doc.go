// Package remotesync mirrors in-progress answers to a lead-capture endpoint
// so partially completed forms are not lost when a user walks away.
//
// A Syncer hangs off the progress store's after-save hook. Each committed
// snapshot that passes the Threshold is queued for a single background worker
// that POSTs snapshots in order, skipping ones superseded by a newer snapshot
// of the same session. The first response id is stored as the session's record
// id and sent on every later sync so the server updates one record. Failures are logged and dropped; the next
// debounced save simply tries again.
package remotesync
