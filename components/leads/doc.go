// Package leads is the server side of remote progress sync: a small net/http
// component that upserts partially completed form answers and serves them
// back by id.
//
// POST to the route path with a remotesync.Payload. Without an id a new lead
// is created and its uuid returned; with an id the existing lead is replaced,
// or 404 when it is unknown. GET <route>/<id> returns the stored lead.
package leads
