// Package handler implements the HTTP API of facter serve.
//
// # Handlers
//
// FactHandler serves the fact table of a service.Store and, when a snapshot
// repository is configured, stores and compares snapshots.
//
// Middleware provides request logging and panic recovery.
//
// # Routes
//
//	GET    /api/facts                  full fact table, in fact order
//	GET    /api/facts/{query}          one fact or dotted query
//	POST   /api/reset                  discard facts; next read repopulates
//	GET    /api/status                 store state, search paths, sources
//	GET    /api/snapshots              stored snapshots, newest first
//	POST   /api/snapshots              store the current facts
//	GET    /api/snapshots/{id}         one snapshot ("latest" for the newest)
//	DELETE /api/snapshots/{id}         delete a snapshot
//	GET    /api/snapshots/{id}/diff    changes from a snapshot to the current
//	                                   facts, or to ?to={id}
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes (200, 201,
// 204). Error responses return JSON with {error, details} structure.
package handler
