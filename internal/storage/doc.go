// Package storage persists suppression marks and a short history of shown toasts.
//
// Suppression marks are "key -> suppressed until" pairs with a TTL; they are the
// server-side equivalent of the browser cookies that kept a ban or welcome notice
// from re-appearing after a reload. Expired marks are never reported as present.
//
// Drivers:
//   - memory: process-local (default; tests)
//   - file:   JSON lines journal + periodic snapshot
//   - sqlite: modernc.org/sqlite database file
//   - redis:  SET ... PX with native expiry
package storage
