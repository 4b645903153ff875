// Package render puts toasts in front of people: a websocket hub for browser
// overlays, a Telegram channel mirror, the log, and the HTTP server that
// exposes them.
package render
