// Package toast is the notification throttle and dedup engine.
//
// An Engine receives leaderboard players, decides whether each one deserves a
// toast (dedup record, persisted suppression marks), paces display starts,
// keeps at most MaxVisible toasts on screen and drives every toast through
//
//	Pending -> Displayed -> FadingOut -> Removed
//
// on an injectable Clock. Rendering and sound cues are delegated to Renderer
// and CuePlayer implementations, so the engine runs unchanged against a
// websocket hub, a chat channel or a fake in tests.
package toast
