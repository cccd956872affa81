// Package session keeps a bounded pool of live workbook sessions, each owning
// an expensive application handle.
//
// Invariants:
// - At most MaxLiveSessions sessions are live; opening past the limit evicts
//   the least recently used session first.
// - A session idle for longer than the TTL is never handed out. It is torn
//   down and remembered in a bounded FIFO history so that a later Acquire of
//   its id transparently reopens the same file under a new id.
// - Stale ids chain through the redirect table; Resolve always reaches a
//   fixed point.
// - Closing a session removes every redirect that leads to it, so no stale id
//   resolves to a closed session.
// - Handle I/O never happens while the store lock is held.
// - Each session's handle lock is not re-entrant. Work inside Session.Do or
//   Store.WithSession uses the handle passed to it and never calls back into
//   Do, Save or Close for the same session.
//
// Usage:
//
//	store, _ := session.New(session.DefaultConfig(), session.WithLauncher(launcher))
//	defer store.CloseAll(ctx)
//	id, _ := store.Open(ctx, "/data/report.xlsx", false, false)
//	_ = store.WithSession(ctx, id, func(h workbook.Handle) error {
//		return h.Save(ctx)
//	})
package session
