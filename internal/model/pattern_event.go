package model

import "time"

// PatternEvent records one status transition or notable action on a
// pattern. Events are append-only; together with soft deletion they
// preserve the full lifecycle for audit.
type PatternEvent struct {
	CreatedAt  time.Time
	PatternID  string
	FromStatus PatternStatus
	ToStatus   PatternStatus
	Note       string
	ID         int64
}
