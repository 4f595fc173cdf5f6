package domain

import "time"

const (
	RequesterIdCtxKey = "memorial-requesterId"
	RequesterCtxKey   = "memorial-requester"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
)

// Requester is the authenticated caller of a request.
type Requester struct {
	ID      string
	Email   string
	Name    string
	IsAdmin bool
}

// IdempotencyToken identifies one logical client submission.
type IdempotencyToken struct {
	UserID     string
	Collection string
	Key        string
	TTL        time.Duration
}
