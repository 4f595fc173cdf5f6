package usecase

import (
	"context"
	"io"
	"time"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/internal/domain"
	"github.com/totegamma/memorial/records"
)

// Record is a collection item the server can stamp with its identity.
type Record[T any] interface {
	records.Record[T]
	WithIdentity(id string, createdAt time.Time) T
}

// RecordRepository defines storage operations for one collection.
type RecordRepository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	// Create stores record. When token names a submission seen before, the
	// record it produced is returned instead and replayed is true.
	Create(ctx context.Context, record T, token *domain.IdempotencyToken) (stored T, replayed bool, err error)
	Delete(ctx context.Context, id string) error
}

// UserRepository defines persistence for accounts.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	MarkVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// BlobStore keeps media payloads by key.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (int64, error)
}

// ListCache holds serialized list responses per collection. Entries are
// keyed by a generation that Invalidate advances; Generation reports false
// when the cache cannot hand one out.
type ListCache interface {
	Generation(ctx context.Context, collection string) (uint64, bool)
	Get(ctx context.Context, collection string, gen uint64) ([]byte, bool)
	Set(ctx context.Context, collection string, gen uint64, value []byte)
	Invalidate(ctx context.Context, collection string)
}

// EventPublisher fans record changes out to realtime subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event memorial.Event) error
}

// TokenIssuer mints session tokens for signed-in users.
type TokenIssuer interface {
	Issue(ctx context.Context, user memorial.User) (string, error)
}

// MediaSigner mints and checks media access tokens.
type MediaSigner interface {
	SignMedia(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
	VerifyMedia(ctx context.Context, token, key string) error
}
