package records

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/totegamma/memorial"
)

// Record is the shape every collection item satisfies.
type Record[T any] interface {
	GetID() string
	GetUserID() string
	GetCreatedAt() time.Time
	WithAuthor(userID, name string) T
	// Validate checks a draft before submission.
	Validate() error
	// Check verifies a record returned by the store.
	Check() error
}

// MediaRecord is implemented by records that can carry an uploaded file.
type MediaRecord[T any] interface {
	MediaInfo() (memorial.MediaType, string)
	WithMediaURL(url string) T
}

// Gateway is the remote record store.
type Gateway interface {
	List(ctx context.Context, collection string) ([]json.RawMessage, error)
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Create(ctx context.Context, collection string, draft any, idempotencyKey string) (json.RawMessage, error)
	Delete(ctx context.Context, collection string, id string) error
}

// ObjectStore keeps media payloads and hands out short lived URLs for them.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Resolve(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Session yields the signed-in user, or nil when nobody is signed in.
type Session interface {
	CurrentUser(ctx context.Context) (*memorial.User, error)
}

// Attachment is a media payload submitted alongside a draft.
type Attachment struct {
	ContentType string
	Body        io.Reader
}
