package memorial

import (
	"encoding/json"
	"time"
)

const (
	CollectionMemories    string = "memories"
	CollectionCondolences string = "condolences"
)

type MediaType string

const (
	MediaNone  MediaType = "none"
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

func (m MediaType) Valid() bool {
	switch m {
	case MediaNone, MediaImage, MediaVideo:
		return true
	default:
		return false
	}
}

// Memory is a user-authored note on the memory wall, optionally carrying a
// photo or a video.
type Memory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	MediaType MediaType `json:"mediaType"`
	// MediaURL holds the durable storage key as stored, and a signed URL
	// once resolved for display.
	MediaURL  string    `json:"mediaUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// Condolence is a short message of sympathy left by a visitor.
type Condolence struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	Relation  string    `json:"relation"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is the authenticated viewer.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"emailVerified"`
	IsAdmin       bool   `json:"isAdmin"`
}

// Envelope is the response wrapper used by the record store.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

const (
	EventCreated string = "created"
	EventDeleted string = "deleted"
)

// Event is published whenever a record is created or deleted.
type Event struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Record     json.RawMessage `json:"record,omitempty"`
}

type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type MediaObject struct {
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type SignInResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type SignUpResult struct {
	UserID    string `json:"userId"`
	Confirmed bool   `json:"confirmed"`
}
