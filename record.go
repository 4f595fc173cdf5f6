package memorial

import (
	"fmt"
	"strings"
	"time"
)

// FieldError reports a single malformed field of a record.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func checkIdentity(id, userID string, createdAt time.Time) error {
	if id == "" {
		return &FieldError{Field: "id", Reason: "missing"}
	}
	if userID == "" {
		return &FieldError{Field: "userId", Reason: "missing"}
	}
	if createdAt.IsZero() {
		return &FieldError{Field: "createdAt", Reason: "missing or invalid timestamp"}
	}
	return nil
}

func (m Memory) GetID() string           { return m.ID }
func (m Memory) GetUserID() string       { return m.UserID }
func (m Memory) GetCreatedAt() time.Time { return m.CreatedAt }

func (m Memory) WithAuthor(userID, name string) Memory {
	m.UserID = userID
	m.Name = name
	return m
}

func (m Memory) WithIdentity(id string, createdAt time.Time) Memory {
	m.ID = id
	m.CreatedAt = createdAt
	return m
}

func (m Memory) MediaInfo() (MediaType, string) { return m.MediaType, m.MediaURL }

func (m Memory) WithMediaURL(url string) Memory {
	m.MediaURL = url
	return m
}

// Validate checks a draft before it is submitted. The media reference is not
// required yet since it is filled in after upload.
func (m Memory) Validate() error {
	if strings.TrimSpace(m.Message) == "" {
		return &FieldError{Field: "message", Reason: "must not be empty"}
	}
	if m.MediaType == "" {
		return &FieldError{Field: "mediaType", Reason: "missing"}
	}
	if !m.MediaType.Valid() {
		return &FieldError{Field: "mediaType", Reason: fmt.Sprintf("unknown media type %q", m.MediaType)}
	}
	if m.MediaType == MediaNone && m.MediaURL != "" {
		return &FieldError{Field: "mediaUrl", Reason: "must be empty when mediaType is none"}
	}
	return nil
}

// Check verifies a stored memory is well formed.
func (m Memory) Check() error {
	if err := checkIdentity(m.ID, m.UserID, m.CreatedAt); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if m.MediaType != MediaNone && m.MediaURL == "" {
		return &FieldError{Field: "mediaUrl", Reason: "required when mediaType is not none"}
	}
	return nil
}

func (c Condolence) GetID() string           { return c.ID }
func (c Condolence) GetUserID() string       { return c.UserID }
func (c Condolence) GetCreatedAt() time.Time { return c.CreatedAt }

func (c Condolence) WithAuthor(userID, name string) Condolence {
	c.UserID = userID
	c.UserName = name
	return c
}

func (c Condolence) WithIdentity(id string, createdAt time.Time) Condolence {
	c.ID = id
	c.CreatedAt = createdAt
	return c
}

func (c Condolence) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return &FieldError{Field: "text", Reason: "must not be empty"}
	}
	return nil
}

func (c Condolence) Check() error {
	if err := checkIdentity(c.ID, c.UserID, c.CreatedAt); err != nil {
		return err
	}
	return c.Validate()
}
