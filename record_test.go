package memorial

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestMemoryValidate(t *testing.T) {
	cases := []struct {
		name  string
		draft Memory
		field string
	}{
		{"ok text only", Memory{Message: "we miss you", MediaType: MediaNone}, ""},
		{"ok with image", Memory{Message: "photo", MediaType: MediaImage}, ""},
		{"empty message", Memory{Message: "  ", MediaType: MediaNone}, "message"},
		{"missing media type", Memory{Message: "hi"}, "mediaType"},
		{"unknown media type", Memory{Message: "hi", MediaType: "audio"}, "mediaType"},
		{"url without media", Memory{Message: "hi", MediaType: MediaNone, MediaURL: "x"}, "mediaUrl"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.draft.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid draft, got %v", err)
				}
				return
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected field error, got %v", err)
			}
			if fe.Field != tc.field {
				t.Fatalf("expected field %s got %s", tc.field, fe.Field)
			}
		})
	}
}

func TestMemoryCheckRequiresMediaURL(t *testing.T) {
	m := Memory{
		ID:        "1",
		UserID:    "u1",
		Message:   "hello",
		MediaType: MediaVideo,
		CreatedAt: time.Now(),
	}
	if err := m.Check(); err == nil {
		t.Fatalf("expected media url to be required")
	}
	m.MediaURL = "memories/abc-u1.mp4"
	if err := m.Check(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCondolenceDecodeStoredShape(t *testing.T) {
	raw := `{"id":"1718000000000","userId":"u1","userName":"Ann","text":"Rest in peace","relation":"friend","createdAt":"2024-06-01T00:00:00.000Z"}`

	var c Condolence
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if err := c.Check(); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !c.CreatedAt.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected createdAt %s", c.CreatedAt)
	}
}

func TestCondolenceCheckMissingIdentity(t *testing.T) {
	c := Condolence{UserID: "u1", Text: "sorry", CreatedAt: time.Now()}
	var fe *FieldError
	if err := c.Check(); !errors.As(err, &fe) || fe.Field != "id" {
		t.Fatalf("expected id field error, got %v", err)
	}
}

func TestWithAuthorDoesNotMutate(t *testing.T) {
	draft := Condolence{Text: "thinking of you"}
	stamped := draft.WithAuthor("u1", "Ann")
	if draft.UserID != "" || stamped.UserID != "u1" || stamped.UserName != "Ann" {
		t.Fatalf("unexpected author stamping: draft=%+v stamped=%+v", draft, stamped)
	}
}

func TestCleanMediaKey(t *testing.T) {
	if _, err := CleanMediaKey("../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	key, err := CleanMediaKey("/memories//a.jpg")
	if err != nil || key != "memories/a.jpg" {
		t.Fatalf("unexpected key %q err %v", key, err)
	}
}

func TestMediaTypeOf(t *testing.T) {
	if MediaTypeOf("image/png") != MediaImage {
		t.Fatalf("expected image")
	}
	if MediaTypeOf("video/mp4; codecs=avc1") != MediaVideo {
		t.Fatalf("expected video")
	}
	if MediaTypeOf("text/plain") != MediaNone {
		t.Fatalf("expected none")
	}
}
