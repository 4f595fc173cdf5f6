package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/totegamma/memorial"
)

// Upload stores body under the requested key and returns the durable key the
// store assigned.
func (c *Client) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	if err := form.WriteField("key", key); err != nil {
		return "", fmt.Errorf("failed to build upload form: %v", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, key))
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %v", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return "", fmt.Errorf("failed to read media: %v", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/media", nil), &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return "", err
	}

	var obj memorial.MediaObject
	if err := decodeInto(resp, &obj); err != nil {
		return "", err
	}
	if obj.Key == "" {
		return "", fmt.Errorf("upload of %s returned no key", key)
	}
	return obj.Key, nil
}
