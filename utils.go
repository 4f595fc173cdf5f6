package memorial

import (
	"fmt"
	"mime"
	"path"
	"strings"
)

var mediaExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

// MediaTypeOf maps a MIME content type onto the media kinds a memory can carry.
func MediaTypeOf(contentType string) MediaType {
	base, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		base = contentType
	}
	switch {
	case strings.HasPrefix(base, "image/"):
		return MediaImage
	case strings.HasPrefix(base, "video/"):
		return MediaVideo
	default:
		return MediaNone
	}
}

// MediaExtension picks the file extension used in storage keys.
func MediaExtension(mediaType MediaType, contentType string) string {
	base, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		base = contentType
	}
	if ext, ok := mediaExtensions[base]; ok {
		return ext
	}
	switch mediaType {
	case MediaImage:
		return ".jpg"
	case MediaVideo:
		return ".mp4"
	default:
		return ".bin"
	}
}

// CleanMediaKey normalizes a storage key and rejects keys escaping the store root.
func CleanMediaKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty media key")
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", fmt.Errorf("invalid media key %q", key)
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" {
		return "", fmt.Errorf("invalid media key %q", key)
	}
	return cleaned, nil
}
