package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/internal/domain"
)

type MediaUsecase struct {
	blobs  BlobStore
	signer MediaSigner
	config domain.Config
}

func NewMediaUsecase(blobs BlobStore, signer MediaSigner, config domain.Config) *MediaUsecase {
	return &MediaUsecase{
		blobs:  blobs,
		signer: signer,
		config: config,
	}
}

// Upload stores the payload under a content addressed key inside the
// collection named by the first segment of requestedKey.
func (uc *MediaUsecase) Upload(ctx context.Context, requester domain.Requester, requestedKey, contentType string, body io.Reader) (memorial.MediaObject, error) {
	if requester.ID == "" {
		return memorial.MediaObject{}, domain.UnauthorizedError{Reason: "sign in required"}
	}

	mediaType := memorial.MediaTypeOf(contentType)
	if mediaType == memorial.MediaNone {
		return memorial.MediaObject{}, domain.ValidationError{Err: fmt.Errorf("unsupported content type %q", contentType)}
	}

	collection := memorial.CollectionMemories
	if requestedKey != "" {
		cleaned, err := memorial.CleanMediaKey(requestedKey)
		if err != nil {
			return memorial.MediaObject{}, domain.ValidationError{Err: err}
		}
		if prefix, _, ok := strings.Cut(cleaned, "/"); ok {
			collection = prefix
		}
	}
	if collection != memorial.CollectionMemories {
		return memorial.MediaObject{}, domain.ValidationError{Err: fmt.Errorf("collection %q does not accept media", collection)}
	}

	limit := uc.config.MaxUploadBytes
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return memorial.MediaObject{}, err
	}
	if int64(len(data)) > limit {
		return memorial.MediaObject{}, domain.ValidationError{Err: fmt.Errorf("media exceeds %d bytes", limit)}
	}
	if len(data) == 0 {
		return memorial.MediaObject{}, domain.ValidationError{Err: fmt.Errorf("empty media")}
	}

	key := fmt.Sprintf(
		"%s/%016x-%s%s",
		collection,
		xxh3.Hash(data),
		requester.ID,
		memorial.MediaExtension(mediaType, contentType),
	)

	size, err := uc.blobs.Put(ctx, key, bytes.NewReader(data))
	if err != nil {
		return memorial.MediaObject{}, err
	}

	return memorial.MediaObject{
		Key:         key,
		ContentType: contentType,
		Size:        size,
	}, nil
}

// SignURL returns a URL granting read access to key until the returned
// expiry. ttl is clamped to the configured maximum.
func (uc *MediaUsecase) SignURL(ctx context.Context, key string, ttl time.Duration) (memorial.SignedURL, error) {
	cleaned, err := memorial.CleanMediaKey(key)
	if err != nil {
		return memorial.SignedURL{}, domain.ValidationError{Err: err}
	}
	if ttl <= 0 || ttl > uc.config.SignedURLTTL {
		ttl = uc.config.SignedURLTTL
	}

	if _, err := uc.blobs.Stat(ctx, cleaned); err != nil {
		return memorial.SignedURL{}, err
	}

	token, expiresAt, err := uc.signer.SignMedia(ctx, cleaned, ttl)
	if err != nil {
		return memorial.SignedURL{}, err
	}

	return memorial.SignedURL{
		URL:       "/media/" + cleaned + "?token=" + url.QueryEscape(token),
		ExpiresAt: expiresAt,
	}, nil
}

func (uc *MediaUsecase) Open(ctx context.Context, key, token string) (io.ReadCloser, error) {
	cleaned, err := memorial.CleanMediaKey(key)
	if err != nil {
		return nil, domain.ValidationError{Err: err}
	}
	if err := uc.signer.VerifyMedia(ctx, token, cleaned); err != nil {
		return nil, domain.ForbiddenError{Reason: err.Error()}
	}
	return uc.blobs.Open(ctx, cleaned)
}
