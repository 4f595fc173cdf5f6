package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/internal/domain"
	"github.com/totegamma/memorial/policy"
	"github.com/totegamma/memorial/records"
)

const DefaultIdempotencyTTL = 24 * time.Hour

type RecordUsecase[T Record[T]] struct {
	collection string
	repo       RecordRepository[T]
	blobs      BlobStore
	lists      ListCache
	events     EventPublisher
	seen       *cache.Cache
	ttl        time.Duration
}

func NewRecordUsecase[T Record[T]](
	collection string,
	repo RecordRepository[T],
	blobs BlobStore,
	lists ListCache,
	events EventPublisher,
) *RecordUsecase[T] {
	return &RecordUsecase[T]{
		collection: collection,
		repo:       repo,
		blobs:      blobs,
		lists:      lists,
		events:     events,
		seen:       cache.New(DefaultIdempotencyTTL, 30*time.Minute),
		ttl:        DefaultIdempotencyTTL,
	}
}

func (uc *RecordUsecase[T]) Collection() string {
	return uc.collection
}

// List returns the collection. Cached listings are tagged with the
// generation they were read under, so a listing taken before a write can
// never be served after it.
func (uc *RecordUsecase[T]) List(ctx context.Context) ([]T, error) {
	if uc.lists == nil {
		return uc.repo.List(ctx)
	}

	gen, ok := uc.lists.Generation(ctx, uc.collection)
	if ok {
		if cached, hit := uc.lists.Get(ctx, uc.collection, gen); hit {
			var items []T
			if err := json.Unmarshal(cached, &items); err == nil {
				return items, nil
			}
		}
	}

	items, err := uc.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if ok {
		if b, err := json.Marshal(items); err == nil {
			uc.lists.Set(ctx, uc.collection, gen, b)
		}
	}
	return items, nil
}

func (uc *RecordUsecase[T]) Get(ctx context.Context, id string) (T, error) {
	return uc.repo.Get(ctx, id)
}

// Create stores draft authored by requester. A repeated idempotency key from
// the same requester yields the record of the first submission.
func (uc *RecordUsecase[T]) Create(ctx context.Context, requester domain.Requester, draft T, idempotencyKey string) (T, error) {
	var zero T
	if requester.ID == "" {
		return zero, domain.UnauthorizedError{Reason: "sign in required"}
	}

	fastKey := "idem:" + uc.collection + ":" + requester.ID + ":" + idempotencyKey
	if idempotencyKey != "" {
		if id, ok := uc.seen.Get(fastKey); ok {
			existing, err := uc.repo.Get(ctx, id.(string))
			if err == nil {
				return existing, nil
			}
			uc.seen.Delete(fastKey)
		}
	}

	record := draft.
		WithAuthor(requester.ID, requester.Name).
		WithIdentity(uuid.NewString(), time.Now().UTC().Truncate(time.Millisecond))

	if media, ok := any(record).(records.MediaRecord[T]); ok {
		mediaType, key := media.MediaInfo()
		if mediaType != memorial.MediaNone && key != "" {
			cleaned, err := uc.checkMediaKey(ctx, requester, key)
			if err != nil {
				return zero, err
			}
			record = media.WithMediaURL(cleaned)
		}
	}

	if err := record.Check(); err != nil {
		return zero, domain.ValidationError{Err: err}
	}

	var token *domain.IdempotencyToken
	if idempotencyKey != "" {
		token = &domain.IdempotencyToken{
			UserID:     requester.ID,
			Collection: uc.collection,
			Key:        idempotencyKey,
			TTL:        uc.ttl,
		}
	}

	stored, replayed, err := uc.repo.Create(ctx, record, token)
	if err != nil {
		return zero, err
	}
	if idempotencyKey != "" {
		uc.seen.Set(fastKey, stored.GetID(), cache.DefaultExpiration)
	}
	if replayed {
		slog.InfoContext(
			ctx, "replayed submission",
			slog.String("collection", uc.collection),
			slog.String("id", stored.GetID()),
			slog.String("module", "usecase"),
		)
		return stored, nil
	}

	uc.changed(ctx, memorial.EventCreated, stored.GetID(), stored)
	return stored, nil
}

// checkMediaKey accepts only keys the media upload handed out to requester
// for this collection, and only once the object is in the store.
func (uc *RecordUsecase[T]) checkMediaKey(ctx context.Context, requester domain.Requester, key string) (string, error) {
	cleaned, err := memorial.CleanMediaKey(key)
	if err != nil {
		return "", domain.ValidationError{Err: err}
	}

	dir, file := path.Split(cleaned)
	if dir != uc.collection+"/" {
		return "", domain.ValidationError{Err: fmt.Errorf("media key %q is outside %s", key, uc.collection)}
	}
	stem := strings.TrimSuffix(file, path.Ext(file))
	if !strings.HasSuffix(stem, "-"+requester.ID) {
		return "", domain.ValidationError{Err: fmt.Errorf("media key %q was not uploaded by the requester", key)}
	}

	if uc.blobs == nil {
		return "", domain.ValidationError{Err: errors.New("media uploads are not available")}
	}
	if _, err := uc.blobs.Stat(ctx, cleaned); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ValidationError{Err: fmt.Errorf("media %q has not been uploaded", key)}
		}
		return "", err
	}
	return cleaned, nil
}

// Delete removes id when requester owns it or is an admin.
func (uc *RecordUsecase[T]) Delete(ctx context.Context, requester domain.Requester, id string) error {
	if requester.ID == "" {
		return domain.UnauthorizedError{Reason: "sign in required"}
	}

	record, err := uc.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	allowed, err := policy.Decide(
		policy.RecordPolicy,
		policy.RecordContext(requester.ID, requester.IsAdmin, record.GetUserID()),
		policy.ActionRecordDelete,
	)
	if err != nil {
		return err
	}
	if !allowed {
		return domain.ForbiddenError{Reason: "only the author or an admin can delete this record"}
	}

	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}

	uc.changed(ctx, memorial.EventDeleted, id, nil)
	return nil
}

func (uc *RecordUsecase[T]) changed(ctx context.Context, kind, id string, record any) {
	if uc.lists != nil {
		uc.lists.Invalidate(ctx, uc.collection)
	}
	if uc.events == nil {
		return
	}

	event := memorial.Event{
		Type:       kind,
		Collection: uc.collection,
		ID:         id,
	}
	if record != nil {
		if b, err := json.Marshal(record); err == nil {
			event.Record = b
		}
	}

	if err := uc.events.Publish(ctx, event); err != nil {
		slog.WarnContext(
			ctx, "failed to publish record event",
			slog.String("collection", uc.collection),
			slog.String("id", id),
			slog.String("error", err.Error()),
			slog.String("module", "usecase"),
		)
	}
}
