// Package records keeps a local, ordered view of one record collection in
// sync with the remote record store.
//
// A Client is the only path through which a viewer reads and mutates a
// collection: reads and writes go through the retry policy, drafts are
// validated before anything touches the network, and deletes are gated on
// ownership. The ownership check is a convenience for the viewer; the store
// enforces it again.
//
// A Client caches data for a single viewer. Servers handling many sessions
// create one Client per session.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/retry"
)

const (
	DefaultSignedURLTTL = time.Hour
	resolveConcurrency  = 8
)

type options struct {
	policy retry.Policy
	store  ObjectStore
	urlTTL time.Duration
	logger *slog.Logger
	newKey func() string
	now    func() time.Time
}

type Option func(*options)

func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) { o.policy = p }
}

func WithObjectStore(store ObjectStore) Option {
	return func(o *options) { o.store = store }
}

func WithSignedURLTTL(ttl time.Duration) Option {
	return func(o *options) { o.urlTTL = ttl }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithIdempotencyKeys replaces the generator of per-submission tokens.
func WithIdempotencyKeys(gen func() string) Option {
	return func(o *options) { o.newKey = gen }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

type Client[T Record[T]] struct {
	collection string
	gateway    Gateway
	session    Session
	opts       options

	// queue runs Add and Delete one at a time, in arrival order.
	queue *semaphore.Weighted

	mu   sync.RWMutex
	snap Snapshot[T]
}

func New[T Record[T]](collection string, gateway Gateway, session Session, opts ...Option) *Client[T] {
	o := options{
		policy: retry.DefaultPolicy(),
		urlTTL: DefaultSignedURLTTL,
		logger: slog.Default(),
		newKey: uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client[T]{
		collection: collection,
		gateway:    gateway,
		session:    session,
		opts:       o,
		queue:      semaphore.NewWeighted(1),
		snap:       Snapshot[T]{State: StateIdle},
	}
}

func (c *Client[T]) Collection() string {
	return c.collection
}

// Snapshot returns the current view. The returned Items slice is shared and
// must not be modified.
func (c *Client[T]) Snapshot() Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// List fetches the collection, newest first. The returned slice belongs to
// the caller. On failure the previously loaded items stay in place.
func (c *Client[T]) List(ctx context.Context) ([]T, error) {
	c.transition(StateLoading, nil)

	items, err := c.load(ctx)
	if err != nil {
		c.transition(StateLoadError, err)
		return nil, err
	}

	c.publish(items)
	return slices.Clone(items), nil
}

// Get fetches a single record without touching the loaded view. A missing
// record yields ErrRecordNotFound.
func (c *Client[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	raw, err := retry.Do(ctx, c.opts.policy, func(ctx context.Context) (json.RawMessage, error) {
		raw, err := c.gateway.Get(ctx, c.collection, id)
		if err != nil && errors.Is(err, ErrRecordNotFound) {
			return nil, retry.Permanent(err)
		}
		return raw, err
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return zero, err
		}
		return zero, &TransientGatewayError{Op: "get", Collection: c.collection, Err: err}
	}

	item, err := decode[T](raw)
	if err != nil {
		return zero, err
	}
	return c.resolveMedia(ctx, []T{item})[0], nil
}

// Add submits a draft authored by the current user. Drafts whose media type
// is not none must come with an attachment, which is uploaded before the
// record is created.
func (c *Client[T]) Add(ctx context.Context, draft T, media *Attachment) (T, error) {
	var zero T

	if err := draft.Validate(); err != nil {
		return zero, &ValidationError{Err: err}
	}
	needsUpload, err := c.checkMedia(draft, media)
	if err != nil {
		return zero, err
	}

	user, err := c.currentUser(ctx)
	if err != nil {
		return zero, err
	}
	draft = draft.WithAuthor(user.ID, user.Name)

	if err := c.queue.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer c.queue.Release(1)

	c.transition(StateSubmitting, nil)

	if needsUpload {
		draft, err = c.upload(ctx, user, draft, media)
		if err != nil {
			c.transition(StateSubmitError, err)
			return zero, err
		}
	}

	// one token per submission, shared by every attempt
	key := c.opts.newKey()

	raw, err := retry.Do(ctx, c.opts.policy, func(ctx context.Context) (json.RawMessage, error) {
		return c.gateway.Create(ctx, c.collection, draft, key)
	})
	if err == nil {
		var created T
		created, err = decode[T](raw)
		if err == nil {
			created = c.resolveMedia(ctx, []T{created})[0]
			c.merge(created)
			return created, nil
		}
	}

	err = &TransientGatewayError{Op: "add", Collection: c.collection, Err: err}
	c.transition(StateSubmitError, err)

	// the create may have landed even though we never saw the response
	c.reconcile(ctx)
	return zero, err
}

// Delete removes a record owned by the current user. Administrators may
// delete any record.
func (c *Client[T]) Delete(ctx context.Context, id string) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return err
	}

	target, found := c.find(id)
	if !canDelete(user, target, found) {
		return ErrAuthorizationDenied
	}

	if err := c.queue.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.queue.Release(1)

	c.transition(StateDeleting, nil)

	attempt := 0
	vanished := false
	err = retry.Run(ctx, c.opts.policy, func(ctx context.Context) error {
		attempt++
		err := c.gateway.Delete(ctx, c.collection, id)
		if err != nil && errors.Is(err, ErrRecordNotFound) {
			if attempt > 1 {
				// an earlier attempt went through
				return nil
			}
			vanished = true
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		if vanished {
			// gone before we asked; drop it so the view matches the server
			c.remove(id)
		}
		err = &TransientGatewayError{Op: "delete", Collection: c.collection, Err: err}
		c.transition(StateDeleteError, err)
		return err
	}

	c.remove(id)
	return nil
}

func canDelete[T Record[T]](user *memorial.User, target T, found bool) bool {
	if user.IsAdmin {
		return true
	}
	return found && target.GetUserID() == user.ID
}

func (c *Client[T]) currentUser(ctx context.Context) (*memorial.User, error) {
	if c.session == nil {
		return nil, ErrAuthenticationRequired
	}
	user, err := c.session.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}
	if user == nil || user.ID == "" {
		return nil, ErrAuthenticationRequired
	}
	return user, nil
}

func (c *Client[T]) checkMedia(draft T, media *Attachment) (bool, error) {
	mr, ok := any(draft).(MediaRecord[T])
	if !ok {
		if media != nil {
			return false, &ValidationError{Err: fmt.Errorf("%s do not accept media", c.collection)}
		}
		return false, nil
	}

	kind, _ := mr.MediaInfo()
	if kind == memorial.MediaNone {
		if media != nil {
			return false, &ValidationError{Err: errors.New("media attached to a record without a media type")}
		}
		return false, nil
	}

	if media == nil || media.Body == nil {
		return false, &ValidationError{Err: fmt.Errorf("media type %s requires an attachment", kind)}
	}
	if c.opts.store == nil {
		return false, &ValidationError{Err: errors.New("media uploads are not available")}
	}
	return true, nil
}

func (c *Client[T]) upload(ctx context.Context, user *memorial.User, draft T, media *Attachment) (T, error) {
	mr := any(draft).(MediaRecord[T])
	kind, _ := mr.MediaInfo()

	key := fmt.Sprintf("%s/%d-%s%s",
		c.collection,
		c.opts.now().UnixMilli(),
		user.ID,
		memorial.MediaExtension(kind, media.ContentType),
	)

	// not retried: the body reader is consumed by the first attempt
	durable, err := c.opts.store.Upload(ctx, key, media.ContentType, media.Body)
	if err != nil {
		return draft, &MediaUploadError{Key: key, Err: err}
	}
	if durable == "" {
		return draft, &MediaUploadError{Key: key, Err: errors.New("no key returned")}
	}

	return mr.WithMediaURL(durable), nil
}

func (c *Client[T]) load(ctx context.Context) ([]T, error) {
	raw, err := retry.Do(ctx, c.opts.policy, func(ctx context.Context) ([]json.RawMessage, error) {
		return c.gateway.List(ctx, c.collection)
	})
	if err != nil {
		return nil, &TransientGatewayError{Op: "load", Collection: c.collection, Err: err}
	}

	items := make([]T, 0, len(raw))
	for _, entry := range raw {
		item, err := decode[T](entry)
		if err != nil {
			c.opts.logger.DebugContext(
				ctx, "dropping malformed record",
				slog.String("collection", c.collection),
				slog.String("error", err.Error()),
				slog.String("module", "records"),
			)
			continue
		}
		items = append(items, item)
	}

	items = c.resolveMedia(ctx, items)
	sortNewestFirst(items)
	return items, nil
}

// reconcile reloads the items without touching the current state or error.
func (c *Client[T]) reconcile(ctx context.Context) {
	items, err := c.load(ctx)
	if err != nil {
		c.opts.logger.WarnContext(
			ctx, "reconcile failed",
			slog.String("collection", c.collection),
			slog.String("error", err.Error()),
			slog.String("module", "records"),
		)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Items = items
}

// resolveMedia swaps durable media keys for signed URLs. Signed URLs expire,
// so this runs on every fresh load and the result is never cached.
func (c *Client[T]) resolveMedia(ctx context.Context, items []T) []T {
	if c.opts.store == nil || len(items) == 0 {
		return items
	}
	if _, ok := any(items[0]).(MediaRecord[T]); !ok {
		return items
	}

	var g errgroup.Group
	g.SetLimit(resolveConcurrency)

	for i := range items {
		mr := any(items[i]).(MediaRecord[T])
		kind, key := mr.MediaInfo()
		if kind == memorial.MediaNone || key == "" || isAbsoluteURL(key) {
			continue
		}

		g.Go(func() error {
			url, err := c.opts.store.Resolve(ctx, key, c.opts.urlTTL)
			if err != nil {
				c.opts.logger.WarnContext(
					ctx, "failed to resolve media url",
					slog.String("key", key),
					slog.String("error", err.Error()),
					slog.String("module", "records"),
				)
				return nil
			}
			items[i] = mr.WithMediaURL(url)
			return nil
		})
	}
	_ = g.Wait()

	return items
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func decode[T Record[T]](raw json.RawMessage) (T, error) {
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, &MalformedRecordError{Raw: raw, Err: err}
	}
	if err := item.Check(); err != nil {
		return item, &MalformedRecordError{Raw: raw, Err: err}
	}
	return item, nil
}

func sortNewestFirst[T Record[T]](items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		if c := b.GetCreatedAt().Compare(a.GetCreatedAt()); c != 0 {
			return c
		}
		return strings.Compare(b.GetID(), a.GetID())
	})
}

func (c *Client[T]) transition(state State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.State = state
	c.snap.Err = err
}

func (c *Client[T]) publish(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = Snapshot[T]{State: StateLoaded, Items: items}
}

func (c *Client[T]) find(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.snap.Items {
		if item.GetID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (c *Client[T]) merge(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]T, 0, len(c.snap.Items)+1)
	for _, existing := range c.snap.Items {
		if existing.GetID() != item.GetID() {
			items = append(items, existing)
		}
	}
	items = append(items, item)
	sortNewestFirst(items)

	c.snap = Snapshot[T]{State: StateLoaded, Items: items}
}

func (c *Client[T]) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]T, 0, len(c.snap.Items))
	for _, existing := range c.snap.Items {
		if existing.GetID() != id {
			items = append(items, existing)
		}
	}

	c.snap = Snapshot[T]{State: StateLoaded, Items: items}
}
