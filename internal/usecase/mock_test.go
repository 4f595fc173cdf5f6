package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/internal/domain"
)

type mockMemoryRepo struct {
	mu      sync.Mutex
	items   map[string]memorial.Memory
	keys    map[string]string
	creates int
	lists   int
	deleted []string
}

func newMockMemoryRepo(items ...memorial.Memory) *mockMemoryRepo {
	m := &mockMemoryRepo{
		items: map[string]memorial.Memory{},
		keys:  map[string]string{},
	}
	for _, item := range items {
		m.items[item.ID] = item
	}
	return m
}

func (m *mockMemoryRepo) List(ctx context.Context) ([]memorial.Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	out := make([]memorial.Memory, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item)
	}
	return out, nil
}

func (m *mockMemoryRepo) Get(ctx context.Context, id string) (memorial.Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return memorial.Memory{}, domain.NotFoundError{Resource: "memories"}
	}
	return item, nil
}

func (m *mockMemoryRepo) Create(ctx context.Context, record memorial.Memory, token *domain.IdempotencyToken) (memorial.Memory, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if token != nil {
		k := token.UserID + "/" + token.Key
		if id, ok := m.keys[k]; ok {
			return m.items[id], true, nil
		}
		m.keys[k] = record.ID
	}
	m.items[record.ID] = record
	return record, false, nil
}

func (m *mockMemoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.NotFoundError{Resource: "memories"}
	}
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockListCache struct {
	mu          sync.Mutex
	gens        map[string]uint64
	values      map[string][]byte
	invalidated int
}

func newMockListCache() *mockListCache {
	return &mockListCache{gens: map[string]uint64{}, values: map[string][]byte{}}
}

func (m *mockListCache) Generation(ctx context.Context, collection string) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[collection], true
}

func (m *mockListCache) Get(ctx context.Context, collection string, gen uint64) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[fmt.Sprintf("%s:%d", collection, gen)]
	return v, ok
}

func (m *mockListCache) Set(ctx context.Context, collection string, gen uint64, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[fmt.Sprintf("%s:%d", collection, gen)] = value
}

func (m *mockListCache) Invalidate(ctx context.Context, collection string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated++
	m.gens[collection]++
}

// gatedRepo holds the first List between reading the rows and returning them.
type gatedRepo struct {
	*mockMemoryRepo
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRepo(repo *mockMemoryRepo) *gatedRepo {
	return &gatedRepo{
		mockMemoryRepo: repo,
		read:           make(chan struct{}),
		release:        make(chan struct{}),
	}
}

func (g *gatedRepo) List(ctx context.Context) ([]memorial.Memory, error) {
	items, err := g.mockMemoryRepo.List(ctx)
	g.once.Do(func() {
		close(g.read)
		<-g.release
	})
	return items, err
}

type mockPublisher struct {
	events []memorial.Event
}

func (m *mockPublisher) Publish(ctx context.Context, event memorial.Event) error {
	m.events = append(m.events, event)
	return nil
}

type mockUserRepo struct {
	users map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]domain.User{}}
}

func (m *mockUserRepo) Create(ctx context.Context, user domain.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.ConflictError{Resource: "user"}
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.NotFoundError{Resource: "user"}
}

func (m *mockUserRepo) MarkVerified(ctx context.Context, id string) error {
	u, ok := m.users[id]
	if !ok {
		return domain.NotFoundError{Resource: "user"}
	}
	u.EmailVerified = true
	m.users[id] = u
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	u, ok := m.users[id]
	if !ok {
		return domain.NotFoundError{Resource: "user"}
	}
	u.PasswordHash = passwordHash
	m.users[id] = u
	return nil
}

type mockIssuer struct{}

func (mockIssuer) Issue(ctx context.Context, user memorial.User) (string, error) {
	return "token-" + user.ID, nil
}

type mockBlobStore struct {
	blobs map[string][]byte
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{blobs: map[string][]byte{}}
}

func (m *mockBlobStore) Put(ctx context.Context, key string, body io.Reader) (int64, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}
	m.blobs[key] = data
	return int64(len(data)), nil
}

func (m *mockBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, domain.NotFoundError{Resource: "media"}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockBlobStore) Stat(ctx context.Context, key string) (int64, error) {
	data, ok := m.blobs[key]
	if !ok {
		return 0, domain.NotFoundError{Resource: "media"}
	}
	return int64(len(data)), nil
}

type mockSigner struct {
	ttl time.Duration
}

func (m *mockSigner) SignMedia(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	m.ttl = ttl
	return "sig:" + key, time.Now().Add(ttl), nil
}

func (m *mockSigner) VerifyMedia(ctx context.Context, token, key string) error {
	if token != "sig:"+key {
		return fmt.Errorf("token does not grant %s", key)
	}
	return nil
}
