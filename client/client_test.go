package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/records"
	"github.com/totegamma/memorial/retry"
)

var (
	_ records.Gateway     = (*Client)(nil)
	_ records.ObjectStore = (*Client)(nil)
	_ records.Session     = (*Client)(nil)
)

func newTestClient(t *testing.T, handler http.Handler, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, token)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRejectsRelativeEndpoint(t *testing.T) {
	_, err := New("memorial.example.com", "")
	assert.Error(t, err)
}

func TestListAcceptsEnvelopeAndBareArray(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/memories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    []map[string]string{{"id": "a"}, {"id": "b"}},
		})
	})
	mux.HandleFunc("GET /api/condolences", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{{"id": "c"}})
	})
	c := newTestClient(t, mux, "")

	items, err := c.List(context.Background(), memorial.CollectionMemories)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.JSONEq(t, `{"id":"a"}`, string(items[0]))

	items, err = c.List(context.Background(), memorial.CollectionCondolences)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestListFailedEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "boom"})
	}), "")

	_, err := c.List(context.Background(), memorial.CollectionMemories)
	assert.ErrorContains(t, err, "boom")
}

func TestCreateSendsIdempotencyKeyAndToken(t *testing.T) {
	var gotKey, gotAuth, gotAgent string
	var gotBody map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"data":    map[string]string{"id": "new", "message": "hi"},
		})
	}), "tok")

	raw, err := c.Create(context.Background(), memorial.CollectionMemories, memorial.Memory{Message: "hi"}, "key-1")

	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"new","message":"hi"}`, string(raw))
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, defaultAgent, gotAgent)
	assert.Equal(t, "hi", gotBody["message"])
}

func TestStatusErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		permanent bool
		is        error
	}{
		{http.StatusBadRequest, true, nil},
		{http.StatusUnauthorized, true, records.ErrAuthenticationRequired},
		{http.StatusForbidden, true, records.ErrAuthorizationDenied},
		{http.StatusNotFound, true, records.ErrRecordNotFound},
		{http.StatusRequestTimeout, false, nil},
		{http.StatusTooManyRequests, false, nil},
		{http.StatusBadGateway, false, nil},
	}

	for _, tc := range cases {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tc.status, map[string]string{"error": "nope"})
		}), "tok")

		err := c.Delete(context.Background(), memorial.CollectionMemories, "x")
		require.Error(t, err)
		assert.Equal(t, tc.status, StatusCode(err))
		assert.Equal(t, tc.permanent, retry.IsPermanent(err), "status %d", tc.status)
		if tc.is != nil {
			assert.ErrorIs(t, err, tc.is)
		}
	}
}

func TestPermanentStatusIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message: must not be empty"})
	}), "tok")

	p := retry.DefaultPolicy()
	p.BaseInterval = time.Millisecond
	_, err := retry.Do(context.Background(), p, func(ctx context.Context) (json.RawMessage, error) {
		return c.Create(ctx, memorial.CollectionMemories, memorial.Memory{}, "k")
	})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUploadSendsMultipart(t *testing.T) {
	var gotKey, gotType, gotData string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotKey = r.FormValue("key")
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotType = header.Header.Get("Content-Type")
		data, _ := io.ReadAll(file)
		gotData = string(data)
		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"data":    memorial.MediaObject{Key: "memories/abc-u1.png", ContentType: gotType, Size: int64(len(data))},
		})
	}), "tok")

	key, err := c.Upload(context.Background(), "memories/1-u1.png", "image/png", strings.NewReader("png-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "memories/abc-u1.png", key)
	assert.Equal(t, "memories/1-u1.png", gotKey)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, "png-bytes", gotData)
}

func TestResolveMakesURLAbsolute(t *testing.T) {
	var gotKey, gotExp string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotExp = r.URL.Query().Get("exp")
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    memorial.SignedURL{URL: "/media/memories/a.png?token=t"},
		})
	}), "")

	url, err := c.Resolve(context.Background(), "memories/a.png", time.Hour)

	require.NoError(t, err)
	assert.Equal(t, "memories/a.png", gotKey)
	assert.Equal(t, "3600", gotExp)
	assert.Equal(t, c.endpoint.String()+"/media/memories/a.png?token=t", url)
}

func TestCurrentUserIsCached(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer good" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    memorial.User{ID: "u1", Name: "Alice", EmailVerified: true},
		})
	}), "good")

	for range 3 {
		user, err := c.CurrentUser(context.Background())
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "u1", user.ID)
	}
	assert.Equal(t, int32(1), calls.Load())

	c.SetToken("bad")
	user, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)

	c.SetToken("")
	user, err = c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSignInStoresToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == "pending@example.com" {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "user is not confirmed",
				"code":  memorial.CodeUserNotConfirmed,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": memorial.SignInResult{
				Token: "issued",
				User:  memorial.User{ID: "u1", Email: body["email"]},
			},
		})
	})
	mux.HandleFunc("POST /api/auth/signout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	c := newTestClient(t, mux, "")

	_, err := c.SignIn(context.Background(), "pending@example.com", "pw")
	assert.True(t, errors.Is(err, memorial.ErrUserNotConfirmed))
	assert.Empty(t, c.Token())

	result, err := c.SignIn(context.Background(), "alice@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "issued", result.Token)
	assert.Equal(t, "issued", c.Token())

	user, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	require.NoError(t, c.SignOut(context.Background()))
	assert.Empty(t, c.Token())
}

func TestRecordsClientOverHTTP(t *testing.T) {
	var creates atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": memorial.User{ID: "u1", Name: "Alice"}})
	})
	mux.HandleFunc("GET /api/condolences", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []any{}})
	})
	mux.HandleFunc("POST /api/condolences", func(w http.ResponseWriter, r *http.Request) {
		if creates.Add(1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "try again"})
			return
		}
		var draft memorial.Condolence
		_ = json.NewDecoder(r.Body).Decode(&draft)
		draft.ID = "c1"
		draft.CreatedAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": draft})
	})
	c := newTestClient(t, mux, "tok")

	p := retry.DefaultPolicy()
	p.BaseInterval = time.Millisecond
	rc := records.New[memorial.Condolence](memorial.CollectionCondolences, c, c, records.WithRetryPolicy(p))

	created, err := rc.Add(context.Background(), memorial.Condolence{Text: "thinking of you"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "c1", created.ID)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, "Alice", created.UserName)
	assert.Equal(t, int32(2), creates.Load())
}

func TestRecordsClientRejectsInvalidDraftOffline(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": memorial.User{ID: "u1", Name: "Alice"}})
	})
	c := newTestClient(t, handler, "tok")
	rc := records.New[memorial.Memory](memorial.CollectionMemories, c, c, records.WithObjectStore(c))

	_, err := rc.Add(context.Background(), memorial.Memory{Message: "", MediaType: memorial.MediaNone}, nil)

	var vErr *records.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, hits.Load())
}
