package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"statusCode": code, "message": message, "data": data})
}

func newServer(t *testing.T, h http.HandlerFunc) (*Client, *fakeClock) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c, err := New(srv.URL, WithClock(clk.Now), WithStaleTime(time.Minute))
	require.NoError(t, err)
	return c, clk
}

func TestQueryServesFreshCache(t *testing.T) {
	var hits atomic.Int32
	c, clk := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		writeEnvelope(w, http.StatusOK, "OK", map[string]int32{"n": n})
	})
	ctx := context.Background()

	type payload struct{ N int32 }
	first, err := Query[payload](ctx, c, "/course")
	require.NoError(t, err)
	again, err := Query[payload](ctx, c, "/course")
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, int32(1), hits.Load())

	clk.Advance(time.Minute)
	stale, err := Query[payload](ctx, c, "/course")
	require.NoError(t, err)
	assert.Equal(t, int32(2), stale.N)
}

func TestQueryDeduplicatesConcurrentReads(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		writeEnvelope(w, http.StatusOK, "OK", []int{1, 2, 3})
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Query[[]int](context.Background(), c, "/course-category")
			assert.NoError(t, err)
			assert.Equal(t, []int{1, 2, 3}, got)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), hits.Load())
}

func TestMutateInvalidatesByPrefix(t *testing.T) {
	var reads atomic.Int32
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reads.Add(1)
		}
		writeEnvelope(w, http.StatusOK, "OK", nil)
	})
	ctx := context.Background()

	for _, p := range []string{"/course", "/course/1/report", "/blog"} {
		_, err := Query[any](ctx, c, p)
		require.NoError(t, err)
	}
	require.Equal(t, int32(3), reads.Load())

	_, err := Mutate[any](ctx, c, http.MethodPost, "/course/1/finish", nil, "/course")
	require.NoError(t, err)

	for _, p := range []string{"/course", "/course/1/report", "/blog"} {
		_, err := Query[any](ctx, c, p)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(5), reads.Load(), "only /course paths are refetched")
}

func TestErrorEnvelopeBecomesAPIError(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, "User not authenticated", nil)
	})
	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "User not authenticated", apiErr.Message)
}

func TestSignInKeepsSessionCookie(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user/sign-in":
			http.SetCookie(w, &http.Cookie{Name: "session_token", Value: "tok", Path: "/"})
			writeEnvelope(w, http.StatusOK, "OK", map[string]any{"id": 7, "email": "a@x.com"})
		case "/user/me":
			if ck, err := r.Cookie("session_token"); err != nil || ck.Value != "tok" {
				writeEnvelope(w, http.StatusUnauthorized, "User not authenticated", nil)
				return
			}
			writeEnvelope(w, http.StatusOK, "OK", map[string]any{"id": 7, "email": "a@x.com"})
		}
	})
	ctx := context.Background()

	u, err := c.SignIn(ctx, "a@x.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", me.Email)
}

func TestInvalidateDuringReadDropsStaleResponse(t *testing.T) {
	var (
		mu      sync.Mutex
		value   = "v1"
		gets    atomic.Int32
		entered = make(chan struct{})
		release = make(chan struct{})
	)
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			mu.Lock()
			value = "v2"
			mu.Unlock()
			writeEnvelope(w, http.StatusOK, "OK", nil)
			return
		}
		mu.Lock()
		v := value
		mu.Unlock()
		if gets.Add(1) == 1 {
			close(entered)
			<-release
		}
		writeEnvelope(w, http.StatusOK, "OK", v)
	})
	ctx := context.Background()

	done := make(chan string)
	go func() {
		v, _ := Query[string](ctx, c, "/item")
		done <- v
	}()
	<-entered

	_, err := Mutate[any](ctx, c, http.MethodPut, "/item", map[string]string{"value": "v2"}, "/item")
	require.NoError(t, err)
	close(release)
	assert.Equal(t, "v1", <-done)

	got, err := Query[string](ctx, c, "/item")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
	assert.Equal(t, int32(2), gets.Load())
}
