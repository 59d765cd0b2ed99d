package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hanseplat/userhub/internal/config"
	"github.com/hanseplat/userhub/internal/profile"
	"github.com/hanseplat/userhub/internal/result"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func testServicesConfig() config.ServicesConfig {
	return config.ServicesConfig{
		FailureThreshold:  3,
		CooldownSeconds:   30,
		RequestsPerWindow: 60,
		WindowSeconds:     60,
		TimeoutSeconds:    5,
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := NewBreaker(3, 30*time.Second, zap.NewNop())
	b.now = func() time.Time { return clock.t }

	fail := errors.New("boom")

	b.Record(fail)
	b.Record(fail)
	assert.True(t, b.Allow(), "below threshold, still closed")

	b.Record(fail)
	assert.False(t, b.Allow(), "third consecutive failure opens the breaker")

	// A success between failures resets the run.
	clock.advance(time.Minute)
	require.True(t, b.Allow()) // half-open probe
	b.Record(nil)
	assert.Equal(t, StateClosed, b.State())

	b.Record(fail)
	b.Record(nil)
	b.Record(fail)
	b.Record(fail)
	assert.True(t, b.Allow(), "success reset the failure count")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := NewBreaker(1, 30*time.Second, zap.NewNop())
	b.now = func() time.Time { return clock.t }

	b.Record(errors.New("boom"))
	assert.False(t, b.Allow())

	// Probe failure re-opens for a full cooldown.
	clock.advance(31 * time.Second)
	require.True(t, b.Allow())
	b.Record(errors.New("still down"))
	assert.False(t, b.Allow())

	clock.advance(31 * time.Second)
	require.True(t, b.Allow())
	b.Record(nil)
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestLimiterWindowReset(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := NewLimiter(2, time.Minute)
	l.now = func() time.Time { return clock.t }

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "window exhausted")
	assert.Equal(t, 0, l.Remaining())

	clock.advance(time.Minute)
	assert.True(t, l.Allow(), "new window resets the counter")
	assert.Equal(t, 1, l.Remaining())
}

func TestClientOpensBreakerOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testServicesConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		status, _, err := c.Do(ctx, "backend", http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, status)
	}

	_, _, err := c.Do(ctx, "backend", http.MethodGet, srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, result.KindUnavailable, result.KindOf(err))
	assert.Equal(t, int32(3), calls.Load(), "open breaker blocks before I/O")
	assert.Equal(t, StateOpen, c.BreakerState("backend"))
}

func TestClientRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testServicesConfig()
	cfg.RequestsPerWindow = 2
	c := NewClient(cfg, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := c.Do(ctx, "backend", http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
	}

	_, _, err := c.Do(ctx, "backend", http.MethodGet, srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, result.KindTransient, result.KindOf(err))
}

func TestClientBreakersIsolatedPerService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testServicesConfig()
	cfg.FailureThreshold = 1
	c := NewClient(cfg, zap.NewNop())
	ctx := context.Background()

	c.Do(ctx, "flaky", http.MethodGet, srv.URL, nil)
	assert.Equal(t, StateOpen, c.BreakerState("flaky"))
	assert.Equal(t, StateClosed, c.BreakerState("healthy"))
}

func TestRemoteProfileStoreGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/user-profiles/user123", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(result.Ok(&profile.Profile{UID: "user123", Focus: "dispensation"}))
	}))
	defer srv.Close()

	store := NewRemoteProfileStore(NewClient(testServicesConfig(), zap.NewNop()), srv.URL)

	p, err := store.Get(context.Background(), "user123")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "dispensation", p.Focus)
}

func TestRemoteProfileStoreGetMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := NewRemoteProfileStore(NewClient(testServicesConfig(), zap.NewNop()), srv.URL)

	p, err := store.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRemoteProfileStoreSave(t *testing.T) {
	var got profile.Profile
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/user-profiles/user123", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(result.Ok(json.RawMessage(`{}`)))
	}))
	defer srv.Close()

	store := NewRemoteProfileStore(NewClient(testServicesConfig(), zap.NewNop()), srv.URL)

	err := store.Save(context.Background(), &profile.Profile{UID: "user123", Focus: "diagnosis"})
	require.NoError(t, err)
	assert.Equal(t, "diagnosis", got.Focus)
}

func TestRemoteProfileStoreSaveFailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(result.Fail[json.RawMessage](result.Errf(result.KindInvalid, "uid is required")))
	}))
	defer srv.Close()

	store := NewRemoteProfileStore(NewClient(testServicesConfig(), zap.NewNop()), srv.URL)

	err := store.Save(context.Background(), &profile.Profile{UID: "user123"})
	require.Error(t, err)
	assert.Equal(t, result.KindTransient, result.KindOf(err), "non-2xx maps to transient")
}

func TestRemoteProfileStoreDelete(t *testing.T) {
	var deleted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		deleted = true
		json.NewEncoder(w).Encode(result.Ok(json.RawMessage(`{}`)))
	}))
	defer srv.Close()

	store := NewRemoteProfileStore(NewClient(testServicesConfig(), zap.NewNop()), srv.URL)

	require.NoError(t, store.Delete(context.Background(), "user123"))
	assert.True(t, deleted)
}
