package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hanseplat/userhub/internal/cache"
	"github.com/hanseplat/userhub/internal/db"
	"github.com/hanseplat/userhub/internal/perf"
	"github.com/hanseplat/userhub/internal/realtime"
	"github.com/hanseplat/userhub/internal/result"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	hub := realtime.NewHub(zap.NewNop(), true)
	return NewStore(database, hub, true, zap.NewNop())
}

func testDeps() Deps {
	return Deps{
		Cache:      cache.New(zap.NewNop()),
		Monitor:    perf.New(zap.NewNop()),
		ProfileTTL: 10 * time.Minute,
	}
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := &Profile{
		UID:         "user123",
		Type:        TypeProfessional,
		Focus:       "dispensation",
		Explanation: "answers matched the pharmacist pattern",
		Confidence:  0.82,
		Preferences: Preferences{Language: "pt-BR", Theme: "light", LGPDConsent: true},
		Version:     "v2",
	}

	created, err := store.Save(ctx, p)
	if err != nil {
		t.Fatalf("Save (create): %v", err)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps stamped on create")
	}

	// A second save with the same uid must update, not duplicate.
	p.Focus = "treatment"
	if _, err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save (update): %v", err)
	}

	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM user_profiles WHERE uid = ?`, "user123").Scan(&count); err != nil {
		t.Fatalf("counting profiles: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after upsert, got %d", count)
	}

	fetched, err := store.Get(ctx, "user123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Focus != "treatment" {
		t.Errorf("expected updated focus, got %q", fetched.Focus)
	}
	if !fetched.Preferences.LGPDConsent {
		t.Error("expected preferences round-trip")
	}
}

func TestSaveRequiresUID(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Save(context.Background(), &Profile{})
	if result.KindOf(err) != result.KindInvalid {
		t.Errorf("expected invalid, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Get(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error")
	}
	if result.KindOf(err) != result.KindNotFound {
		t.Errorf("expected not_found, got %s", result.KindOf(err))
	}
}

func TestApplyUpdatePartial(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	store.Save(ctx, &Profile{
		UID:   "user123",
		Type:  TypePatient,
		Focus: "self-care",
	})

	focus := "medication"
	conf := 0.95
	updated, err := store.ApplyUpdate(ctx, "user123", Update{Focus: &focus, Confidence: &conf})
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if updated.Focus != "medication" {
		t.Errorf("expected focus updated, got %q", updated.Focus)
	}
	if updated.Confidence != 0.95 {
		t.Errorf("expected confidence updated, got %f", updated.Confidence)
	}
	if updated.Type != TypePatient {
		t.Errorf("untouched field changed: %q", updated.Type)
	}
}

func TestApplyUpdateNotFound(t *testing.T) {
	store := setupTestStore(t)

	focus := "x"
	_, err := store.ApplyUpdate(context.Background(), "ghost", Update{Focus: &focus})
	if result.KindOf(err) != result.KindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	store.Save(ctx, &Profile{UID: "user123"})
	if err := store.Delete(ctx, "user123"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "user123"); result.KindOf(err) != result.KindNotFound {
		t.Error("expected profile gone after erasure")
	}
}

func TestDisabledStoreFailsFast(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := NewStore(database, realtime.NewHub(zap.NewNop(), false), false, zap.NewNop())

	_, err = store.Get(context.Background(), "user123")
	if result.KindOf(err) != result.KindUnavailable {
		t.Errorf("expected unavailable, got %v", err)
	}
	if _, err := store.Save(context.Background(), &Profile{UID: "u"}); result.KindOf(err) != result.KindUnavailable {
		t.Errorf("expected unavailable on save, got %v", err)
	}
}

func TestSavePublishesProfileEvent(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	hub := realtime.NewHub(zap.NewNop(), true)
	store := NewStore(database, hub, true, zap.NewNop())

	var events []realtime.Event
	unsub := hub.SubscribeProfile("user123", func(e realtime.Event) { events = append(events, e) })
	defer unsub()

	store.Save(context.Background(), &Profile{UID: "user123"})
	store.Delete(context.Background(), "user123")

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Entity == nil {
		t.Error("save event should carry the entity")
	}
	if events[1].Entity != nil {
		t.Error("delete event should carry nil")
	}
}

// HTTP handler tests

func setupRouter(t *testing.T) (chi.Router, *Store, Deps) {
	t.Helper()
	store := setupTestStore(t)
	deps := testDeps()
	r := chi.NewRouter()
	RegisterRoutes(r, store, deps)
	return r, store, deps
}

func TestRoute_GetEnvelope(t *testing.T) {
	r, store, _ := setupRouter(t)
	store.Save(context.Background(), &Profile{UID: "user123", Focus: "dispensation"})

	req := httptest.NewRequest("GET", "/api/user-profiles/user123", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res result.Result[*Profile]
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success envelope: %s", w.Body.String())
	}
	if res.Data.Focus != "dispensation" {
		t.Errorf("unexpected data: %+v", res.Data)
	}
	if res.Timestamp.IsZero() {
		t.Error("expected envelope timestamp")
	}
}

func TestRoute_GetNotFoundEnvelope(t *testing.T) {
	r, _, _ := setupRouter(t)

	req := httptest.NewRequest("GET", "/api/user-profiles/ghost", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	var res result.Result[*Profile]
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Success {
		t.Error("expected failure envelope")
	}
	if res.Kind != result.KindNotFound {
		t.Errorf("expected not_found kind, got %s", res.Kind)
	}
}

func TestRoute_SaveIgnoresBodyUID(t *testing.T) {
	r, store, _ := setupRouter(t)

	body := `{"uid":"someone-else","focus":"dispensation"}`
	req := httptest.NewRequest("POST", "/api/user-profiles/user123", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if _, err := store.Get(context.Background(), "user123"); err != nil {
		t.Errorf("expected profile stored under path uid: %v", err)
	}
	if _, err := store.Get(context.Background(), "someone-else"); result.KindOf(err) != result.KindNotFound {
		t.Error("body uid must not be honoured")
	}
}

func TestRoute_GetUsesCache(t *testing.T) {
	r, store, deps := setupRouter(t)
	ctx := context.Background()

	store.Save(ctx, &Profile{UID: "user123", Focus: "before"})

	// Prime the cache.
	req := httptest.NewRequest("GET", "/api/user-profiles/user123", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	// Write around the cached route helper; the TTL-bounded staleness is
	// expected behaviour.
	store.Save(ctx, &Profile{UID: "user123", Focus: "after"})
	if _, ok := deps.Cache.Get(CacheKey("user123")); !ok {
		t.Fatal("expected primed cache entry")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/user-profiles/user123", nil))

	var res result.Result[*Profile]
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Data.Focus != "before" {
		t.Errorf("expected cached value within TTL, got %q", res.Data.Focus)
	}
}

func TestRoute_SaveInvalidatesCache(t *testing.T) {
	r, _, deps := setupRouter(t)

	deps.Cache.Set(CacheKey("user123"), &Profile{UID: "user123", Focus: "stale"}, 10*time.Minute)

	body := `{"focus":"fresh"}`
	req := httptest.NewRequest("POST", "/api/user-profiles/user123", strings.NewReader(body))
	r.ServeHTTP(httptest.NewRecorder(), req)

	if _, ok := deps.Cache.Get(CacheKey("user123")); ok {
		t.Error("expected cache invalidated after mutating write")
	}
}

func TestRoute_DeleteRemovesProfile(t *testing.T) {
	r, store, _ := setupRouter(t)
	store.Save(context.Background(), &Profile{UID: "user123"})

	req := httptest.NewRequest("DELETE", "/api/user-profiles/user123", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if _, err := store.Get(context.Background(), "user123"); result.KindOf(err) != result.KindNotFound {
		t.Error("expected profile deleted")
	}
}
