package feedback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hanseplat/userhub/internal/db"
	"github.com/hanseplat/userhub/internal/result"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database, true, zap.NewNop())
}

func TestCreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, Feedback{
		UserID:   "user123",
		Category: CategoryContent,
		Message:  "A explicação sobre a dose supervisionada ficou confusa",
		Rating:   3,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated id")
	}
	if created.Status != StatusPending {
		t.Errorf("expected pending, got %s", created.Status)
	}

	fetched, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Message != created.Message {
		t.Errorf("unexpected message: %q", fetched.Message)
	}
	if fetched.ResolvedAt != nil {
		t.Error("expected nil resolved_at on pending feedback")
	}
}

func TestCreateValidation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, Feedback{Message: "m"}); result.KindOf(err) != result.KindInvalid {
		t.Error("expected invalid for missing user_id")
	}
	if _, err := store.Create(ctx, Feedback{UserID: "u"}); result.KindOf(err) != result.KindInvalid {
		t.Error("expected invalid for missing message")
	}
	out, err := store.Create(ctx, Feedback{UserID: "u", Message: "m", Rating: 9})
	if result.KindOf(err) != result.KindInvalid {
		t.Error("expected invalid for rating out of range")
	}
	if err != nil && !strings.Contains(err.Error(), "between 0 and 5") {
		t.Errorf("error should state the accepted range, got %q", err)
	}

	// An unrated submission carries rating zero and is fine.
	out, err = store.Create(ctx, Feedback{UserID: "u", Message: "m"})
	if err != nil {
		t.Fatalf("Create without rating: %v", err)
	}
	if out.Rating != 0 {
		t.Errorf("expected zero rating preserved, got %d", out.Rating)
	}
}

func TestResolveLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created, _ := store.Create(ctx, Feedback{UserID: "user123", Message: "obrigado!"})

	if err := store.SetStatus(ctx, created.ID, StatusResolved); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	fetched, _ := store.Get(ctx, created.ID)
	if fetched.Status != StatusResolved {
		t.Errorf("expected resolved, got %s", fetched.Status)
	}
	if fetched.ResolvedAt == nil {
		t.Error("expected resolved_at set")
	}

	// Records resolve exactly once.
	if err := store.SetStatus(ctx, created.ID, StatusResolved); result.KindOf(err) != result.KindNotFound {
		t.Errorf("expected not_found on second resolve, got %v", err)
	}
}

func TestSetStatusRejectsPending(t *testing.T) {
	store := setupTestStore(t)
	created, _ := store.Create(context.Background(), Feedback{UserID: "u", Message: "m"})

	if err := store.SetStatus(context.Background(), created.ID, StatusPending); result.KindOf(err) != result.KindInvalid {
		t.Error("expected invalid when moving back to pending")
	}
}

func TestListByUserNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	store.Create(ctx, Feedback{UserID: "user123", Message: "primeiro"})
	store.Create(ctx, Feedback{UserID: "user123", Message: "segundo"})
	store.Create(ctx, Feedback{UserID: "user456", Message: "outro"})

	list, err := store.ListByUser(ctx, "user123")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2, got %d", len(list))
	}
	if list[0].Message != "segundo" {
		t.Errorf("expected newest first, got %q", list[0].Message)
	}
}

// HTTP handler tests

func TestRoute_CreateAndResolve(t *testing.T) {
	store := setupTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)

	body := `{"user_id":"user123","message":"ótimo material","rating":5}`
	req := httptest.NewRequest("POST", "/api/feedback/", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var res result.Result[*Feedback]
	json.Unmarshal(w.Body.Bytes(), &res)
	if !res.Success {
		t.Fatalf("expected success envelope: %s", w.Body.String())
	}

	req = httptest.NewRequest("POST", "/api/feedback/"+res.Data.ID+"/resolve", strings.NewReader(`{}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	fetched, _ := store.Get(context.Background(), res.Data.ID)
	if fetched.Status != StatusResolved {
		t.Errorf("expected resolved, got %s", fetched.Status)
	}
}

func TestRoute_GetMissing(t *testing.T) {
	store := setupTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)

	req := httptest.NewRequest("GET", "/api/feedback/ghost", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
