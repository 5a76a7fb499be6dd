package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID      string
	Success bool
	Code    int
	LastErr string
}
type FailRec struct {
	ID      string
	Code    int
	LastErr string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode)
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	body := []byte(`{"id":"evt1"}`)
	id, err := rs.Memory.EnqueueWebhook(context.Background(), "sub1", "assignment.changed", srv.URL, "secret", body)
	if err != nil || id == "" {
		t.Fatalf("enqueue failed: %v", err)
	}

	w.processOnce()

	if gotType != "assignment.changed" {
		t.Fatalf("missing type header: %q", gotType)
	}
	if !VerifyHMAC("secret", body, gotSig) {
		t.Fatalf("bad signature: %q", gotSig)
	}
	if len(rs.marks) == 0 || !rs.marks[0].Success {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}
}

func TestWorkerProcessOnce_FailAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 1}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "sub1", "route.updated", srv.URL, "", []byte(`{}`))
	w.processOnce()
	if len(rs.fails) == 0 {
		t.Fatalf("expected fail recorded")
	}
	if rs.fails[0].Code != 500 {
		t.Fatalf("response code: %d", rs.fails[0].Code)
	}
}

func TestWorkerRetrySchedulesBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(503) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 5}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "sub1", "route.updated", srv.URL, "", []byte(`{}`))
	w.processOnce()
	if len(rs.marks) != 1 || rs.marks[0].Success {
		t.Fatalf("expected one failed mark: %+v", rs.marks)
	}
	// delivery is scheduled in the future, so a second pass is a no-op
	w.processOnce()
	if len(rs.marks) != 1 {
		t.Fatalf("retried before backoff elapsed: %+v", rs.marks)
	}
}

func TestNextBackoffCapped(t *testing.T) {
	if nextBackoff(0) != time.Second {
		t.Fatalf("attempt 0: %v", nextBackoff(0))
	}
	if nextBackoff(3) != 8*time.Second {
		t.Fatalf("attempt 3: %v", nextBackoff(3))
	}
	if nextBackoff(50) != time.Hour {
		t.Fatalf("huge attempt: %v", nextBackoff(50))
	}
}

func TestPublisherOnlyMatchesSubscribedEvents(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	if _, err := m.CreateSubscription(ctx, model.SubscriptionRequest{
		URL: "https://example.com/hook", Events: []string{"route.updated"},
	}); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	p := NewPublisher(m)

	p.Emit(ctx, "assignment.changed", map[string]any{"x": 1})
	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("unmatched event enqueued: %d", len(due))
	}

	p.Emit(ctx, "route.updated", map[string]any{"x": 1})
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 {
		t.Fatalf("matched event not enqueued: %d", len(due))
	}
	if due[0].EventType != "route.updated" {
		t.Fatalf("event type: %s", due[0].EventType)
	}
}
