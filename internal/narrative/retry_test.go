package narrative

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &statusError{code: 429}, true},
		{"500", &statusError{code: 500}, true},
		{"503", &statusError{code: 503}, true},
		{"401", &statusError{code: 401}, false},
		{"400", &statusError{code: 400}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"reset", errors.New("read tcp: connection reset by peer"), true},
		{"rate limit text", errors.New("Rate limit reached for requests"), true},
		{"temporary", errors.New("temporarily unavailable"), true},
		{"validation", errors.New("unmarshal model output: invalid character"), false},
	}
	for _, tt := range tests {
		if got := transient(tt.err); got != tt.want {
			t.Errorf("%s: transient = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCallWithRetry_SuccessFirstTry(t *testing.T) {
	calls := 0
	err := callWithRetry(context.Background(), "test", "http://127.0.0.1:1", func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestCallWithRetry_TransientThenSuccess(t *testing.T) {
	// A live listener keeps the reachability probe green between attempts.
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	calls := 0
	err := callWithRetry(context.Background(), "test", server.URL, func() error {
		calls++
		if calls < 2 {
			return &statusError{code: 503, body: "upstream busy"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestCallWithRetry_PermanentNoRetry(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	calls := 0
	err := callWithRetry(context.Background(), "test", server.URL, func() error {
		calls++
		return &statusError{code: 401, body: "bad key"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("permanent failure retried: calls = %d", calls)
	}
}

func TestCallWithRetry_UnreachableStops(t *testing.T) {
	calls := 0
	// Nothing listens on this address, so the probe fails after the first
	// transient error and no second attempt is made.
	err := callWithRetry(context.Background(), "test", "http://127.0.0.1:1", func() error {
		calls++
		return &statusError{code: 503, body: "busy"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestReachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	if !reachable(server.URL, time.Second) {
		t.Error("live server reported unreachable")
	}
	if reachable("http://127.0.0.1:1", time.Second) {
		t.Error("closed port reported reachable")
	}
	if reachable("::bad::url::", time.Second) {
		t.Error("garbage URL reported reachable")
	}
}
