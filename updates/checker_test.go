package updates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestCheckerReportsNewerVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("5.1\n"))
	}))
	defer srv.Close()

	c := NewChecker(srv.URL, "5.0", nil)
	if s := c.State(); s.CheckedAt != nil || s.Current != "5.0" {
		t.Fatalf("unexpected initial state %+v", s)
	}

	st, err := c.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !st.UpdateAvailable || st.Latest != "5.1" || st.CheckedAt == nil {
		t.Fatalf("unexpected state %+v", st)
	}
	if got := c.State(); got.Latest != "5.1" {
		t.Fatalf("State() = %+v", got)
	}
}

func TestCheckerSameVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("5.0"))
	}))
	defer srv.Close()

	st, err := NewChecker(srv.URL, "5.0", nil).Check(context.Background())
	if err != nil || st.UpdateAvailable {
		t.Fatalf("state = %+v, %v", st, err)
	}
}

func TestCheckerKeepsLastKnownOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("6.0"))
	}))
	defer srv.Close()

	c := NewChecker(srv.URL, "5.0", nil)
	if _, err := c.Check(context.Background()); err != nil {
		t.Fatal(err)
	}
	fail.Store(true)
	st, err := c.Check(context.Background())
	if err == nil {
		t.Fatal("expected error on 502")
	}
	if st.Latest != "6.0" || !st.UpdateAvailable || st.Error == "" {
		t.Fatalf("unexpected state %+v", st)
	}
}
