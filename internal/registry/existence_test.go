package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

func gateFor(t *testing.T, npmURL, pypiURL string) *Gate {
	t.Helper()
	pol := policy.Default()
	pol.Network.NPMRegistry = npmURL
	pol.Network.PyPIRegistry = pypiURL
	pol.Network.RegistryTimeout = 500 * time.Millisecond
	return New(pol)
}

func TestCheckOffline(t *testing.T) {
	pol := policy.Default()
	pol.Network.Offline = true

	res := New(pol).Check(context.Background(), model.Candidate{
		Ecosystem: model.EcosystemNPM, Name: "anything",
	})
	if res.Exists || res.Reason != model.ExistenceOffline {
		t.Errorf("result = %+v, want offline", res)
	}
}

func TestCheckNPMConfirmedViaHead(t *testing.T) {
	var heads, gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			heads.Add(1)
		case http.MethodGet:
			gets.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := gateFor(t, srv.URL, srv.URL)
	res := g.Check(context.Background(), model.Candidate{Ecosystem: model.EcosystemNPM, Name: "lodash"})

	if !res.Exists || res.Reason != model.ExistenceConfirmed {
		t.Errorf("result = %+v, want confirmed", res)
	}
	if heads.Load() != 1 || gets.Load() != 0 {
		t.Errorf("heads=%d gets=%d, want HEAD only", heads.Load(), gets.Load())
	}
}

func TestCheckNPMHeadRejectedFallsBackToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := gateFor(t, srv.URL, srv.URL)
	res := g.Check(context.Background(), model.Candidate{Ecosystem: model.EcosystemNPM, Name: "lodash"})
	if !res.Exists || res.Reason != model.ExistenceConfirmed {
		t.Errorf("result = %+v, want confirmed via GET fallback", res)
	}
}

func TestCheckPyPINotFoundNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	g := gateFor(t, srv.URL, srv.URL)
	res := g.Check(context.Background(), model.Candidate{Ecosystem: model.EcosystemPyPI, Name: "ghost-pkg"})

	if res.Exists || res.Reason != model.ExistenceNotFound {
		t.Errorf("result = %+v, want not-found", res)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (not-found is never retried)", calls.Load())
	}
}

func TestCheckPyPIVersionScopedURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := gateFor(t, srv.URL, srv.URL)
	g.Check(context.Background(), model.Candidate{
		Ecosystem: model.EcosystemPyPI, Name: "requests2", Version: "1.2.3",
	})
	if gotPath != "/pypi/requests2/1.2.3/json" {
		t.Errorf("path = %q, want version-scoped lookup", gotPath)
	}

	g.Check(context.Background(), model.Candidate{Ecosystem: model.EcosystemPyPI, Name: "requests2"})
	if gotPath != "/pypi/requests2/json" {
		t.Errorf("path = %q, want project-level lookup", gotPath)
	}
}

func TestCheckTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pol := policy.Default()
	pol.Network.PyPIRegistry = srv.URL
	pol.Network.RegistryTimeout = 50 * time.Millisecond
	g := New(pol)

	res := g.Check(context.Background(), model.Candidate{Ecosystem: model.EcosystemPyPI, Name: "slow-pkg"})
	if res.Reason != model.ExistenceTimeout {
		t.Errorf("result = %+v, want timeout", res)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (timeouts are never retried)", calls.Load())
	}
}

func TestCheckTransientErrorRetriedOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Drop the connection so the client sees a transport error.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("response writer does not support hijacking")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Error(err)
				return
			}
			conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := gateFor(t, srv.URL, srv.URL)
	res := g.Check(context.Background(), model.Candidate{Ecosystem: model.EcosystemPyPI, Name: "flaky-pkg"})

	if !res.Exists || res.Reason != model.ExistenceConfirmed {
		t.Errorf("result = %+v, want confirmed after one retry", res)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestCheckServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := gateFor(t, srv.URL, srv.URL)
	res := g.Check(context.Background(), model.Candidate{Ecosystem: model.EcosystemPyPI, Name: "broken-pkg"})

	if res.Reason != model.ExistenceError {
		t.Errorf("result = %+v, want error", res)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (5xx is a definite answer)", calls.Load())
	}
}

func TestCheckUnknownEcosystem(t *testing.T) {
	g := gateFor(t, "http://unused.invalid", "http://unused.invalid")
	res := g.Check(context.Background(), model.Candidate{Ecosystem: "cargo", Name: "pkg"})
	if res.Reason != model.ExistenceError {
		t.Errorf("result = %+v, want error", res)
	}
}
