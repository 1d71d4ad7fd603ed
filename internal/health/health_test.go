package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHealthzAlwaysOK(t *testing.T) {
	h := New("scribed", "1.2.3",
		StaticChecker("broken", errors.New("down")),
	)

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["service"] != "scribed" || body["version"] != "1.2.3" {
		t.Errorf("identity = %v/%v, want scribed/1.2.3", body["service"], body["version"])
	}
}

func TestReadyzAllPassing(t *testing.T) {
	h := New("scribed", "",
		StaticChecker("engine", nil),
		DirWritable("chunkdir", t.TempDir()),
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	checks := body["checks"].(map[string]any)
	if checks["engine"] != "ok" || checks["chunkdir"] != "ok" {
		t.Errorf("checks = %v, want all ok", checks)
	}
}

func TestReadyzFailingChecker(t *testing.T) {
	h := New("scribed", "",
		StaticChecker("engine", nil),
		StaticChecker("metastore", errors.New("connection refused")),
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "fail" {
		t.Errorf("status field = %v, want fail", body["status"])
	}
	checks := body["checks"].(map[string]any)
	if checks["engine"] != "ok" {
		t.Errorf("engine check = %v, want ok", checks["engine"])
	}
	if checks["metastore"] != "fail: connection refused" {
		t.Errorf("metastore check = %v, want failure message", checks["metastore"])
	}
}

func TestDirWritableFailsOnMissingDir(t *testing.T) {
	c := DirWritable("chunkdir", "/nonexistent/scribed-test")
	if err := c.Check(context.Background()); err == nil {
		t.Error("Check() on missing dir: got nil error")
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestPingChecker(t *testing.T) {
	ok := PingChecker("metastore", fakePinger{})
	if err := ok.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}

	bad := PingChecker("metastore", fakePinger{err: errors.New("ping: timeout")})
	if err := bad.Check(context.Background()); err == nil {
		t.Error("Check() with failing pinger: got nil error")
	}
}

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	New("scribed", "").Register(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
