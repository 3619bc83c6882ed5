package swaggerkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	phttp "instapilot/internal/platform/net/http"
	"instapilot/internal/platform/testkit"

	"github.com/go-chi/chi/v5"
)

func fetchDoc(t *testing.T) (int, map[string]any) {
	t.Helper()
	mux := chi.NewRouter()
	Mount(phttp.AdaptChi(mux), true)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	var spec map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &spec)
	return rec.Code, spec
}

func TestDocServesOpsRoutes(t *testing.T) {
	code, spec := fetchDoc(t)
	if code != http.StatusOK || spec["openapi"] != "3.0.3" {
		t.Fatalf("unexpected %d %v", code, spec["openapi"])
	}
	paths := spec["paths"].(map[string]any)
	for _, p := range []string{"/poller/force", "/poller/budget", "/automation/preview"} {
		if _, ok := paths[p]; !ok {
			t.Fatalf("missing path %s", p)
		}
	}
	post := paths["/automation/preview"].(map[string]any)["post"].(map[string]any)
	resps := post["responses"].(map[string]any)
	if _, ok := resps["400"]; !ok {
		t.Fatalf("default 400 not added: %v", resps)
	}
	info := spec["info"].(map[string]any)
	if info["title"] != "instapilot ops API" {
		t.Fatalf("template not rendered: %v", info)
	}
}

func TestDocParseError(t *testing.T) {
	testkit.Swap(t, &docReader, func() string { return "{" })
	if code, _ := fetchDoc(t); code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", code)
	}
}

func TestMountDisabled(t *testing.T) {
	mux := chi.NewRouter()
	Mount(phttp.AdaptChi(mux), false)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("disabled docs should 404, got %d", rec.Code)
	}
}
