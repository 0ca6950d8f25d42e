package integration_test

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/geocoder89/tutorhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

func TestOpenAPIDocumentsEveryRoute(t *testing.T) {
	app := setupTestRouter(t)

	var registered []string
	for _, r := range app.router.(*gin.Engine).Routes() {
		if strings.HasPrefix(r.Path, "/docs") || r.Path == "/metrics" {
			continue
		}
		registered = append(registered, r.Method+" "+r.Path)
	}
	sort.Strings(registered)

	documented, err := handlers.DocumentedRoutes()
	if err != nil {
		t.Fatalf("DocumentedRoutes error: %v", err)
	}

	if strings.Join(registered, "\n") != strings.Join(documented, "\n") {
		t.Fatalf("routes and openapi.yaml disagree\nregistered:\n%s\ndocumented:\n%s",
			strings.Join(registered, "\n"), strings.Join(documented, "\n"))
	}
}

func TestOpenAPIServedAsJSON(t *testing.T) {
	app := setupTestRouter(t)

	w, _ := doRequest(app.router, http.MethodGet, "/docs/openapi.json", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}

	var doc struct {
		OpenAPI string         `json:"openapi"`
		Paths   map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if doc.OpenAPI == "" || doc.Paths["/conversations/{id}/live"] == nil {
		t.Fatalf("unexpected document: %+v", doc)
	}
}
