package integration_test

import (
	"encoding/json"
	"net/http"
	"testing"
)

type profileResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Role         string   `json:"role"`
	Headline     string   `json:"headline"`
	Subjects     []string `json:"subjects"`
	HourlyRate   float64  `json:"hourlyRate"`
	Rating       float64  `json:"rating"`
	ProfileViews int      `json:"profileViews"`
	GradeLevel   string   `json:"gradeLevel"`
	Reviews      []struct {
		StudentName string `json:"studentName"`
		Rating      int    `json:"rating"`
	} `json:"reviews"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func TestProfileIntegration_PatchIgnoresIdentityFields(t *testing.T) {
	app := setupTestRouter(t)
	teacher := signUp(t, app.router, "Ada", "ada@example.com", "Teacher")

	body := `{"id":"someone-else","email":"x@example.com","role":"Student","hourlyRate":42,"headline":"Calculus","subjects":["Math","Math","Physics"],"gradeLevel":"College"}`
	w, _ := doRequest(app.router, http.MethodPatch, "/me", teacher.AccessToken, body)
	if w.Code != http.StatusOK {
		t.Fatalf("patch got status %d, body=%s", w.Code, w.Body.String())
	}

	var p profileResponse
	mustReadJSON(t, w, &p)
	if p.ID != teacher.UserID || p.Email != "ada@example.com" || p.Role != "Teacher" {
		t.Fatalf("identity fields changed: %+v", p)
	}
	if p.HourlyRate != 42 || p.Headline != "Calculus" {
		t.Fatalf("patch not applied: %+v", p)
	}
	if len(p.Subjects) != 2 {
		t.Fatalf("subjects should be de-duplicated, got %v", p.Subjects)
	}
	if p.GradeLevel != "" {
		t.Fatalf("student field leaked into a teacher: %q", p.GradeLevel)
	}

	w, _ = doRequest(app.router, http.MethodPatch, "/me", teacher.AccessToken, `{"hourlyRate":0}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("zero hourly rate got status %d", w.Code)
	}
}

func TestProfileIntegration_DirectoryReflectsSavedRate(t *testing.T) {
	app := setupTestRouter(t)
	teacher := signUp(t, app.router, "Ada", "ada@example.com", "Teacher")
	student := signUp(t, app.router, "Sam", "sam@example.com", "Student")

	// warm the cache
	w, _ := doRequest(app.router, http.MethodGet, "/teachers", student.AccessToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("search got status %d", w.Code)
	}

	w, _ = doRequest(app.router, http.MethodPatch, "/me", teacher.AccessToken, `{"hourlyRate":55,"subjects":["Chemistry"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch got status %d, body=%s", w.Code, w.Body.String())
	}

	w, _ = doRequest(app.router, http.MethodGet, "/teachers?subject=Chemistry", student.AccessToken, "")
	var list listResponse[profileResponse]
	mustReadJSON(t, w, &list)
	if list.Count != 1 || list.Items[0].HourlyRate != 55 {
		t.Fatalf("directory is stale: %+v", list)
	}

	w, _ = doRequest(app.router, http.MethodGet, "/teachers?q=ADA", student.AccessToken, "")
	mustReadJSON(t, w, &list)
	if list.Count != 1 {
		t.Fatalf("case-insensitive search failed: %+v", list)
	}
}

func TestProfileIntegration_TeacherViewAndReview(t *testing.T) {
	app := setupTestRouter(t)
	teacher := signUp(t, app.router, "Ada", "ada@example.com", "Teacher")
	student := signUp(t, app.router, "Sam", "sam@example.com", "Student")

	w, _ := doRequest(app.router, http.MethodGet, "/teachers/"+teacher.UserID, student.AccessToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("teacher profile got status %d", w.Code)
	}
	var p profileResponse
	mustReadJSON(t, w, &p)
	if p.ProfileViews != 1 {
		t.Fatalf("expected one view, got %d", p.ProfileViews)
	}

	w, _ = doRequest(app.router, http.MethodGet, "/teachers/"+student.UserID, student.AccessToken, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("student as teacher got status %d", w.Code)
	}

	w, _ = doRequest(app.router, http.MethodPost, "/teachers/"+teacher.UserID+"/reviews", student.AccessToken, `{"rating":4,"comment":"Clear"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("review got status %d, body=%s", w.Code, w.Body.String())
	}
	w, _ = doRequest(app.router, http.MethodPost, "/teachers/"+teacher.UserID+"/reviews", student.AccessToken, `{"rating":5}`)
	mustReadJSON(t, w, &p)
	if p.Rating != 4.5 || len(p.Reviews) != 2 || p.Reviews[0].StudentName != "Sam" {
		t.Fatalf("unexpected reviewed teacher: %+v", p)
	}

	// teachers cannot review
	w, _ = doRequest(app.router, http.MethodPost, "/teachers/"+teacher.UserID+"/reviews", teacher.AccessToken, `{"rating":5}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("teacher review got status %d", w.Code)
	}
}

func TestProfileIntegration_ListUsersWithETag(t *testing.T) {
	app := setupTestRouter(t)
	s := signUp(t, app.router, "Sam", "sam@example.com", "Student")
	signUp(t, app.router, "Ada", "ada@example.com", "Teacher")

	w, resp := doRequest(app.router, http.MethodGet, "/users", s.AccessToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list got status %d", w.Code)
	}

	var list listResponse[json.RawMessage]
	mustReadJSON(t, w, &list)
	if list.Count != 2 {
		t.Fatalf("expected 2 users, got %d", list.Count)
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatalf("expected an ETag")
	}

	req, _ := http.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	req.Header.Set("If-None-Match", etag)
	rec := newRecorder()
	app.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("conditional get got status %d", rec.Code)
	}
}

func TestProfileIntegration_Catalog(t *testing.T) {
	app := setupTestRouter(t)

	w, _ := doRequest(app.router, http.MethodGet, "/catalog", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("catalog got status %d", w.Code)
	}

	var c struct {
		GradeLevels       []string `json:"gradeLevels"`
		DefaultGradeLevel string   `json:"defaultGradeLevel"`
	}
	mustReadJSON(t, w, &c)
	if len(c.GradeLevels) < 3 || c.DefaultGradeLevel != c.GradeLevels[2] {
		t.Fatalf("unexpected catalog %+v", c)
	}
}
