package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/services"
	"studybuddy-backend/internal/services/servicetest"
)

const testUserHeader = "X-Test-User"

type testServer struct {
	store    *servicetest.Store
	router   http.Handler
	dir      string
	enqueued []*models.Job
}

// newTestServer mounts the handlers over in-memory stores. The caller is
// identified by the X-Test-User header instead of a JWT.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLocker(t, nil)
}

func newTestServerWithLocker(t *testing.T, locker services.Locker) *testServer {
	t.Helper()
	store := servicetest.New()
	log := logger.Nop()
	ts := &testServer{store: store, dir: t.TempDir()}

	courseSvc := services.NewCourseService(store.Courses, store.Materials, log)
	planSvc := services.NewPlanService(store.Courses, store.Materials, store.Plans, store.Sessions, locker, store.Publisher, 0, log)
	contentSvc := services.NewContentUpdateService(store.Courses, store.Materials, store.Plans, store.Sessions, locker, store.Publisher, 0, log)
	progressSvc := services.NewProgressService(store.Courses, store.Plans, store.Sessions, store.Logs, log)
	sessionSvc := services.NewSessionService(store.Plans, store.Sessions, store.Publisher, log)
	authSvc := services.NewAuthService(store.Users, store.Tokens, middleware.NewJWTAuth("handler-secret"), log)

	enqueue := func(_ context.Context, job *models.Job) error {
		ts.enqueued = append(ts.enqueued, job)
		return nil
	}

	auth := NewAuthHandler(authSvc)
	courses := NewCourseHandler(courseSvc, contentSvc, store.Jobs, enqueue, ts.dir, log)
	plans := NewStudyPlanHandler(planSvc, contentSvc, progressSvc)
	sessions := NewStudySessionHandler(sessionSvc)
	jobs := NewJobHandler(store.Jobs)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Post("/auth/register", auth.Register)
	r.Post("/auth/login", auth.Login)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				id, _ := uuid.Parse(req.Header.Get(testUserHeader))
				next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), id)))
			})
		})
		r.Get("/me", auth.GetMe)
		r.Put("/me/profile", auth.UpdateProfile)
		r.Post("/courses", courses.Create)
		r.Get("/courses", courses.List)
		r.Get("/courses/{id}", courses.Get)
		r.Put("/courses/{id}/outline", courses.AmendOutline)
		r.Get("/courses/{id}/analysis", courses.Analyze)
		r.Get("/courses/{id}/materials", courses.ListMaterials)
		r.Post("/courses/{id}/materials", courses.AddMaterial)
		r.Post("/courses/{id}/materials/upload", courses.Upload)
		r.Get("/courses/{id}/study-plan", plans.GetActive)
		r.Post("/courses/{id}/study-plan", plans.Generate)
		r.Post("/courses/{id}/study-plan/content", plans.ApplyContent)
		r.Get("/courses/{id}/progress", plans.CourseProgress)
		r.Get("/dashboard/progress", plans.UserProgress)
		r.Post("/progress/sessions", plans.RecordStudyLog)
		r.Get("/study-plans/{id}/sessions", sessions.ListByPlan)
		r.Get("/study-sessions/{id}", sessions.Get)
		r.Get("/study-sessions/{id}/guide", sessions.Guide)
		r.Post("/study-sessions/{id}/start", sessions.Start)
		r.Post("/study-sessions/{id}/skip", sessions.Skip)
		r.Post("/study-sessions/{id}/complete", sessions.Complete)
		r.Get("/jobs/{id}", jobs.GetJob)
	})
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, userID uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(testUserHeader, userID.String())
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.ErrorResponse
	decode(t, rr, &resp)
	return resp.Error.Code
}

func (ts *testServer) createCourse(t *testing.T, userID uuid.UUID, title string) *models.Course {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/courses", userID, models.CreateCourseRequest{Title: title})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create course status = %d: %s", rr.Code, rr.Body.String())
	}
	var c models.Course
	decode(t, rr, &c)
	return &c
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"title": "Required"}}, http.StatusBadRequest, services.CodeMalformedInput},
		{"duplicate", &services.ConflictError{Code: services.CodeDuplicateIdentity, Message: "taken"}, http.StatusConflict, services.CodeDuplicateIdentity},
		{"wrapped not found", fmt.Errorf("load: %w", &services.NotFoundError{Code: services.CodeCourseNotFound, Message: "Course not found"}), http.StatusNotFound, services.CodeCourseNotFound},
		{"unauthorized", &services.UnauthorizedError{Message: "no"}, http.StatusUnauthorized, services.CodeUnauthorized},
		{"forbidden", &services.ForbiddenError{Message: "no"}, http.StatusForbidden, services.CodeForbidden},
		{"rate limited", &services.RateLimitError{Message: "slow down"}, http.StatusTooManyRequests, services.CodeRateLimited},
		{"internal", errors.New("db down"), http.StatusInternalServerError, services.CodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(middleware.RequestIDHeader, "req-1")
			rr := httptest.NewRecorder()
			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			var resp models.ErrorResponse
			decode(t, rr, &resp)
			if resp.Error.Code != tc.wantCode || resp.Error.RequestID != "req-1" {
				t.Fatalf("unexpected envelope: %+v", resp.Error)
			}
		})
	}
}

func TestAuthHandlers_RegisterLoginMe(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/auth/register", uuid.Nil, models.RegisterRequest{
		Email: "grace@example.com", Username: "grace", Password: "cobol1959",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rr.Code, rr.Body.String())
	}
	var reg struct {
		User models.User `json:"user"`
	}
	decode(t, rr, &reg)

	rr = ts.do(t, http.MethodPost, "/auth/register", uuid.Nil, models.RegisterRequest{
		Email: "grace@example.com", Username: "grace2", Password: "cobol1959",
	})
	if rr.Code != http.StatusConflict || errorCode(t, rr) != services.CodeDuplicateIdentity {
		t.Fatalf("expected duplicate identity conflict, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/auth/login", uuid.Nil, models.LoginRequest{Email: "grace@example.com", Password: "cobol1959"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rr.Code, rr.Body.String())
	}
	var tokens models.AuthTokens
	decode(t, rr, &tokens)
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("missing tokens: %+v", tokens)
	}

	rr = ts.do(t, http.MethodPut, "/me/profile", reg.User.ID, map[string]interface{}{
		"profile": map[string]string{"timezone": "UTC"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update profile status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodGet, "/me", reg.User.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("me status = %d", rr.Code)
	}
}

func TestCourseHandlers(t *testing.T) {
	ts := newTestServer(t)
	owner, other := uuid.New(), uuid.New()
	course := ts.createCourse(t, owner, "Algorithms")

	tests := []struct {
		name       string
		method     string
		path       string
		user       uuid.UUID
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"bad json", http.MethodPost, "/courses", owner, "{", http.StatusBadRequest, services.CodeMalformedInput},
		{"missing title", http.MethodPost, "/courses", owner, models.CreateCourseRequest{}, http.StatusBadRequest, services.CodeMalformedInput},
		{"bad id", http.MethodGet, "/courses/nope", owner, nil, http.StatusBadRequest, services.CodeMalformedInput},
		{"unknown course", http.MethodGet, "/courses/" + uuid.NewString(), owner, nil, http.StatusNotFound, services.CodeCourseNotFound},
		{"other user", http.MethodGet, "/courses/" + course.ID.String(), other, nil, http.StatusForbidden, services.CodeForbidden},
		{"bad schedule", http.MethodPut, "/courses/" + course.ID.String() + "/outline", owner,
			map[string]string{"content_delivery_schedule": "daily"}, http.StatusBadRequest, services.CodeMalformedInput},
		{"no plan yet", http.MethodGet, "/courses/" + course.ID.String() + "/progress", owner, nil, http.StatusNotFound, services.CodeNoStudyPlanFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := ts.do(t, tc.method, tc.path, tc.user, tc.body)
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tc.wantStatus, rr.Body.String())
			}
			if code := errorCode(t, rr); code != tc.wantCode {
				t.Fatalf("code = %s, want %s", code, tc.wantCode)
			}
		})
	}

	rr := ts.do(t, http.MethodGet, "/courses", owner, nil)
	var list struct {
		Courses []models.Course `json:"courses"`
	}
	decode(t, rr, &list)
	if len(list.Courses) != 1 || list.Courses[0].ID != course.ID {
		t.Fatalf("unexpected course list: %+v", list.Courses)
	}
}

func TestStudyPlanFlow(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()
	course := ts.createCourse(t, userID, "Compilers")
	base := "/courses/" + course.ID.String()

	rr := ts.do(t, http.MethodPost, base+"/study-plan", userID, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate status = %d: %s", rr.Code, rr.Body.String())
	}
	var gen models.GeneratedPlan
	decode(t, rr, &gen)
	if len(gen.Sessions) != 18 || gen.Summary.TotalWeeks != 12 {
		t.Fatalf("unexpected plan: %d sessions, %d weeks", len(gen.Sessions), gen.Summary.TotalWeeks)
	}

	rr = ts.do(t, http.MethodPost, base+"/study-plan", userID, map[string]int{"sessions_per_week": 99})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid preferences to fail, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, base+"/materials", userID, map[string]interface{}{
		"title":        "Parsing",
		"content_text": "LL and LR parsing",
		"week_number":  3,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add material status = %d: %s", rr.Code, rr.Body.String())
	}
	var added struct {
		Material        models.Material `json:"material"`
		UpdatedSessions int             `json:"updated_sessions"`
	}
	decode(t, rr, &added)
	if added.UpdatedSessions != 3 || added.Material.ContentType != "text" {
		t.Fatalf("unexpected add material response: %+v", added)
	}

	// Applying the same material again finds nothing pending.
	rr = ts.do(t, http.MethodPost, base+"/study-plan/content", userID, map[string]interface{}{
		"material_id": added.Material.ID,
		"week_number": 3,
	})
	var applied struct {
		UpdatedSessions int `json:"updated_sessions"`
	}
	decode(t, rr, &applied)
	if rr.Code != http.StatusOK || applied.UpdatedSessions != 0 {
		t.Fatalf("unexpected apply response %d: %+v", rr.Code, applied)
	}

	first := gen.Sessions[0].ID.String()
	rr = ts.do(t, http.MethodPost, "/study-sessions/"+first+"/complete", userID, map[string]float64{"validation_score": 150})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected out of range score to fail, got %d", rr.Code)
	}
	rr = ts.do(t, http.MethodPost, "/study-sessions/"+first+"/complete", userID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("complete status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodGet, "/study-sessions/"+first+"/guide", userID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("guide status = %d", rr.Code)
	}

	rr = ts.do(t, http.MethodGet, base+"/progress", userID, nil)
	var cp models.CourseProgress
	decode(t, rr, &cp)
	if cp.CompletedSessions != 1 || cp.TotalSessions != 18 {
		t.Fatalf("unexpected course progress: %+v", cp)
	}

	rr = ts.do(t, http.MethodGet, "/study-plans/"+gen.Plan.ID.String()+"/sessions", uuid.New(), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden for another user's plan, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodGet, "/dashboard/progress", userID, nil)
	var up models.UserProgress
	decode(t, rr, &up)
	if up.TotalCourses != 1 || up.ActivePlans != 1 || up.CompletedSessions != 1 {
		t.Fatalf("unexpected user progress: %+v", up)
	}
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func (ts *testServer) upload(t *testing.T, courseID, userID uuid.UUID, filename string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, "Lecture notes", fields)
	req := httptest.NewRequest(http.MethodPost, "/courses/"+courseID.String()+"/materials/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(testUserHeader, userID.String())
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()
	course := ts.createCourse(t, userID, "Graphics")

	rr := ts.upload(t, course.ID, userID, "week2.txt", map[string]string{"week_number": "2", "topics": "shaders, rasterization"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		JobID uuid.UUID `json:"job_id"`
	}
	decode(t, rr, &resp)

	if len(ts.enqueued) != 1 || ts.enqueued[0].ID != resp.JobID {
		t.Fatalf("expected job to be enqueued, got %+v", ts.enqueued)
	}
	var cfg models.IngestionConfig
	if err := json.Unmarshal(ts.enqueued[0].ConfigJSON, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.WeekNumber == nil || *cfg.WeekNumber != 2 || len(cfg.Topics) != 2 || cfg.Filename != "week2.txt" {
		t.Fatalf("unexpected ingestion config: %+v", cfg)
	}
	if data, err := os.ReadFile(filepath.Join(ts.dir, cfg.FilePath)); err != nil || string(data) != "Lecture notes" {
		t.Fatalf("upload not stored: %v", err)
	}

	rr = ts.do(t, http.MethodGet, "/jobs/"+resp.JobID.String(), userID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("job status = %d", rr.Code)
	}
	rr = ts.do(t, http.MethodGet, "/jobs/"+resp.JobID.String(), uuid.New(), nil)
	if rr.Code != http.StatusNotFound || errorCode(t, rr) != services.CodeJobNotFound {
		t.Fatalf("expected job hidden from other users, got %d", rr.Code)
	}
}

func TestUpload_Rejections(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()
	course := ts.createCourse(t, userID, "Ethics")

	tests := []struct {
		name       string
		courseID   uuid.UUID
		filename   string
		fields     map[string]string
		wantStatus int
	}{
		{"legacy doc", course.ID, "old.doc", nil, http.StatusBadRequest},
		{"image", course.ID, "slide.png", nil, http.StatusBadRequest},
		{"bad week", course.ID, "notes.txt", map[string]string{"week_number": "zero"}, http.StatusBadRequest},
		{"unknown course", uuid.New(), "notes.txt", nil, http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := ts.upload(t, tc.courseID, userID, tc.filename, tc.fields)
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tc.wantStatus, rr.Body.String())
			}
		})
	}
	if len(ts.enqueued) != 0 {
		t.Fatalf("rejected uploads must not be queued, got %d", len(ts.enqueued))
	}
}

// busyLocker reports every course lock as held while busy is set.
type busyLocker struct {
	busy atomic.Bool
}

func (l *busyLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.busy.Load() {
		return nil, services.ErrLockHeld
	}
	return func() {}, nil
}

func TestAddMaterial_PlanLockedKeepsMaterial(t *testing.T) {
	locker := &busyLocker{}
	ts := newTestServerWithLocker(t, locker)
	userID := uuid.New()
	course := ts.createCourse(t, userID, "Networks")
	base := "/courses/" + course.ID.String()

	if rr := ts.do(t, http.MethodPost, base+"/study-plan", userID, nil); rr.Code != http.StatusCreated {
		t.Fatalf("generate status = %d", rr.Code)
	}

	locker.busy.Store(true)
	body, _ := json.Marshal(map[string]interface{}{"title": "Routing", "content_type": "text", "content_text": "BGP", "week_number": 3})
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, base+"/materials", bytes.NewReader(body)).WithContext(ctx)
	req.Header.Set(testUserHeader, userID.String())
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict || errorCode(t, rr) != services.CodeConflict {
		t.Fatalf("expected conflict while the plan is locked, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodGet, base+"/materials", userID, nil)
	var list struct {
		Materials []models.Material `json:"materials"`
	}
	decode(t, rr, &list)
	if len(list.Materials) != 1 {
		t.Fatalf("expected the material to be kept, got %d", len(list.Materials))
	}

	locker.busy.Store(false)
	rr = ts.do(t, http.MethodPost, base+"/study-plan/content", userID, map[string]interface{}{
		"material_id": list.Materials[0].ID,
		"week_number": 3,
	})
	var applied struct {
		UpdatedSessions int `json:"updated_sessions"`
	}
	decode(t, rr, &applied)
	if rr.Code != http.StatusOK || applied.UpdatedSessions != 3 {
		t.Fatalf("expected the pending week to fill on retry, got %d: %+v", rr.Code, applied)
	}
}

func TestRecordStudyLog(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()

	rr := ts.do(t, http.MethodPost, "/progress/sessions", userID, map[string]interface{}{"duration": 0})
	if rr.Code != http.StatusBadRequest || errorCode(t, rr) != services.CodeMalformedInput {
		t.Fatalf("expected malformed input, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/progress/sessions", userID, map[string]interface{}{
		"duration": 120,
		"topics":   []string{"flashcards"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("record status = %d: %s", rr.Code, rr.Body.String())
	}
	var l models.StudyLog
	decode(t, rr, &l)
	if l.DurationMinutes != 120 || len(l.Topics) != 1 || l.CourseID != nil {
		t.Fatalf("unexpected log: %+v", l)
	}

	rr = ts.do(t, http.MethodGet, "/dashboard/progress", userID, nil)
	var up models.UserProgress
	decode(t, rr, &up)
	if up.TotalStudyTime != 2 || up.TotalSessions != 0 {
		t.Fatalf("expected 2 logged hours and no sessions, got %+v", up)
	}
}
