package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"educbt.org/internal/auth"
	"educbt.org/internal/blob"
	"educbt.org/internal/blog"
	"educbt.org/internal/course"
	"educbt.org/internal/migrate"
	"educbt.org/internal/staff"
	"educbt.org/internal/store/memory"
)

type captureMailer struct {
	mu    sync.Mutex
	links []string
}

func (m *captureMailer) SendResetPassword(_ context.Context, to, name, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return nil
}

func (m *captureMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.links) == 0 {
		return ""
	}
	return m.links[len(m.links)-1]
}

type testEnv struct {
	t      *testing.T
	srv    *httptest.Server
	mailer *captureMailer
	bucket *blob.Memory
	seed   migrate.SeedOptions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	seed := migrate.DefaultSeed()
	seed.BcryptCost = bcrypt.MinCost
	if _, err := migrate.Seed(ctx, store, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mailer := &captureMailer{}
	authSvc, err := auth.NewService(store,
		auth.WithBcryptCost(bcrypt.MinCost),
		auth.WithMailer(mailer, "https://app.example.com"))
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	rbac, err := auth.NewRBACService(store, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("rbac service: %v", err)
	}
	bucket := blob.NewMemory("https://cdn.example.com")

	api := New(Deps{
		Auth:    authSvc,
		RBAC:    rbac,
		Blogs:   blog.NewService(store.Blogs(), bucket, false),
		Courses: course.NewService(store.Courses()),
		Staff:   staff.NewService(store.Staff()),
		Bucket:  bucket,
	}, Options{Version: "test"})

	// Session cookies are Secure, so the jar only replays them over TLS.
	srv := httptest.NewTLSServer(api.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{t: t, srv: srv, mailer: mailer, bucket: bucket, seed: seed}
}

// client returns a client with its own cookie jar.
func (e *testEnv) client() *apiClient {
	e.t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		e.t.Fatalf("cookie jar: %v", err)
	}
	c := e.srv.Client()
	c.Jar = jar
	return &apiClient{baseURL: e.srv.URL + "/api/v1", client: c, t: e.t}
}

// admin returns a client signed in as the seeded administrator.
func (e *testEnv) admin() *apiClient {
	c := e.client()
	c.mustOK(c.post("/user/sign-in", map[string]string{"email": e.seed.AdminEmail, "password": e.seed.AdminPassword}))
	return c
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

type apiResponse struct {
	status int
	header http.Header
	body   struct {
		StatusCode int             `json:"statusCode"`
		Message    string          `json:"message"`
		Data       json.RawMessage `json:"data"`
	}
}

func (r apiResponse) decode(t *testing.T, dst any) {
	t.Helper()
	if err := json.Unmarshal(r.body.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", r.body.Data, err)
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) apiResponse {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	out := apiResponse{status: resp.StatusCode, header: resp.Header}
	if err := json.NewDecoder(resp.Body).Decode(&out.body); err != nil {
		c.t.Fatalf("decode envelope for %s %s: %v", method, path, err)
	}
	if out.body.StatusCode != resp.StatusCode {
		c.t.Fatalf("envelope statusCode %d != %d", out.body.StatusCode, resp.StatusCode)
	}
	return out
}

func (c *apiClient) get(path string) apiResponse { return c.do(http.MethodGet, path, nil, nil) }

func (c *apiClient) post(path string, body any) apiResponse {
	return c.do(http.MethodPost, path, body, nil)
}

func (c *apiClient) mustOK(r apiResponse) apiResponse {
	c.t.Helper()
	if r.status != http.StatusOK && r.status != http.StatusCreated {
		c.t.Fatalf("expected success, got %d: %s", r.status, r.body.Message)
	}
	return r
}

func (c *apiClient) signUp(email, password string) auth.User {
	c.t.Helper()
	resp := c.post("/user/sign-up", map[string]string{"email": email, "password": password, "name": "Student"})
	if resp.status != http.StatusCreated {
		c.t.Fatalf("sign-up: %d %s", resp.status, resp.body.Message)
	}
	var u auth.User
	resp.decode(c.t, &u)
	return u
}

func expectStatus(t *testing.T, r apiResponse, code int, message string) {
	t.Helper()
	if r.status != code {
		t.Fatalf("expected %d, got %d: %s", code, r.status, r.body.Message)
	}
	if message != "" && r.body.Message != message {
		t.Fatalf("expected message %q, got %q", message, r.body.Message)
	}
}

func TestHealthcheckEnvelope(t *testing.T) {
	c := newTestEnv(t).client()
	resp := c.get("/healthcheck")
	expectStatus(t, resp, http.StatusOK, "OK")
	if resp.header.Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}
	if resp.header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers")
	}
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	c := newTestEnv(t).client()
	expectStatus(t, c.get("/nope"), http.StatusNotFound, "Endpoint you're looking for is not found")
}

func TestOrganizationMembersScenario(t *testing.T) {
	admin := newTestEnv(t).admin()

	var org auth.Organization
	admin.mustOK(admin.post("/organization", map[string]string{"name": "Acme"})).decode(t, &org)

	var user auth.User
	admin.mustOK(admin.post("/user", map[string]string{"email": "a@x.com", "password": "password1", "name": "A"})).decode(t, &user)

	admin.mustOK(admin.post(fmt.Sprintf("/user/%d/assign-organization", user.ID), map[string]int64{"organizationId": org.ID}))

	var page struct {
		Data       []auth.User `json:"data"`
		TotalCount int         `json:"totalCount"`
	}
	admin.mustOK(admin.get(fmt.Sprintf("/organization/%d/users", org.ID))).decode(t, &page)
	if page.TotalCount != 1 || len(page.Data) != 1 || page.Data[0].Email != "a@x.com" {
		t.Fatalf("expected only a@x.com in Acme, got %+v", page)
	}

	var orgs struct {
		Data []auth.Organization `json:"data"`
	}
	admin.mustOK(admin.get("/organization?search=acme")).decode(t, &orgs)
	if len(orgs.Data) != 1 || orgs.Data[0].UsersCount != 1 {
		t.Fatalf("expected Acme with one user, got %+v", orgs.Data)
	}
}

func TestPermissionGate(t *testing.T) {
	env := newTestEnv(t)
	anon := env.client()
	expectStatus(t, anon.get("/user"), http.StatusUnauthorized, "User not authenticated")

	student := env.client()
	student.signUp("student@x.com", "password1")
	student.mustOK(student.get("/user/me"))
	expectStatus(t, student.get("/user"), http.StatusUnauthorized, "User not authenticated")

	student.mustOK(student.post("/user/logout", nil))
	expectStatus(t, student.get("/user/me"), http.StatusUnauthorized, "User not authenticated")
}

func TestDuplicateSignUpIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	env.client().signUp("dup@x.com", "password1")
	resp := env.client().post("/user/sign-up", map[string]string{"email": "dup@x.com", "password": "password1", "name": "Again"})
	expectStatus(t, resp, http.StatusBadRequest, "")
}

func TestPasswordResetTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.client().signUp("reset@x.com", "password1")

	anon := env.client()
	anon.mustOK(anon.post("/user/forgot-password", map[string]string{"email": "reset@x.com"}))
	link, err := url.Parse(env.mailer.last())
	if err != nil {
		t.Fatalf("parse reset link: %v", err)
	}
	token := link.Query().Get("token")
	if token == "" {
		t.Fatalf("no token in %q", env.mailer.last())
	}

	change := map[string]string{"token": token, "password": "brand-new-pass"}
	anon.mustOK(anon.post("/user/forgot-password/change", change))
	expectStatus(t, anon.post("/user/forgot-password/change", change), http.StatusBadRequest, "Your reset password token is invalid")

	anon.mustOK(anon.post("/user/sign-in", map[string]string{"email": "reset@x.com", "password": "brand-new-pass"}))
	expectStatus(t, env.client().post("/user/sign-in", map[string]string{"email": "reset@x.com", "password": "password1"}),
		http.StatusUnauthorized, "Incorrect password")
}

func TestCourseFinishSurvivesReload(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin()

	var c course.Course
	admin.mustOK(admin.post("/course", course.NewCourse{
		Name:         "Arithmetic",
		TestDuration: 30,
		PassingGrade: 50,
		Questions: []course.NewQuestion{{
			Question: "2 + 2",
			Options:  []course.NewOption{{Value: "4", IsCorrect: true}, {Value: "5"}},
		}},
	})).decode(t, &c)

	student := env.client()
	student.signUp("taker@x.com", "password1")
	base := fmt.Sprintf("/course/%d", c.ID)

	expectStatus(t, student.get(base+"/test"), http.StatusNotFound, "Test has not been started")

	var state course.TestState
	student.mustOK(student.post(base+"/start", nil)).decode(t, &state)
	if len(state.Questions) != 1 || state.FinishedAt != nil {
		t.Fatalf("unexpected state %+v", state)
	}
	q := state.Questions[0]
	var correct int64
	for _, o := range q.AnswerOptions {
		if o.Value == "4" {
			correct = o.ID
		}
	}
	student.mustOK(student.post(base+"/answer", map[string]int64{"questionId": q.ID, "answerId": correct}))

	var first, second course.Attempt
	student.mustOK(student.post(base+"/finish", nil)).decode(t, &first)
	student.mustOK(student.post(base+"/finish", nil)).decode(t, &second)
	if first.FinishedAt == nil || !first.FinishedAt.Equal(*second.FinishedAt) {
		t.Fatalf("finish should be recorded once: %v vs %v", first.FinishedAt, second.FinishedAt)
	}

	var reloaded course.TestState
	student.mustOK(student.get(base+"/test")).decode(t, &reloaded)
	if reloaded.FinishedAt == nil {
		t.Fatalf("reloaded test should be finished")
	}
	expectStatus(t, student.post(base+"/answer", map[string]int64{"questionId": q.ID, "answerId": correct}),
		http.StatusBadRequest, "Test is already finished")

	var report course.Report
	student.mustOK(student.get(base+"/report")).decode(t, &report)
	if report.Score != 100 || report.IsPassed == nil || !*report.IsPassed {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestBlogPublishFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin()

	var created blog.Blog
	admin.mustOK(admin.post("/blog", blog.Input{Title: "Hello Go", Content: `{"type":"doc"}`, WordCount: 2})).decode(t, &created)
	if created.Slug != "hello-go" {
		t.Fatalf("unexpected slug %q", created.Slug)
	}

	anon := env.client()
	expectStatus(t, anon.get("/blog/slug/hello-go"), http.StatusOK, "OK")
	var public struct {
		Data []blog.Blog `json:"data"`
	}
	anon.mustOK(anon.get("/blog")).decode(t, &public)
	if len(public.Data) != 0 {
		t.Fatalf("draft should not be listed publicly")
	}

	admin.mustOK(admin.post(fmt.Sprintf("/blog/%d/publish", created.ID), map[string]bool{"published": true}))
	anon.mustOK(anon.get("/blog")).decode(t, &public)
	if len(public.Data) != 1 || len(public.Data[0].Authors) != 1 {
		t.Fatalf("expected one published post with its author, got %+v", public.Data)
	}
	if _, err := env.bucket.Get(context.Background(), "blog/dev/hello-go.published.json"); err != nil {
		t.Fatalf("published object missing: %v", err)
	}

	expectStatus(t, admin.post("/blog", blog.Input{Title: "Hello Go!", Content: "{}"}), http.StatusBadRequest,
		"Blog with slug hello-go is already exist")
}

func TestPayrollRunRejectsDuplicatePeriod(t *testing.T) {
	admin := newTestEnv(t).admin()

	admin.mustOK(admin.post("/allowance", staff.AdjustmentInput{Title: "Transport", Amount: 100}))
	admin.mustOK(admin.post("/deduction", staff.AdjustmentInput{Title: "Tax", Amount: 50}))
	admin.mustOK(admin.post("/staff", staff.MemberInput{Name: "Dana", Email: "dana@x.com", Salary: 1000}))

	period := staff.Period{Year: 2024, Month: 5}
	var run staff.Payroll
	admin.mustOK(admin.post("/payroll/run", period)).decode(t, &run)
	if run.Totals.Net != 1050 || len(run.Items) != 1 {
		t.Fatalf("unexpected payroll %+v", run)
	}
	expectStatus(t, admin.post("/payroll/run", period), http.StatusBadRequest, "Payroll for this period already exists")

	var summary []staff.MonthSummary
	admin.mustOK(admin.get("/payroll/summary?year=2024")).decode(t, &summary)
	if len(summary) != 1 || summary[0].Month != 5 || summary[0].Net != 1050 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestPresignAndGeolocation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin()

	var out struct {
		URL string `json:"url"`
	}
	admin.mustOK(admin.post("/file/get-presigned-url", map[string]string{"fileKey": "avatars/me.png"})).decode(t, &out)
	if out.URL == "" {
		t.Fatalf("expected presigned url")
	}
	expectStatus(t, env.client().post("/file/get-presigned-url", map[string]string{"fileKey": "x"}),
		http.StatusUnauthorized, "User not authenticated")

	resp := env.client().post("/geolocation", map[string]string{"ip": "203.0.113.9"})
	expectStatus(t, resp, http.StatusOK, "OK")
	if string(resp.body.Data) != "null" {
		t.Fatalf("expected null data, got %s", resp.body.Data)
	}
}
