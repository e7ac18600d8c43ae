package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/uiowa-coph/roomres/internal/docsync"
	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/http/handler"
	"github.com/uiowa-coph/roomres/internal/http/middleware"
	"github.com/uiowa-coph/roomres/internal/http/router"
	"github.com/uiowa-coph/roomres/internal/identity"
	"github.com/uiowa-coph/roomres/internal/pipeline"
	"github.com/uiowa-coph/roomres/internal/repository"
	"github.com/uiowa-coph/roomres/internal/security"
	"github.com/uiowa-coph/roomres/internal/session"
	"github.com/uiowa-coph/roomres/internal/workflow"
)

const callbackSecret = "cb-secret"

type fakeApproval struct {
	nextID    int
	createErr error
}

func (f *fakeApproval) CreatePackage(context.Context, string, string, workflow.RoutingEntry) (*domain.ApprovalPackage, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	return &domain.ApprovalPackage{
		PackageID: f.nextID,
		State:     domain.PackageRouting,
		Actions:   domain.PackageActions{CanEdit: true, CanVoid: true},
	}, nil
}

func (f *fakeApproval) GetPermissions(context.Context, string, string, int) (*domain.PackageActions, error) {
	return &domain.PackageActions{CanEdit: true}, nil
}

func (f *fakeApproval) RemovePackage(context.Context, string, string, int) error { return nil }

func (f *fakeApproval) VoidPackage(context.Context, string, string, int, string) error { return nil }

type fakeDocs struct{}

func (fakeDocs) Create(context.Context, docsync.Item) error { return nil }
func (fakeDocs) Update(context.Context, docsync.Item) error { return nil }
func (fakeDocs) Delete(context.Context, int) error          { return nil }

type fakeIdentity struct {
	exchangeErr error
}

func (f *fakeIdentity) AuthCodeURL(state string) string {
	return "https://login.test.uiowa.edu/uip/auth.page?state=" + state
}

func (f *fakeIdentity) Exchange(context.Context, string) (*identity.UserToken, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &identity.UserToken{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
		HawkID:       "hawkeye",
		UniversityID: "00112233",
	}, nil
}

func (f *fakeIdentity) Refresh(context.Context, string) (*identity.UserToken, error) {
	return nil, fmt.Errorf("refresh not expected in this test")
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type serverFixture struct {
	server   *httptest.Server
	approval *fakeApproval
	sessions *session.MemoryStore
	state    *security.StateManager
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.EventRecord{}, &domain.LayoutRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &serverFixture{
		approval: &fakeApproval{},
		sessions: session.NewMemoryStore(),
		state:    security.NewStateManager("test-secret", 10*time.Minute),
	}
	p := pipeline.New(
		f.approval,
		repository.NewEventRepository(db),
		repository.NewLayoutRepository(db),
		fakeDocs{},
		"https://rooms.test.uiowa.edu",
		slog.Default(),
	)
	id := &fakeIdentity{}
	f.server = httptest.NewServer(router.NewRouter(router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(id, f.sessions, f.state, time.Hour, false),
		EventHandler:    handler.NewEventHandler(p),
		LayoutHandler:   handler.NewLayoutHandler(p),
		CallbackHandler: handler.NewCallbackHandler(p, callbackSecret),
		SessionStore:    f.sessions,
		Refresher:       id,
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *serverFixture) login(t *testing.T) *http.Cookie {
	t.Helper()
	err := f.sessions.Set(context.Background(), &domain.Session{
		ID:              "sid",
		UserAccessToken: "access",
		TokenExpiry:     time.Now().Add(time.Hour),
		HawkID:          "hawkeye",
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return &http.Cookie{Name: middleware.SessionCookieName, Value: "sid"}
}

func (f *serverFixture) call(t *testing.T, method, path string, body any, cookie *http.Cookie) (*http.Response, apiEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func submissionBody() map[string]any {
	return map[string]any{
		"userEmail":  "hawkeye@uiowa.edu",
		"eventName":  "Curing Cancer",
		"date":       "2018-08-01",
		"startTime":  "8:00 AM",
		"endTime":    "12:00 PM",
		"roomNumber": "XC100",
		"numPeople":  1,
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newServerFixture(t)

	resp, env := f.call(t, http.MethodGet, "/health/live", nil, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("live: %d success=%v", resp.StatusCode, env.Success)
	}
	resp, _ = f.call(t, http.MethodGet, "/health/ready", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready: %d", resp.StatusCode)
	}
}

func TestEventsRequireSession(t *testing.T) {
	f := newServerFixture(t)

	resp, env := f.call(t, http.MethodGet, "/api/v1/events", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "UNAUTHENTICATED" {
		t.Fatalf("error: %+v", env.Error)
	}
}

func TestCreateEvent(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	resp, env := f.call(t, http.MethodPost, "/api/v1/events", submissionBody(), cookie)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body %s", resp.StatusCode, env.Data)
	}
	var view struct {
		Event struct {
			PackageID int    `json:"packageId"`
			Approved  string `json:"approved"`
		} `json:"event"`
		Permissions *domain.PackageActions `json:"permissions"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Event.PackageID != 1 || view.Event.Approved != domain.ApprovalPending {
		t.Fatalf("view: %+v", view)
	}
	if view.Permissions == nil || !view.Permissions.CanEdit {
		t.Fatalf("permissions: %+v", view.Permissions)
	}
}

func TestCreateEventValidationError(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	body := submissionBody()
	body["userEmail"] = "not-an-email"
	resp, env := f.call(t, http.MethodPost, "/api/v1/events", body, cookie)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("error: %+v", env.Error)
	}
	var details struct {
		Stage  string `json:"stage"`
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(env.Error.Details, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details.Stage != "Validating" || len(details.Fields) == 0 {
		t.Fatalf("details: %+v", details)
	}
}

func TestCreateEventOrphanedPackage(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	// First create claims packageId 1, then a duplicate record insert for the
	// same id forces the orphaned-package path on the second create.
	if resp, _ := f.call(t, http.MethodPost, "/api/v1/events", submissionBody(), cookie); resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed create: %d", resp.StatusCode)
	}
	f.approval.nextID = 0 // router hands out id 1 again

	resp, env := f.call(t, http.MethodPost, "/api/v1/events", submissionBody(), cookie)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "ORPHANED_PACKAGE" {
		t.Fatalf("error: %+v", env.Error)
	}
	var details struct {
		PackageID int `json:"packageId"`
	}
	if err := json.Unmarshal(env.Error.Details, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details.PackageID != 1 {
		t.Fatalf("orphaned packageId = %d", details.PackageID)
	}
}

func TestListDefaultsToOwnEvents(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	if resp, _ := f.call(t, http.MethodPost, "/api/v1/events", submissionBody(), cookie); resp.StatusCode != http.StatusCreated {
		t.Fatal("seed create failed")
	}

	resp, env := f.call(t, http.MethodGet, "/api/v1/events", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var events []domain.EventRecord
	if err := json.Unmarshal(env.Data, &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 1 || events[0].UserEmail != "hawkeye@uiowa.edu" {
		t.Fatalf("events: %+v", events)
	}
}

func TestListRejectsUnindexedFilter(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	resp, env := f.call(t, http.MethodGet, "/api/v1/events?filterField=eventName&filterValue=x", nil, cookie)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "BAD_REQUEST" {
		t.Fatalf("error: %+v", env.Error)
	}
}

func TestGetMissingEvent(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	resp, env := f.call(t, http.MethodGet, "/api/v1/events/404", nil, cookie)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("error: %+v", env.Error)
	}
}

func TestBadPackageIDParam(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	for _, path := range []string{"/api/v1/events/abc", "/api/v1/events/0", "/api/v1/events/-3"} {
		resp, _ := f.call(t, http.MethodGet, path, nil, cookie)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestDeleteEvent(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	if resp, _ := f.call(t, http.MethodPost, "/api/v1/events", submissionBody(), cookie); resp.StatusCode != http.StatusCreated {
		t.Fatal("seed create failed")
	}

	resp, env := f.call(t, http.MethodDelete, "/api/v1/events/1", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	var data map[string]int
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data["packageId"] != 1 {
		t.Fatalf("data: %v", data)
	}

	if resp, _ := f.call(t, http.MethodGet, "/api/v1/events/1", nil, cookie); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("record survived delete: %d", resp.StatusCode)
	}
}

func TestVoidRequiresReason(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	if resp, _ := f.call(t, http.MethodPost, "/api/v1/events", submissionBody(), cookie); resp.StatusCode != http.StatusCreated {
		t.Fatal("seed create failed")
	}

	resp, _ := f.call(t, http.MethodPost, "/api/v1/events/1/void", map[string]string{}, cookie)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("void without reason: %d, want 400", resp.StatusCode)
	}

	resp, _ = f.call(t, http.MethodPost, "/api/v1/events/1/void", map[string]string{"reason": "room closed"}, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("void: %d", resp.StatusCode)
	}

	_, env := f.call(t, http.MethodGet, "/api/v1/events/1", nil, cookie)
	var view struct {
		Event struct {
			Approved string `json:"approved"`
		} `json:"event"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Event.Approved != domain.ApprovalVoid {
		t.Fatalf("approved = %q, want %q", view.Event.Approved, domain.ApprovalVoid)
	}
}

func TestWorkflowCallback(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	if resp, _ := f.call(t, http.MethodPost, "/api/v1/events", submissionBody(), cookie); resp.StatusCode != http.StatusCreated {
		t.Fatal("seed create failed")
	}

	payload, _ := json.Marshal(map[string]any{"packageId": 1, "state": domain.PackageComplete})

	// Wrong secret is rejected.
	req, _ := http.NewRequest(http.MethodPost, f.server.URL+"/callbacks/workflow", bytes.NewReader(payload))
	req.Header.Set("X-Callback-Secret", "wrong")
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad secret: %d, want 401", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, f.server.URL+"/callbacks/workflow", bytes.NewReader(payload))
	req.Header.Set("X-Callback-Secret", callbackSecret)
	resp, err = f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback: %d", resp.StatusCode)
	}

	_, env := f.call(t, http.MethodGet, "/api/v1/events/1", nil, cookie)
	var view struct {
		Event struct {
			Approved string `json:"approved"`
		} `json:"event"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Event.Approved != domain.ApprovalComplete {
		t.Fatalf("approved = %q, want %q", view.Event.Approved, domain.ApprovalComplete)
	}
}

func TestPublicLayoutLifecycle(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	body := map[string]any{"items": []map[string]any{
		{"id": "a", "furn": "chair", "x": 10, "y": 20},
	}}
	resp, env := f.call(t, http.MethodPut, "/api/v1/layouts/classroom-default", body, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save: %d %s", resp.StatusCode, env.Data)
	}

	resp, env = f.call(t, http.MethodGet, "/api/v1/layouts", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d", resp.StatusCode)
	}
	var layouts []domain.LayoutRecord
	if err := json.Unmarshal(env.Data, &layouts); err != nil {
		t.Fatalf("decode layouts: %v", err)
	}
	if len(layouts) != 1 || layouts[0].ID != "classroom-default" || layouts[0].Type != domain.LayoutTypePublic {
		t.Fatalf("layouts: %+v", layouts)
	}

	if resp, _ := f.call(t, http.MethodDelete, "/api/v1/layouts/classroom-default", nil, cookie); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	if resp, _ := f.call(t, http.MethodGet, "/api/v1/layouts/classroom-default", nil, cookie); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("layout survived delete: %d", resp.StatusCode)
	}
}

func TestEventLayoutEndpoint(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	body := submissionBody()
	body["items"] = []map[string]any{{"id": "a", "furn": "chair", "x": 1, "y": 1}}
	if resp, _ := f.call(t, http.MethodPost, "/api/v1/events", body, cookie); resp.StatusCode != http.StatusCreated {
		t.Fatal("seed create failed")
	}

	resp, env := f.call(t, http.MethodGet, "/api/v1/events/1/layout", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("layout: %d", resp.StatusCode)
	}
	var layout domain.LayoutRecord
	if err := json.Unmarshal(env.Data, &layout); err != nil {
		t.Fatalf("decode layout: %v", err)
	}
	if layout.ID != "1" || len(layout.Items) != 1 {
		t.Fatalf("layout: %+v", layout)
	}
}

func noRedirectClient(f *serverFixture) *http.Client {
	c := *f.server.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &c
}

func TestLoginRedirectsWithSignedState(t *testing.T) {
	f := newServerFixture(t)
	client := noRedirectClient(f)

	resp, err := client.Get(f.server.URL + "/auth/login?redirect=/events/7")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	loc, err := resp.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	claims, err := f.state.Verify(loc.Query().Get("state"))
	if err != nil {
		t.Fatalf("state does not verify: %v", err)
	}
	if claims.Redirect != "/events/7" {
		t.Fatalf("redirect claim = %q", claims.Redirect)
	}
}

func TestLoginRejectsExternalRedirect(t *testing.T) {
	f := newServerFixture(t)
	client := noRedirectClient(f)

	resp, err := client.Get(f.server.URL + "/auth/login?redirect=https://evil.example.com/")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	loc, err := resp.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	claims, err := f.state.Verify(loc.Query().Get("state"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Redirect != "/" {
		t.Fatalf("external redirect accepted: %q", claims.Redirect)
	}
}

func TestCallbackCreatesSession(t *testing.T) {
	f := newServerFixture(t)
	client := noRedirectClient(f)

	state, err := f.state.Sign("/events/7")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	resp, err := client.Get(f.server.URL + "/auth/callback?code=abc&state=" + state)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	loc, _ := resp.Location()
	if loc.Path != "/events/7" {
		t.Fatalf("redirected to %q", loc)
	}

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly {
		t.Fatal("session cookie is not HttpOnly")
	}
	sess, err := f.sessions.Get(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if sess.HawkID != "hawkeye" || sess.UserAccessToken != "access" {
		t.Fatalf("session: %+v", sess)
	}
}

func TestCallbackRejectsBadState(t *testing.T) {
	f := newServerFixture(t)

	resp, env := f.call(t, http.MethodGet, "/auth/callback?code=abc&state=forged", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "BAD_REQUEST" {
		t.Fatalf("error: %+v", env.Error)
	}
}

func TestLogout(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.login(t)

	req, _ := http.NewRequest(http.MethodPost, f.server.URL+"/auth/logout", nil)
	req.AddCookie(cookie)
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if _, err := f.sessions.Get(context.Background(), "sid"); err == nil {
		t.Fatal("session survived logout")
	}
	if resp, _ := f.call(t, http.MethodGet, "/api/v1/events", nil, cookie); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("request with dead session: %d, want 401", resp.StatusCode)
	}
}
