package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/plugmart/plugmart/internal/auth"
	"github.com/plugmart/plugmart/internal/config"
	"github.com/plugmart/plugmart/internal/middleware"
	"github.com/plugmart/plugmart/internal/store"
)

const (
	testSecret        = "handler-test-secret-32-characters!!"
	testAdminPassword = "admin-test-password"
)

// newTestApp builds a memory-backed App with a seeded admin account. The
// handler chain is identical to the one main() assembles.
func newTestApp(t *testing.T) (*App, http.Handler) {
	t.Helper()

	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })

	hasher := auth.NewHasher(10)
	hash, err := hasher.Hash(testAdminPassword)
	if err != nil {
		t.Fatalf("failed to hash admin password: %v", err)
	}
	if _, err := st.CreateAdmin(context.Background(), "admin", hash); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	app := &App{
		Store:  st,
		Tokens: auth.NewTokenService(testSecret, time.Hour),
		Hasher: hasher,
		Config: &config.Config{},
	}
	return app, app.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func adminToken(t *testing.T, app *App) string {
	t.Helper()
	token, err := app.Tokens.Issue(1, "admin", "", auth.AccountKindAdmin)
	if err != nil {
		t.Fatalf("failed to issue admin token: %v", err)
	}
	return token
}

func customerToken(t *testing.T, app *App) string {
	t.Helper()
	token, err := app.Tokens.Issue(7, "", "customer@example.com", auth.AccountKindCustomer)
	if err != nil {
		t.Fatalf("failed to issue customer token: %v", err)
	}
	return token
}

func TestHealth(t *testing.T) {
	_, h := newTestApp(t)

	rec := doJSON(t, h, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := decodeResponse(t, rec)
	if body["status"] != "OK" {
		t.Errorf("expected status OK, got %v", body["status"])
	}
	if body["message"] != "Plugmart API is running" {
		t.Errorf("unexpected message: %v", body["message"])
	}
	if body["database"] != "memory" {
		t.Errorf("expected database memory, got %v", body["database"])
	}
	if body["timestamp"] == "" {
		t.Error("expected a timestamp")
	}
}

func TestGuardedRoutes(t *testing.T) {
	app, h := newTestApp(t)

	expired, err := auth.NewTokenService(testSecret, -time.Minute).Issue(1, "admin", "", auth.AccountKindAdmin)
	if err != nil {
		t.Fatalf("failed to issue expired token: %v", err)
	}

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/plugins"},
		{http.MethodDelete, "/api/plugins/1"},
		{http.MethodGet, "/api/feedback"},
		{http.MethodGet, "/api/orders"},
		{http.MethodPatch, "/api/orders/1"},
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/admin/accounts"},
		{http.MethodGet, "/api/stats"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := doJSON(t, h, rt.method, rt.path, "", nil)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("no token: expected 401, got %d", rec.Code)
			}
			if body := decodeResponse(t, rec); body["error"] != "Access token required" {
				t.Errorf("no token: unexpected error %v", body["error"])
			}

			rec = doJSON(t, h, rt.method, rt.path, "not-a-token", nil)
			if rec.Code != http.StatusForbidden {
				t.Errorf("garbage token: expected 403, got %d", rec.Code)
			}
			if body := decodeResponse(t, rec); body["error"] != "Invalid token" {
				t.Errorf("garbage token: unexpected error %v", body["error"])
			}

			rec = doJSON(t, h, rt.method, rt.path, expired, nil)
			if rec.Code != http.StatusForbidden {
				t.Errorf("expired token: expected 403, got %d", rec.Code)
			}
			if body := decodeResponse(t, rec); body["error"] != "Invalid token" {
				t.Errorf("expired token: unexpected error %v", body["error"])
			}
		})
	}

	// A valid token passes the guard.
	rec := doJSON(t, h, http.MethodGet, "/api/stats", adminToken(t, app), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: expected 200, got %d", rec.Code)
	}
}

func TestAdminLogin(t *testing.T) {
	app, h := newTestApp(t)

	rec := doJSON(t, h, http.MethodPost, "/api/admin/login", "", map[string]string{
		"username": "admin", "password": testAdminPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeResponse(t, rec)
	if body["message"] != "Login successful" {
		t.Errorf("unexpected message: %v", body["message"])
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("expected a token in the response")
	}
	claims, err := app.Tokens.Verify(token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Kind != auth.AccountKindAdmin {
		t.Errorf("expected admin kind, got %q", claims.Kind)
	}
	user, _ := body["user"].(map[string]any)
	if user == nil || user["username"] != "admin" {
		t.Errorf("unexpected user payload: %v", body["user"])
	}

	// Wrong password and unknown username are indistinguishable.
	for _, creds := range []map[string]string{
		{"username": "admin", "password": "wrong"},
		{"username": "ghost", "password": testAdminPassword},
	} {
		rec := doJSON(t, h, http.MethodPost, "/api/admin/login", "", creds)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 for %v, got %d", creds, rec.Code)
		}
		if body := decodeResponse(t, rec); body["error"] != "Invalid credentials" {
			t.Errorf("unexpected error: %v", body["error"])
		}
	}

	// Missing fields fail validation before any lookup.
	rec = doJSON(t, h, http.MethodPost, "/api/admin/login", "", map[string]string{"username": "admin"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing password, got %d", rec.Code)
	}
}

func TestCustomerRegistrationAndLogin(t *testing.T) {
	app, h := newTestApp(t)

	register := map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "hunter22",
	}
	rec := doJSON(t, h, http.MethodPost, "/api/users/register", "", register)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	if body["message"] != "Registration successful" {
		t.Errorf("unexpected message: %v", body["message"])
	}
	token, _ := body["token"].(string)
	claims, err := app.Tokens.Verify(token)
	if err != nil {
		t.Fatalf("registration token does not verify: %v", err)
	}
	if claims.Kind != auth.AccountKindCustomer || claims.Email != "alice@example.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	user, _ := body["user"].(map[string]any)
	if user == nil || user["email"] != "alice@example.com" {
		t.Errorf("unexpected user payload: %v", body["user"])
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("password hash must never appear in a response")
	}

	// Same email again is a conflict.
	rec = doJSON(t, h, http.MethodPost, "/api/users/register", "", register)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", rec.Code)
	}

	// Malformed email fails validation.
	rec = doJSON(t, h, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "Bob", "email": "not-an-email", "password": "pw",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad email, got %d", rec.Code)
	}

	// Login with the registered credentials.
	rec = doJSON(t, h, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "alice@example.com", "password": "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", rec.Code)
	}
	if body := decodeResponse(t, rec); body["error"] != "Invalid credentials" {
		t.Errorf("unexpected error: %v", body["error"])
	}
}

func TestPluginEndpoints(t *testing.T) {
	app, h := newTestApp(t)
	token := adminToken(t, app)

	// Listing is public and empty lists serialize as [].
	rec := doJSON(t, h, http.MethodGet, "/api/plugins", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("expected empty array body, got %q", got)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/plugins", token, map[string]any{
		"name": "Widget", "price": 19.99, "description": "A widget",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	if body["message"] != "Plugin added successfully" {
		t.Errorf("unexpected message: %v", body["message"])
	}
	plugin, _ := body["plugin"].(map[string]any)
	if plugin == nil || plugin["name"] != "Widget" {
		t.Fatalf("unexpected plugin payload: %v", body["plugin"])
	}

	// Invalid input maps to 400.
	rec = doJSON(t, h, http.MethodPost, "/api/plugins", token, map[string]any{
		"name": "", "price": 19.99, "description": "x",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid plugin, got %d", rec.Code)
	}

	// Delete removes it from the public listing.
	rec = doJSON(t, h, http.MethodDelete, "/api/plugins/1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body = decodeResponse(t, rec)
	if body["message"] != "Plugin removed successfully" {
		t.Errorf("unexpected message: %v", body["message"])
	}

	rec = doJSON(t, h, http.MethodGet, "/api/plugins", "", nil)
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("expected empty listing after removal, got %q", got)
	}

	// Unknown id is 404, non-numeric id is 400.
	rec = doJSON(t, h, http.MethodDelete, "/api/plugins/999", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, "/api/plugins/abc", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", rec.Code)
	}
}

func TestFeedbackEndpoints(t *testing.T) {
	app, h := newTestApp(t)

	rec := doJSON(t, h, http.MethodPost, "/api/feedback", "", map[string]string{
		"message": "love the store", "email": "fan@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	if body["message"] != "Feedback submitted successfully" {
		t.Errorf("unexpected message: %v", body["message"])
	}
	if body["id"] == nil {
		t.Error("expected an id in the response")
	}

	// Email is optional; blank means anonymous.
	rec = doJSON(t, h, http.MethodPost, "/api/feedback", "", map[string]string{
		"message": "anonymous praise",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/feedback", "", map[string]string{"message": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank message, got %d", rec.Code)
	}

	// Listing is guarded and newest-first; anonymous entries carry null email.
	rec = doJSON(t, h, http.MethodGet, "/api/feedback", adminToken(t, app), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode feedback list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 feedback entries, got %d", len(list))
	}
	if list[0]["message"] != "anonymous praise" {
		t.Errorf("expected newest first, got %v", list[0]["message"])
	}
	if list[0]["user_email"] != nil {
		t.Errorf("expected null user_email for anonymous entry, got %v", list[0]["user_email"])
	}
	if list[1]["user_email"] != "fan@example.com" {
		t.Errorf("expected stored email, got %v", list[1]["user_email"])
	}
}

func TestOrderEndpoints(t *testing.T) {
	app, h := newTestApp(t)
	token := adminToken(t, app)

	// Catalog entry to order against.
	rec := doJSON(t, h, http.MethodPost, "/api/plugins", token, map[string]any{
		"name": "Widget", "price": 19.99, "description": "w",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("failed to create plugin: %d", rec.Code)
	}
	plugin := decodeResponse(t, rec)["plugin"].(map[string]any)
	pluginID := int64(plugin["id"].(float64))

	rec = doJSON(t, h, http.MethodPost, "/api/orders", "", map[string]any{
		"plugin_id": pluginID, "customer_email": "buyer@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	if body["message"] != "Order created successfully" {
		t.Errorf("unexpected message: %v", body["message"])
	}
	order := body["order"].(map[string]any)
	if order["status"] != "pending" {
		t.Errorf("new orders must start pending, got %v", order["status"])
	}
	if order["customer_name"] != "Anonymous" {
		t.Errorf("expected Anonymous default name, got %v", order["customer_name"])
	}

	// Missing email fails validation.
	rec = doJSON(t, h, http.MethodPost, "/api/orders", "", map[string]any{"plugin_id": pluginID})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing email, got %d", rec.Code)
	}

	// Status transition through the guarded endpoint.
	rec = doJSON(t, h, http.MethodPatch, "/api/orders/1", token, map[string]string{"status": "completed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body = decodeResponse(t, rec)
	if body["order"].(map[string]any)["status"] != "completed" {
		t.Errorf("expected completed status, got %v", body["order"])
	}

	rec = doJSON(t, h, http.MethodPatch, "/api/orders/1", token, map[string]string{"status": "shipped"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPatch, "/api/orders/999", token, map[string]string{"status": "completed"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown order, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPatch, "/api/orders/abc", token, map[string]string{"status": "completed"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", rec.Code)
	}

	// The guarded listing joins the plugin's name and price.
	rec = doJSON(t, h, http.MethodGet, "/api/orders", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var lines []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &lines); err != nil {
		t.Fatalf("failed to decode order list: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 order, got %d", len(lines))
	}
	if lines[0]["plugin_name"] != "Widget" {
		t.Errorf("expected joined plugin name, got %v", lines[0]["plugin_name"])
	}
	if lines[0]["price"] != 19.99 {
		t.Errorf("expected joined plugin price, got %v", lines[0]["price"])
	}
}

func TestAdminAccountCreation(t *testing.T) {
	app, h := newTestApp(t)

	// A customer token passes the guard but not the role check.
	rec := doJSON(t, h, http.MethodPost, "/api/admin/accounts", customerToken(t, app), map[string]string{
		"username": "second", "password": "pw",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer token, got %d", rec.Code)
	}
	if body := decodeResponse(t, rec); body["error"] != "Admin access required" {
		t.Errorf("unexpected error: %v", body["error"])
	}

	token := adminToken(t, app)
	rec = doJSON(t, h, http.MethodPost, "/api/admin/accounts", token, map[string]string{
		"username": "second", "password": "second-password",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	if body["message"] != "Admin account created successfully" {
		t.Errorf("unexpected message: %v", body["message"])
	}

	// Existing accounts are never overwritten.
	rec = doJSON(t, h, http.MethodPost, "/api/admin/accounts", token, map[string]string{
		"username": "second", "password": "other-password",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate username, got %d", rec.Code)
	}

	// The new account can log in.
	rec = doJSON(t, h, http.MethodPost, "/api/admin/login", "", map[string]string{
		"username": "second", "password": "second-password",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for new admin login, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStats(t *testing.T) {
	app, h := newTestApp(t)
	token := adminToken(t, app)

	doJSON(t, h, http.MethodPost, "/api/plugins", token, map[string]any{
		"name": "Widget", "price": 1.0, "description": "w",
	})
	doJSON(t, h, http.MethodPost, "/api/orders", "", map[string]any{"customer_email": "a@b.com"})
	doJSON(t, h, http.MethodPost, "/api/feedback", "", map[string]string{"message": "hi"})

	rec := doJSON(t, h, http.MethodGet, "/api/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeResponse(t, rec)
	if body["plugins"] != float64(1) || body["orders"] != float64(1) || body["feedback"] != float64(1) {
		t.Errorf("unexpected counts: %v", body)
	}
	// The seeded admin is the only account.
	if body["accounts"] != float64(1) {
		t.Errorf("expected 1 account, got %v", body["accounts"])
	}
}

func TestNotFound(t *testing.T) {
	_, h := newTestApp(t)

	for _, path := range []string{"/api/nonsense", "/nope", "/api/"} {
		rec := doJSON(t, h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
		if body := decodeResponse(t, rec); body["error"] != "Not found" {
			t.Errorf("%s: unexpected body %v", path, body["error"])
		}
	}
}

func TestResponseHeaders(t *testing.T) {
	_, h := newTestApp(t)

	rec := doJSON(t, h, http.MethodGet, "/api/health", "", nil)
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected an X-Request-ID header")
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("expected application/json, got %q", got)
	}
}

func TestRateLimiting(t *testing.T) {
	app, h := newTestApp(t)
	app.Limiter = middleware.NewRateLimiter(rate.Limit(1), 2)
	h = app.Handler()

	payload := map[string]string{"message": "hello"}
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := doJSON(t, h, http.MethodPost, "/api/feedback", "", payload)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated {
		t.Errorf("expected the burst to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst exhaustion, got %v", codes)
	}

	// Reads are never limited.
	rec := doJSON(t, h, http.MethodGet, "/api/plugins", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected unlimited reads, got %d", rec.Code)
	}
}

func TestInvalidJSONBodies(t *testing.T) {
	app, h := newTestApp(t)
	token := adminToken(t, app)

	paths := []struct {
		method string
		path   string
		token  string
	}{
		{http.MethodPost, "/api/admin/login", ""},
		{http.MethodPost, "/api/users/register", ""},
		{http.MethodPost, "/api/users/login", ""},
		{http.MethodPost, "/api/plugins", token},
		{http.MethodPost, "/api/feedback", ""},
		{http.MethodPost, "/api/orders", ""},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, bytes.NewBufferString("{not json"))
		if p.token != "" {
			req.Header.Set("Authorization", "Bearer "+p.token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: expected 400 for malformed JSON, got %d", p.method, p.path, rec.Code)
		}
		if body := decodeResponse(t, rec); body["error"] != "Invalid JSON" {
			t.Errorf("%s %s: unexpected error %v", p.method, p.path, body["error"])
		}
	}
}
