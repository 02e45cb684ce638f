package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	app "github.com/Gogul11/oriyam/internal/app"
	"github.com/Gogul11/oriyam/internal/app/auth"
	"github.com/Gogul11/oriyam/internal/app/services"
	"github.com/Gogul11/oriyam/internal/app/services/leases"
	"github.com/Gogul11/oriyam/internal/app/services/users"
	"github.com/Gogul11/oriyam/internal/app/storage"
)

type testEnv struct {
	server *httptest.Server
	issuer *auth.TokenIssuer
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	application := app.New(app.Options{Issuer: issuer})
	server := httptest.NewServer(NewHandler(application))
	t.Cleanup(server.Close)
	return &testEnv{server: server, issuer: issuer}
}

func (e *testEnv) do(t *testing.T, method, path, token string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			// Array responses land under "items" for uniform access in tests.
			var items []interface{}
			if err := json.Unmarshal(data, &items); err != nil {
				t.Fatalf("decode response %q: %v", data, err)
			}
			decoded = map[string]interface{}{"items": items}
		}
	}
	return resp, decoded
}

func (e *testEnv) registerAndLogin(t *testing.T, username, mobile string) string {
	t.Helper()
	resp, _ := e.do(t, http.MethodPost, "/auth/register", "", map[string]interface{}{
		"username": username,
		"email":    username + "@example.com",
		"mobile":   mobile,
		"password": "password123",
		"age":      30,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}

	resp, body := e.do(t, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"mobile":   mobile,
		"password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login %s: no token in response", username)
	}
	return token
}

func TestHealth(t *testing.T) {
	env := newEnv(t)
	resp, body := env.do(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/profile", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodGet, "/profile", "garbage-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
}

func TestRegisterValidationError(t *testing.T) {
	env := newEnv(t)

	resp, body := env.do(t, http.MethodPost, "/auth/register", "", map[string]interface{}{
		"username": "x",
		"email":    "not-an-email",
		"mobile":   "9876543210",
		"password": "password123",
		"age":      30,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["error"] == "" {
		t.Fatal("expected error message")
	}
}

func TestRegisterDuplicateConflict(t *testing.T) {
	env := newEnv(t)
	env.registerAndLogin(t, "ravi", "9876543210")

	resp, _ := env.do(t, http.MethodPost, "/auth/register", "", map[string]interface{}{
		"username": "ravi",
		"email":    "other@example.com",
		"mobile":   "9876543211",
		"password": "password123",
		"age":      30,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	env := newEnv(t)
	token := env.registerAndLogin(t, "ravi", "9876543210")

	resp, body := env.do(t, http.MethodGet, "/profile", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get profile: status %d", resp.StatusCode)
	}
	if body["username"] != "ravi" {
		t.Fatalf("unexpected profile %v", body)
	}
	if _, ok := body["password_hash"]; ok {
		t.Fatal("profile must not expose the password hash")
	}

	resp, body = env.do(t, http.MethodPut, "/profile", token, map[string]interface{}{
		"username": "ravi2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update profile: status %d", resp.StatusCode)
	}
	if body["username"] != "ravi2" {
		t.Fatalf("unexpected updated profile %v", body)
	}
}

func TestLandListingFlow(t *testing.T) {
	env := newEnv(t)
	sellerToken := env.registerAndLogin(t, "seller", "9000000001")
	buyerToken := env.registerAndLogin(t, "buyer", "9000000002")

	resp, created := env.do(t, http.MethodPost, "/lands", sellerToken, map[string]interface{}{
		"title":        "river field",
		"area":         2.5,
		"area_unit":    "acre",
		"monthly_rent": 5000,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add land: status %d body %v", resp.StatusCode, created)
	}
	landID, _ := created["id"].(string)
	if landID == "" {
		t.Fatal("expected land id")
	}

	// The seller's browse view excludes their own land.
	resp, body := env.do(t, http.MethodGet, "/lands", sellerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("browse: status %d", resp.StatusCode)
	}
	if items := body["items"].([]interface{}); len(items) != 0 {
		t.Fatalf("seller must not see own land, got %d items", len(items))
	}

	// The buyer sees it.
	resp, body = env.do(t, http.MethodGet, "/lands", buyerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("browse: status %d", resp.StatusCode)
	}
	if items := body["items"].([]interface{}); len(items) != 1 {
		t.Fatalf("expected one land for the buyer, got %d", len(items))
	}

	// Only the owner can update.
	resp, _ = env.do(t, http.MethodPut, "/lands/"+landID, buyerToken, map[string]interface{}{
		"title": "stolen",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner update, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodGet, "/lands/no-such-land", buyerToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing land, got %d", resp.StatusCode)
	}
}

func TestMultipartLandUpload(t *testing.T) {
	env := newEnv(t)
	token := env.registerAndLogin(t, "seller", "9000000001")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	landJSON := `{"title":"photo field","area":1.5,"monthly_rent":4000}`
	if err := form.WriteField("land", landJSON); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := form.CreateFormFile("photos", "north.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("jpeg-bytes"))
	form.Close()

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/lands", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
	}

	var created struct {
		PhotoURLs []string `json:"photo_urls"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(created.PhotoURLs) != 1 {
		t.Fatalf("expected one photo url, got %v", created.PhotoURLs)
	}
}

func TestLeaseLifecycleOverHTTP(t *testing.T) {
	env := newEnv(t)
	sellerToken := env.registerAndLogin(t, "seller", "9000000001")
	buyerToken := env.registerAndLogin(t, "buyer", "9000000002")

	_, created := env.do(t, http.MethodPost, "/lands", sellerToken, map[string]interface{}{
		"title":        "river field",
		"area":         2.5,
		"monthly_rent": 5000,
	})
	landID := created["id"].(string)

	// The seller cannot express interest in their own land.
	resp, _ := env.do(t, http.MethodPost, "/lands/"+landID+"/interests", sellerToken, map[string]interface{}{
		"monthly_budget":     5000,
		"rent_period_months": 2,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for self-interest, got %d", resp.StatusCode)
	}

	resp, interestBody := env.do(t, http.MethodPost, "/lands/"+landID+"/interests", buyerToken, map[string]interface{}{
		"monthly_budget":     5000,
		"rent_period_months": 2,
		"reason":             "paddy season",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("express interest: status %d body %v", resp.StatusCode, interestBody)
	}
	buyerID := interestBody["user_id"].(string)

	// Interest list is owner-only.
	resp, _ = env.do(t, http.MethodGet, "/lands/"+landID+"/interests", buyerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner interest list, got %d", resp.StatusCode)
	}
	resp, body := env.do(t, http.MethodGet, "/lands/"+landID+"/interests", sellerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("interest list: status %d", resp.StatusCode)
	}
	if items := body["items"].([]interface{}); len(items) != 1 {
		t.Fatalf("expected one interest, got %d", len(items))
	}

	// Only the seller can initiate.
	leaseTerms := map[string]interface{}{
		"land_id":      landID,
		"buyer_id":     buyerID,
		"deposit":      10000,
		"monthly_due":  5000,
		"total_months": 2,
	}
	resp, _ = env.do(t, http.MethodPost, "/leases", buyerToken, leaseTerms)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer-initiated lease, got %d", resp.StatusCode)
	}

	resp, leaseBody := env.do(t, http.MethodPost, "/leases", sellerToken, leaseTerms)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("initiate lease: status %d body %v", resp.StatusCode, leaseBody)
	}
	leaseID := leaseBody["id"].(string)
	if leaseBody["status"] != "initiated" {
		t.Fatalf("expected initiated status, got %v", leaseBody["status"])
	}

	// Only the buyer can pay the deposit, and the amount must match.
	resp, _ = env.do(t, http.MethodPost, "/leases/"+leaseID+"/deposit", sellerToken, map[string]interface{}{"amount": 10000})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for seller deposit, got %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/leases/"+leaseID+"/deposit", buyerToken, map[string]interface{}{"amount": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong amount, got %d", resp.StatusCode)
	}
	resp, body = env.do(t, http.MethodPost, "/leases/"+leaseID+"/deposit", buyerToken, map[string]interface{}{"amount": 10000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pay deposit: status %d body %v", resp.StatusCode, body)
	}
	if body["status"] != "active" {
		t.Fatalf("expected active status, got %v", body["status"])
	}

	// The land left the market.
	resp, body = env.do(t, http.MethodGet, "/lands/"+landID, buyerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get land: status %d", resp.StatusCode)
	}
	if body["available"] != false {
		t.Fatal("expected land to be unavailable while leased")
	}

	// Months settle in order; out-of-order is rejected.
	resp, _ = env.do(t, http.MethodPost, "/leases/"+leaseID+"/payments", buyerToken, map[string]interface{}{"month": 2, "amount": 5000})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for out-of-order month, got %d", resp.StatusCode)
	}
	for month := 1; month <= 2; month++ {
		resp, body = env.do(t, http.MethodPost, "/leases/"+leaseID+"/payments", buyerToken, map[string]interface{}{"month": month, "amount": 5000})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("pay month %d: status %d body %v", month, resp.StatusCode, body)
		}
	}
	if body["status"] != "completed" {
		t.Fatalf("expected completed status, got %v", body["status"])
	}

	// Completion releases the land.
	resp, body = env.do(t, http.MethodGet, "/lands/"+landID, buyerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get land: status %d", resp.StatusCode)
	}
	if body["available"] != true {
		t.Fatal("expected land to return to the market after completion")
	}

	// Role listings.
	resp, body = env.do(t, http.MethodGet, "/leases?role=buyer", buyerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list buyer leases: status %d", resp.StatusCode)
	}
	if items := body["items"].([]interface{}); len(items) != 1 {
		t.Fatalf("expected one buyer lease, got %d", len(items))
	}
	resp, _ = env.do(t, http.MethodGet, "/leases", buyerToken, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without role, got %d", resp.StatusCode)
	}
}

func TestAdminGate(t *testing.T) {
	env := newEnv(t)
	userToken := env.registerAndLogin(t, "ravi", "9876543210")

	resp, _ := env.do(t, http.MethodGet, "/admin/users", userToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for regular user, got %d", resp.StatusCode)
	}

	adminToken, err := env.issuer.Issue("admin-1", "admin")
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}
	resp, body := env.do(t, http.MethodGet, "/admin/users", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", resp.StatusCode)
	}
	if items := body["items"].([]interface{}); len(items) != 1 {
		t.Fatalf("expected one registered user, got %d", len(items))
	}
}

type captureSender struct {
	body string
}

func (c *captureSender) Send(_, _, body string) error {
	c.body = body
	return nil
}

func TestPasswordResetRoutes(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	sender := &captureSender{}
	application := app.New(app.Options{Issuer: issuer, Mailer: sender})
	server := httptest.NewServer(NewHandler(application))
	t.Cleanup(server.Close)
	env := &testEnv{server: server, issuer: issuer}

	env.registerAndLogin(t, "ravi", "9876543210")

	resp, _ := env.do(t, http.MethodPost, "/auth/forgot-password/request-otp", "", map[string]interface{}{
		"email": "ravi@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("request otp: status %d", resp.StatusCode)
	}
	if sender.body == "" {
		t.Fatal("expected otp mail to be sent")
	}
	code := ""
	for _, field := range bytes.Fields([]byte(sender.body)) {
		trimmed := bytes.Trim(field, ".")
		if len(trimmed) == 6 && len(bytes.Trim(trimmed, "0123456789")) == 0 {
			code = string(trimmed)
		}
	}
	if code == "" {
		t.Fatalf("no code in mail body %q", sender.body)
	}

	// Reset without verification is rejected.
	resp, _ = env.do(t, http.MethodPost, "/auth/forgot-password/reset", "", map[string]interface{}{
		"email":    "ravi@example.com",
		"password": "newpassword1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 before verification, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/auth/forgot-password/verify-otp", "", map[string]interface{}{
		"email": "ravi@example.com",
		"otp":   code,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify otp: status %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/auth/forgot-password/reset", "", map[string]interface{}{
		"email":    "ravi@example.com",
		"password": "newpassword1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset: status %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"mobile":   "9876543210",
		"password": "newpassword1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password: status %d", resp.StatusCode)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	env := newEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"mobile":   "9876543210",
		"password": "password123",
		"bogus":    true,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", storage.ErrNotFound, http.StatusNotFound},
		{"conflict", storage.ErrConflict, http.StatusConflict},
		{"validation", services.Invalidf("title is required"), http.StatusBadRequest},
		{"amount mismatch", leases.ErrAmountMismatch, http.StatusBadRequest},
		{"wrong otp", users.ErrInvalidOTP, http.StatusBadRequest},
		{"not party", leases.ErrNotParty, http.StatusForbidden},
		{"upstream failure", errors.New("pq: connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tc.err)
			if rec.Code != tc.want {
				t.Fatalf("got status %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestUpstreamErrorTextNotLeaked(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, errors.New("pq: password authentication failed for user oriyam"))

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Fatalf("internal error text must not reach the client, got %q", body["error"])
	}
}
