package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/notify"
	"github.com/erazemk/knjiznica/internal/store"
)

const testJWTSecret = "test-secret"

type testServer struct {
	*httptest.Server
	DB         *sql.DB
	AdminToken string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)

	dispatcher := notify.NewDispatcher(notify.Nop{}, time.Second)
	svc := lending.NewService(database, dispatcher)
	server := httptest.NewServer(LoggingMiddleware(NewRouter(database, testJWTSecret, svc)))
	t.Cleanup(func() {
		server.Close()
		dispatcher.Wait()
	})

	// Create admin user.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if _, err := store.CreateUser(ctx, database, "admin@example.com", "", "", string(hash), model.RoleAdmin); err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	ts := &testServer{Server: server, DB: database}
	ts.AdminToken = ts.login(t, "admin@example.com", "password")
	return ts
}

func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := ts.do(t, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": password})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}
	return token
}

// registerUser registers a member through the API and returns their token.
func (ts *testServer) registerUser(t *testing.T, email string) string {
	t.Helper()
	resp := ts.do(t, "POST", "/api/users", "", map[string]string{
		"email":    email,
		"password": "long-enough",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", email, resp.StatusCode)
	}
	return ts.login(t, email, "long-enough")
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	req, err := authRequest(method, ts.URL+path, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (ts *testServer) createBook(t *testing.T, title string, inventory int) model.Book {
	t.Helper()
	resp := ts.do(t, "POST", "/api/books", ts.AdminToken, map[string]any{
		"title":     title,
		"author":    "Author",
		"cover":     "SOFT",
		"inventory": inventory,
		"daily_fee": "0.50",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("create book: expected 201, got %d: %s", resp.StatusCode, body)
	}
	var book model.Book
	json.NewDecoder(resp.Body).Decode(&book)
	return book
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func decodeMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return m
}

func date(days int) string {
	return model.DateOf(time.Now()).AddDays(days).String()
}

func TestLoginEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "wrong"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}

	resp = ts.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "not-an-email", "password": "x"})
	m := decodeMap(t, resp)
	if resp.StatusCode != http.StatusBadRequest || m["field"] != "email" {
		t.Errorf("expected 400 on email, got %d %v", resp.StatusCode, m)
	}
}

func TestRegisterAndProfile(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.registerUser(t, "Reader@Example.com")

	resp := ts.do(t, "GET", "/api/users/me", token, nil)
	me := decodeMap(t, resp)
	if me["email"] != "reader@example.com" || me["role"] != model.RoleUser {
		t.Errorf("unexpected profile %v", me)
	}
	if _, ok := me["password_hash"]; ok {
		t.Error("password hash must not be serialized")
	}

	resp = ts.do(t, "PUT", "/api/users/me", token, map[string]string{"first_name": "Ana", "last_name": "Novak"})
	me = decodeMap(t, resp)
	if me["first_name"] != "Ana" {
		t.Errorf("profile not updated: %v", me)
	}

	// Duplicate email.
	resp = ts.do(t, "POST", "/api/users", "", map[string]string{"email": "reader@example.com", "password": "long-enough"})
	m := decodeMap(t, resp)
	if resp.StatusCode != http.StatusBadRequest || m["field"] != "email" {
		t.Errorf("expected 400 on duplicate email, got %d %v", resp.StatusCode, m)
	}

	// Short password.
	resp = ts.do(t, "POST", "/api/users", "", map[string]string{"email": "x@example.com", "password": "short"})
	m = decodeMap(t, resp)
	if resp.StatusCode != http.StatusBadRequest || m["field"] != "password" {
		t.Errorf("expected 400 on password, got %d %v", resp.StatusCode, m)
	}
}

func TestBooksPermissions(t *testing.T) {
	ts := setupTestServer(t)
	userToken := ts.registerUser(t, "reader@example.com")
	book := ts.createBook(t, "Dune", 2)

	newBook := map[string]any{"title": "X", "author": "Y", "cover": "HARD", "daily_fee": "1"}

	resp := ts.do(t, "POST", "/api/books", "", newBook)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous create: expected 401, got %d", resp.StatusCode)
	}

	resp = ts.do(t, "POST", "/api/books", userToken, newBook)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("member create: expected 403, got %d", resp.StatusCode)
	}

	resp = ts.do(t, "DELETE", fmt.Sprintf("/api/books/%d", book.ID), userToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("member delete: expected 403, got %d", resp.StatusCode)
	}

	// Reads are public.
	resp = ts.do(t, "GET", "/api/books", "", nil)
	var books []map[string]any
	json.NewDecoder(resp.Body).Decode(&books)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(books) != 1 {
		t.Fatalf("expected 1 public book, got %d %v", resp.StatusCode, books)
	}
	if books[0]["daily_fee_display"] != "0.50$" || books[0]["cover_display"] != "Soft" {
		t.Errorf("missing display fields: %v", books[0])
	}

	resp = ts.do(t, "GET", fmt.Sprintf("/api/books/%d", book.ID), "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("public get: expected 200, got %d", resp.StatusCode)
	}
}

func TestBookValidation(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing title", map[string]any{"author": "A", "cover": "HARD", "daily_fee": "1"}, "title"},
		{"bad cover", map[string]any{"title": "T", "author": "A", "cover": "SPIRAL", "daily_fee": "1"}, "cover"},
		{"negative inventory", map[string]any{"title": "T", "author": "A", "cover": "HARD", "inventory": -1, "daily_fee": "1"}, "inventory"},
		{"fee too large", map[string]any{"title": "T", "author": "A", "cover": "HARD", "daily_fee": "1000"}, "daily_fee"},
		{"fee precision", map[string]any{"title": "T", "author": "A", "cover": "HARD", "daily_fee": "1.005"}, "daily_fee"},
		{"negative fee", map[string]any{"title": "T", "author": "A", "cover": "HARD", "daily_fee": "-1"}, "daily_fee"},
		{"title too long", map[string]any{"title": strings.Repeat("x", model.MaxTextLength+1), "author": "A", "cover": "HARD", "daily_fee": "1"}, "title"},
		{"author too long", map[string]any{"title": "T", "author": strings.Repeat("y", model.MaxTextLength+1), "cover": "HARD", "daily_fee": "1"}, "author"},
	}

	for _, tt := range tests {
		resp := ts.do(t, "POST", "/api/books", ts.AdminToken, tt.body)
		m := decodeMap(t, resp)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.name, resp.StatusCode)
			continue
		}
		if m["field"] != tt.field {
			t.Errorf("%s: expected field %q, got %v", tt.name, tt.field, m)
		}
	}
}

func TestUpdateBookDoesNotChangeInventory(t *testing.T) {
	ts := setupTestServer(t)
	book := ts.createBook(t, "Dune", 3)

	resp := ts.do(t, "PUT", fmt.Sprintf("/api/books/%d", book.ID), ts.AdminToken, map[string]any{
		"title": "Dune Messiah", "author": "Herbert", "cover": "HARD", "daily_fee": "2.00", "inventory": 99,
	})
	m := decodeMap(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", resp.StatusCode, m)
	}
	if m["title"] != "Dune Messiah" || m["inventory"] != float64(3) {
		t.Errorf("unexpected book after update: %v", m)
	}

	resp = ts.do(t, "PUT", "/api/books/9999", ts.AdminToken, map[string]any{
		"title": "X", "author": "Y", "cover": "HARD", "daily_fee": "1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing book, got %d", resp.StatusCode)
	}
}

func TestBorrowingFlow(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.registerUser(t, "alice@example.com")
	bob := ts.registerUser(t, "bob@example.com")
	book := ts.createBook(t, "Dune", 2)

	resp := ts.do(t, "POST", "/api/borrowings", alice, map[string]any{
		"book":                 book.ID,
		"expected_return_date": date(7),
	})
	created := decodeMap(t, resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", resp.StatusCode, created)
	}
	if created["borrow_date"] != date(0) || created["actual_return_date"] != nil || created["is_returned"] != false {
		t.Errorf("unexpected borrowing %v", created)
	}
	id := int64(created["id"].(float64))

	resp = ts.do(t, "GET", fmt.Sprintf("/api/books/%d", book.ID), "", nil)
	if m := decodeMap(t, resp); m["inventory"] != float64(1) {
		t.Errorf("expected inventory 1 after borrowing, got %v", m["inventory"])
	}

	// Bob cannot see or return Alice's borrowing.
	resp = ts.do(t, "GET", fmt.Sprintf("/api/borrowings/%d", id), bob, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign get: expected 404, got %d", resp.StatusCode)
	}
	resp = ts.do(t, "POST", fmt.Sprintf("/api/borrowings/%d/return", id), bob, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign return: expected 404, got %d", resp.StatusCode)
	}

	resp = ts.do(t, "GET", "/api/borrowings", bob, nil)
	var list []model.Borrowing
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list) != 0 {
		t.Errorf("bob should see no borrowings, got %d", len(list))
	}

	resp = ts.do(t, "GET", "/api/borrowings?is_active=true", ts.AdminToken, nil)
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list) != 1 {
		t.Errorf("admin should see 1 active borrowing, got %d", len(list))
	}

	resp = ts.do(t, "POST", fmt.Sprintf("/api/borrowings/%d/return", id), alice, nil)
	returned := decodeMap(t, resp)
	if resp.StatusCode != http.StatusOK || returned["actual_return_date"] != date(0) || returned["is_returned"] != true {
		t.Fatalf("return: expected 200 with today's date, got %d %v", resp.StatusCode, returned)
	}

	resp = ts.do(t, "POST", fmt.Sprintf("/api/borrowings/%d/return", id), alice, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("second return: expected 400, got %d", resp.StatusCode)
	}

	resp = ts.do(t, "GET", fmt.Sprintf("/api/books/%d", book.ID), "", nil)
	if m := decodeMap(t, resp); m["inventory"] != float64(2) {
		t.Errorf("expected inventory 2 after return, got %v", m["inventory"])
	}

	resp = ts.do(t, "GET", "/api/borrowings?is_active=false", alice, nil)
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list) != 1 || !list[0].IsReturned() {
		t.Errorf("expected one returned borrowing, got %+v", list)
	}
}

func TestBorrowingValidation(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.registerUser(t, "alice@example.com")
	empty := ts.createBook(t, "Empty", 0)
	stocked := ts.createBook(t, "Stocked", 1)

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"today", map[string]any{"book": stocked.ID, "expected_return_date": date(0)}, "expected_return_date"},
		{"past", map[string]any{"book": stocked.ID, "expected_return_date": date(-3)}, "expected_return_date"},
		{"bad format", map[string]any{"book": stocked.ID, "expected_return_date": "next week"}, "expected_return_date"},
		{"missing book", map[string]any{"expected_return_date": date(3)}, "book"},
		{"unknown book", map[string]any{"book": 9999, "expected_return_date": date(3)}, "book"},
		{"out of stock", map[string]any{"book": empty.ID, "expected_return_date": date(3)}, "book"},
	}

	for _, tt := range tests {
		resp := ts.do(t, "POST", "/api/borrowings", token, tt.body)
		m := decodeMap(t, resp)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.name, resp.StatusCode)
			continue
		}
		if m["field"] != tt.field {
			t.Errorf("%s: expected field %q, got %v", tt.name, tt.field, m)
		}
	}

	resp := ts.do(t, "POST", "/api/borrowings", token, map[string]any{"book": empty.ID, "expected_return_date": date(3)})
	if m := decodeMap(t, resp); m["error"] != "empty is not available for borrowing." {
		t.Errorf("unexpected out of stock message: %v", m["error"])
	}

	resp = ts.do(t, "GET", "/api/borrowings?is_active=maybe", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad is_active: expected 400, got %d", resp.StatusCode)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	ts := setupTestServer(t)

	paths := []struct{ method, path string }{
		{"GET", "/api/borrowings"},
		{"POST", "/api/borrowings"},
		{"GET", "/api/borrowings/1"},
		{"POST", "/api/borrowings/1/return"},
		{"GET", "/api/users/me"},
		{"GET", "/api/users"},
	}

	for _, p := range paths {
		resp := ts.do(t, p.method, p.path, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", p.method, p.path, resp.StatusCode)
		}
	}

	resp := ts.do(t, "GET", "/api/borrowings", "garbage", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.registerUser(t, "alice@example.com")

	resp := ts.do(t, "POST", "/api/auth/logout", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}

	resp = ts.do(t, "GET", "/api/users/me", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("revoked token: expected 401, got %d", resp.StatusCode)
	}
}

func TestChangePassword(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.registerUser(t, "alice@example.com")

	resp := ts.do(t, "PUT", "/api/auth/password", token, map[string]string{
		"current_password": "wrong-password", "new_password": "another-password",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong current password: expected 401, got %d", resp.StatusCode)
	}

	resp = ts.do(t, "PUT", "/api/auth/password", token, map[string]string{
		"current_password": "long-enough", "new_password": "another-password",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change password: expected 200, got %d", resp.StatusCode)
	}

	ts.login(t, "alice@example.com", "another-password")
}

func TestAdminUserManagement(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.registerUser(t, "alice@example.com")
	alice, _ := store.GetUserByEmail(context.Background(), ts.DB, "alice@example.com")

	resp := ts.do(t, "GET", "/api/users", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("member list users: expected 403, got %d", resp.StatusCode)
	}

	resp = ts.do(t, "PUT", fmt.Sprintf("/api/users/%d/role", alice.ID), ts.AdminToken, map[string]string{"role": "librarian"})
	if m := decodeMap(t, resp); resp.StatusCode != http.StatusBadRequest || m["field"] != "role" {
		t.Errorf("unknown role: expected 400 on field role, got %d %v", resp.StatusCode, m)
	}

	resp = ts.do(t, "PUT", fmt.Sprintf("/api/users/%d/role", alice.ID), ts.AdminToken, map[string]string{"role": "admin"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("promote: expected 200, got %d", resp.StatusCode)
	}

	// The promotion applies to the existing token.
	resp = ts.do(t, "GET", "/api/users", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("promoted list users: expected 200, got %d", resp.StatusCode)
	}

	resp = ts.do(t, "DELETE", fmt.Sprintf("/api/users/%d", alice.ID), ts.AdminToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}

	resp = ts.do(t, "GET", "/api/users/me", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("deleted user: expected 401, got %d", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "GET", "/api/books", "", nil)
	resp.Body.Close()
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected a generated request id")
	}

	req, _ := authRequest("GET", ts.URL+"/api/books", "", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected echoed request id, got %q", got)
	}
}
