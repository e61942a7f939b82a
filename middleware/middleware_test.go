// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/runecheck/models"
)

// captureLogs routes the default slog logger into a buffer for one test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

// completedRecord returns the "request completed" log line.
func completedRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("Failed to decode log line %q: %v", line, err)
		}
		if rec["msg"] == "request completed" {
			return rec
		}
	}
	t.Fatalf("Expected a 'request completed' log line, got: %s", buf.String())
	return nil
}

func TestWithLoggingRecordsStatus(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{
			name: "body only defaults to 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("OK"))
			},
			status: http.StatusOK,
		},
		{
			name: "vote created",
			handler: func(w http.ResponseWriter, r *http.Request) {
				JSONResponse(w, http.StatusCreated, models.SuccessResponse{Success: true})
			},
			status: http.StatusCreated,
		},
		{
			name: "closed question",
			handler: func(w http.ResponseWriter, r *http.Request) {
				ErrorResponse(w, http.StatusConflict, "question is not open for voting")
			},
			status: http.StatusConflict,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				ErrorResponse(w, http.StatusTooManyRequests, "Too many requests. Please wait.")
			},
			status: http.StatusTooManyRequests,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureLogs(t)

			req := httptest.NewRequest("POST", "/vote", nil)
			w := httptest.NewRecorder()
			WithLogging(tc.handler)(w, req)

			if w.Code != tc.status {
				t.Errorf("Expected response status %d, got %d", tc.status, w.Code)
			}

			rec := completedRecord(t, buf)
			if got, _ := rec["status"].(float64); int(got) != tc.status {
				t.Errorf("Expected logged status %d, got %v", tc.status, rec["status"])
			}
			if rec["method"] != "POST" || rec["path"] != "/vote" {
				t.Errorf("Expected POST /vote in log, got %v %v", rec["method"], rec["path"])
			}
			if _, ok := rec["duration_ms"]; !ok {
				t.Error("Expected duration_ms in log")
			}
		})
	}
}

func TestStatusRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	rec.WriteHeader(http.StatusTeapot)
	rec.Write([]byte("short and stout"))

	if rec.status != http.StatusTeapot {
		t.Errorf("Expected recorded status 418, got %d", rec.status)
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status forwarded to the writer, got %d", w.Code)
	}
	if w.Body.String() != "short and stout" {
		t.Errorf("Expected body forwarded, got '%s'", w.Body.String())
	}
}

func TestErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(w, http.StatusConflict, "question is not open for voting")

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Error("Expected Content-Type 'application/json'")
	}

	var resp models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if resp.Error != "Conflict" {
		t.Errorf("Expected error 'Conflict', got '%s'", resp.Error)
	}
	if resp.Message != "question is not open for voting" {
		t.Errorf("Expected message preserved, got '%s'", resp.Message)
	}
}

func TestParseJSONBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/vote", strings.NewReader(`{"questionId":"q1","walletAddress":"bc1qalice","choice":"yes"}`))
	var vote models.CastVoteRequest
	if err := ParseJSONBody(req, &vote); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if vote.QuestionID != "q1" || vote.WalletAddress != "bc1qalice" || vote.Choice != "yes" {
		t.Errorf("Unexpected vote request: %+v", vote)
	}

	req = httptest.NewRequest("POST", "/vote", strings.NewReader(`{invalid`))
	if err := ParseJSONBody(req, &vote); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestCORS(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	testCases := []struct {
		name        string
		configured  string
		method      string
		origin      string
		wantOrigin  string
		wantCreds   bool
		wantStatus  int
		wantHandled bool
	}{
		{
			name:        "configured origin overrides caller",
			configured:  "https://dash.example",
			method:      "GET",
			origin:      "https://evil.example",
			wantOrigin:  "https://dash.example",
			wantCreds:   true,
			wantStatus:  http.StatusOK,
			wantHandled: true,
		},
		{
			name:        "configured origin preflight",
			configured:  "https://dash.example",
			method:      "OPTIONS",
			origin:      "https://dash.example",
			wantOrigin:  "https://dash.example",
			wantCreds:   true,
			wantStatus:  http.StatusNoContent,
			wantHandled: false,
		},
		{
			name:        "configured origin without caller origin",
			configured:  "https://dash.example",
			method:      "GET",
			wantOrigin:  "https://dash.example",
			wantCreds:   true,
			wantStatus:  http.StatusOK,
			wantHandled: true,
		},
		{
			name:        "echoes caller origin",
			method:      "GET",
			origin:      "http://localhost:3000",
			wantOrigin:  "http://localhost:3000",
			wantCreds:   true,
			wantStatus:  http.StatusOK,
			wantHandled: true,
		},
		{
			name:        "wildcard without origin",
			method:      "GET",
			wantOrigin:  "*",
			wantStatus:  http.StatusOK,
			wantHandled: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(tc.method, "/user-tokens", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			w := httptest.NewRecorder()

			CORS(tc.configured)(next).ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, w.Code)
			}
			if called != tc.wantHandled {
				t.Errorf("Expected next handler called=%v, got %v", tc.wantHandled, called)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Errorf("Expected origin '%s', got '%s'", tc.wantOrigin, got)
			}
			creds := w.Header().Get("Access-Control-Allow-Credentials") == "true"
			if creds != tc.wantCreds {
				t.Errorf("Expected credentials=%v, got %v", tc.wantCreds, creds)
			}
			vary := w.Header().Get("Vary") == "Origin"
			if vary != tc.wantCreds {
				t.Errorf("Expected Vary: Origin=%v, got %v", tc.wantCreds, vary)
			}
			if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
				t.Error("Expected DELETE in allowed methods")
			}
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	tp, err := ParseTrustedProxies(" 10.0.0.1, 192.168.0.0/16 ,, ::1 ")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(tp) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(tp))
	}
	if tp.String() != "10.0.0.1/32,192.168.0.0/16,::1/128" {
		t.Errorf("Unexpected rendering '%s'", tp.String())
	}

	trusts := map[string]bool{
		"10.0.0.1":        true,
		"10.0.0.2":        false,
		"192.168.44.7":    true,
		"::ffff:10.0.0.1": true,
		"::1":             true,
		"not-an-ip":       false,
		"203.0.113.7":     false,
		"192.169.0.1":     false,
	}
	for ip, want := range trusts {
		if got := tp.Trusts(ip); got != want {
			t.Errorf("Trusts(%q) = %v, want %v", ip, got, want)
		}
	}

	for _, bad := range []string{"10.0.0.300", "10.0.0.0/33", "proxy.internal"} {
		if _, err := ParseTrustedProxies(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}

	empty, err := ParseTrustedProxies("")
	if err != nil || len(empty) != 0 {
		t.Errorf("Expected no proxies for empty input, got %v (%v)", empty, err)
	}
}

func TestGetClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies("10.0.0.0/8")
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name       string
		trusted    TrustedProxies
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{
			name:       "untrusted peer ignores X-Forwarded-For",
			trusted:    trusted,
			headers:    map[string]string{"X-Forwarded-For": "192.0.2.99"},
			remoteAddr: "203.0.113.7:5555",
			expectedIP: "203.0.113.7",
		},
		{
			name:       "untrusted peer ignores X-Real-IP",
			trusted:    trusted,
			headers:    map[string]string{"X-Real-IP": "192.0.2.99"},
			remoteAddr: "203.0.113.7:5555",
			expectedIP: "203.0.113.7",
		},
		{
			name:       "no trusted proxies ignores headers from any peer",
			headers:    map[string]string{"X-Forwarded-For": "192.0.2.99"},
			remoteAddr: "10.1.1.1:443",
			expectedIP: "10.1.1.1",
		},
		{
			name:       "trusted proxy forwards client",
			trusted:    trusted,
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4"},
			remoteAddr: "10.1.1.1:443",
			expectedIP: "198.51.100.4",
		},
		{
			name:       "spoofed left hops are skipped",
			trusted:    trusted,
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.4"},
			remoteAddr: "10.1.1.1:443",
			expectedIP: "198.51.100.4",
		},
		{
			name:       "chained trusted proxies are peeled",
			trusted:    trusted,
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4, 10.2.2.2, 10.3.3.3"},
			remoteAddr: "10.1.1.1:443",
			expectedIP: "198.51.100.4",
		},
		{
			name:       "all hops trusted picks the leftmost",
			trusted:    trusted,
			headers:    map[string]string{"X-Forwarded-For": "10.9.9.9, 10.2.2.2"},
			remoteAddr: "10.1.1.1:443",
			expectedIP: "10.9.9.9",
		},
		{
			name:       "trusted proxy with X-Real-IP",
			trusted:    trusted,
			headers:    map[string]string{"X-Real-IP": "198.51.100.8"},
			remoteAddr: "10.1.1.1:443",
			expectedIP: "198.51.100.8",
		},
		{
			name:       "trusted proxy without headers",
			trusted:    trusted,
			remoteAddr: "10.1.1.1:443",
			expectedIP: "10.1.1.1",
		},
		{
			name:       "IPv6 peer",
			trusted:    trusted,
			remoteAddr: "[2001:db8::1]:12345",
			expectedIP: "2001:db8::1",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.0.2.50",
			expectedIP: "192.0.2.50",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/vote", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			if got := GetClientIP(req, tc.trusted); got != tc.expectedIP {
				t.Errorf("Expected IP '%s', got '%s'", tc.expectedIP, got)
			}
		})
	}
}
