package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// passHandler answers 200 "ok".
var passHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func callWithKey(t *testing.T, mw func(http.Handler) http.Handler, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v2/track", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	mw(passHandler).ServeHTTP(rec, req)
	return rec
}

func TestAPIKey(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		expected string
		header   string
		sent     string
		want     int
	}{
		{"mode none passes through", "none", "secret", "x-api-key", "", http.StatusOK},
		{"empty key passes through", "apikey", "", "x-api-key", "", http.StatusOK},
		{"correct key", "apikey", "supersecret", "x-api-key", "supersecret", http.StatusOK},
		{"wrong key", "apikey", "supersecret", "x-api-key", "wrong", http.StatusUnauthorized},
		{"missing key", "apikey", "supersecret", "x-api-key", "", http.StatusUnauthorized},
		{"custom header", "apikey", "k", "x-collector-key", "k", http.StatusOK},
		{"prefix of key", "apikey", "supersecret", "x-api-key", "super", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := callWithKey(t, APIKey(tc.mode, tc.header, tc.expected), tc.header, tc.sent)
			if rec.Code != tc.want {
				t.Errorf("status: got %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestAPIKey_HeaderIsCaseInsensitive(t *testing.T) {
	mw := APIKey("apikey", "X-Api-Key", "k")
	rec := callWithKey(t, mw, "x-api-key", "k")
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}
