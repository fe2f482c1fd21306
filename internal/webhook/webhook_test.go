package webhook

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func setup() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, Config{VerifyToken: "secret-token"}, nil)
	return r
}

func verifyURL(mode, token, challenge string) string {
	q := url.Values{}
	if mode != "" {
		q.Set("hub.mode", mode)
	}
	if token != "" {
		q.Set("hub.verify_token", token)
	}
	if challenge != "" {
		q.Set("hub.challenge", challenge)
	}
	return "/webhook?" + q.Encode()
}

func TestVerification(t *testing.T) {
	r := setup()

	cases := []struct {
		name       string
		url        string
		wantStatus int
		wantBody   string
	}{
		{"valid handshake", verifyURL("subscribe", "secret-token", "12345"), http.StatusOK, "12345"},
		{"wrong token", verifyURL("subscribe", "nope", "12345"), http.StatusForbidden, ""},
		{"wrong mode", verifyURL("unsubscribe", "secret-token", "12345"), http.StatusForbidden, ""},
		{"missing params", "/webhook", http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.url, nil))
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if tc.wantBody != "" && w.Body.String() != tc.wantBody {
				t.Fatalf("body = %q, want challenge echoed", w.Body.String())
			}
		})
	}
}

func TestReceive(t *testing.T) {
	r := setup()

	w := httptest.NewRecorder()
	body := `{"object":"whatsapp_business_account","entry":[{"id":"1"}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "received") {
		t.Fatalf("body = %s", w.Body.String())
	}

	// Payload without an object field is rejected, not acknowledged.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"entry":[]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
