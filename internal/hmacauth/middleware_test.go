package hmacauth

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testVerifier(secret string) *Verifier {
	return &Verifier{
		Secret:  secret,
		MaxSkew: 5 * time.Minute,
		Now:     func() time.Time { return time.Unix(1_700_000_000, 0) },
	}
}

func signedRequest(t *testing.T, secret, body string, ts int64) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/config", strings.NewReader(body))
	tsStr := fmt.Sprintf("%d", ts)
	req.Header.Set(defaultTimestampHeader, tsStr)
	req.Header.Set(defaultSignatureHeader, ComputeSignature(secret, tsStr, []byte(body)))
	return req
}

func serve(v *Verifier, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rr, req)
	return rr
}

func TestMiddlewareValidSignature(t *testing.T) {
	v := testVerifier("secret")
	req := signedRequest(t, "secret", `{"feeBps":25}`, 1_700_000_000)
	if rr := serve(v, req); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestMiddlewareRejections(t *testing.T) {
	v := testVerifier("secret")
	body := `{"paused":true}`

	// Wrong secret.
	req := signedRequest(t, "wrong", body, 1_700_000_000)
	if rr := serve(v, req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", rr.Code)
	}

	// Stale timestamp, both directions.
	for _, ts := range []int64{1_700_000_000 - 301, 1_700_000_000 + 301} {
		v.MaxSkew = 5 * time.Minute
		req = signedRequest(t, "secret", body, ts)
		if rr := serve(v, req); rr.Code != http.StatusUnauthorized {
			t.Fatalf("stale ts %d: expected 401, got %d", ts, rr.Code)
		}
	}

	// Missing headers.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/config", strings.NewReader(body))
	if rr := serve(v, req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing headers: expected 401, got %d", rr.Code)
	}

	// Signature over a different body.
	req = signedRequest(t, "secret", body, 1_700_000_000)
	req.Body = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"paused":false}`)).Body
	if rr := serve(v, req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("tampered body: expected 401, got %d", rr.Code)
	}
}

func TestMiddlewareEmptySecretAllowsAll(t *testing.T) {
	v := testVerifier("")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/config", strings.NewReader("{}"))
	if rr := serve(v, req); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with auth disabled, got %d", rr.Code)
	}
}

func TestBodyReplayedForHandler(t *testing.T) {
	v := testVerifier("secret")
	body := `{"minLockAmount":"1000"}`
	req := signedRequest(t, "secret", body, 1_700_000_000)

	var seen string
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body in handler: %v", err)
		}
		seen = string(data)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != body {
		t.Fatalf("handler must see the original body, got %q", seen)
	}
}
