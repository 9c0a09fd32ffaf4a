package sigs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keeper "github.com/keeperd/keeper"
	"github.com/keeperd/keeper/keepertest"
)

func TestVerifierMiddleware(t *testing.T) {
	const secret = "topsecret"
	caller := keepertest.NewAddress()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	body := `{"amount":100}`

	sign := func(secret string, at time.Time, caller string, body string) (ts, sig string) {
		ts = strconv.FormatInt(at.Unix(), 10)
		return ts, Sign(secret, ts, caller, []byte(body))
	}

	cases := map[string]struct {
		prepare    func(r *http.Request)
		wantStatus int
		wantCaller keeper.Address
	}{
		"valid signature": {
			prepare: func(r *http.Request) {
				ts, sig := sign(secret, now, caller.String(), body)
				r.Header.Set(headerCaller, caller.String())
				r.Header.Set(headerTimestamp, ts)
				r.Header.Set(headerSignature, sig)
			},
			wantStatus: http.StatusOK,
			wantCaller: caller,
		},
		"rail style caller address": {
			prepare: func(r *http.Request) {
				hexAddr := "0x" + strings.ToLower(caller.String())
				ts, sig := sign(secret, now, hexAddr, body)
				r.Header.Set(headerCaller, hexAddr)
				r.Header.Set(headerTimestamp, ts)
				r.Header.Set(headerSignature, sig)
			},
			wantStatus: http.StatusOK,
			wantCaller: caller,
		},
		"anonymous request passes without caller": {
			prepare:    func(r *http.Request) {},
			wantStatus: http.StatusOK,
			wantCaller: nil,
		},
		"missing signature": {
			prepare: func(r *http.Request) {
				r.Header.Set(headerCaller, caller.String())
				r.Header.Set(headerTimestamp, strconv.FormatInt(now.Unix(), 10))
			},
			wantStatus: http.StatusUnauthorized,
		},
		"wrong secret": {
			prepare: func(r *http.Request) {
				ts, sig := sign("other", now, caller.String(), body)
				r.Header.Set(headerCaller, caller.String())
				r.Header.Set(headerTimestamp, ts)
				r.Header.Set(headerSignature, sig)
			},
			wantStatus: http.StatusUnauthorized,
		},
		"tampered body": {
			prepare: func(r *http.Request) {
				ts, sig := sign(secret, now, caller.String(), `{"amount":999}`)
				r.Header.Set(headerCaller, caller.String())
				r.Header.Set(headerTimestamp, ts)
				r.Header.Set(headerSignature, sig)
			},
			wantStatus: http.StatusUnauthorized,
		},
		"stale timestamp": {
			prepare: func(r *http.Request) {
				ts, sig := sign(secret, now.Add(-10*time.Minute), caller.String(), body)
				r.Header.Set(headerCaller, caller.String())
				r.Header.Set(headerTimestamp, ts)
				r.Header.Set(headerSignature, sig)
			},
			wantStatus: http.StatusUnauthorized,
		},
		"timestamp from the future": {
			prepare: func(r *http.Request) {
				ts, sig := sign(secret, now.Add(10*time.Minute), caller.String(), body)
				r.Header.Set(headerCaller, caller.String())
				r.Header.Set(headerTimestamp, ts)
				r.Header.Set(headerSignature, sig)
			},
			wantStatus: http.StatusUnauthorized,
		},
		"malformed caller": {
			prepare: func(r *http.Request) {
				r.Header.Set(headerCaller, "not-an-address")
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			v := &Verifier{
				Secret:  secret,
				MaxSkew: 5 * time.Minute,
				Now:     func() time.Time { return now },
			}

			var gotCaller keeper.Address
			var gotBody string
			handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotCaller, _ = Caller(r.Context())
				raw := make([]byte, len(body))
				n, _ := r.Body.Read(raw)
				gotBody = string(raw[:n])
			}))

			req := httptest.NewRequest(http.MethodPost, "/v1/escrows", strings.NewReader(body))
			tc.prepare(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			if tc.wantStatus != http.StatusOK {
				return
			}
			if tc.wantCaller == nil {
				assert.Nil(t, gotCaller)
			} else {
				assert.True(t, tc.wantCaller.Equals(gotCaller))
				// The body must still be readable downstream.
				assert.Equal(t, body, gotBody)
			}
		})
	}
}

func TestVerifierWithoutSecretTrustsHeader(t *testing.T) {
	caller := keepertest.NewAddress()
	v := &Verifier{}

	var gotCaller keeper.Address
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller, _ = Caller(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/escrows/1", nil)
	req.Header.Set(headerCaller, caller.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, caller.Equals(gotCaller))
}

func TestAuthHasAddress(t *testing.T) {
	caller := keepertest.NewAddress()
	other := keepertest.NewAddress()
	auth := Auth{}

	ctx := WithCaller(context.Background(), caller)
	assert.True(t, auth.HasAddress(ctx, caller))
	assert.False(t, auth.HasAddress(ctx, other))
	assert.False(t, auth.HasAddress(context.Background(), caller))
}
