// Package sigs authenticates HTTP callers through HMAC signed
// requests and exposes the verified caller as a keeper.Authenticator.
//
// A request carries the caller address, a unix timestamp and an
// HMAC-SHA256 signature over timestamp, caller and body. Whoever holds
// the shared secret vouches for the caller address; the ledger only
// ever sees the address.
package sigs

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	keeper "github.com/keeperd/keeper"
	"github.com/keeperd/keeper/errors"
)

const (
	headerCaller    = "X-Caller-Address"
	headerSignature = "X-Request-Signature"
	headerTimestamp = "X-Request-Timestamp"
)

type ctxKeyType int

const callerKey ctxKeyType = iota

// WithCaller returns a context carrying the authenticated caller.
func WithCaller(ctx context.Context, addr keeper.Address) context.Context {
	return context.WithValue(ctx, callerKey, addr)
}

// Caller returns the authenticated caller bound to the context.
func Caller(ctx context.Context) (keeper.Address, bool) {
	addr, ok := ctx.Value(callerKey).(keeper.Address)
	return addr, ok
}

// Auth implements keeper.Authenticator on top of the context caller.
type Auth struct{}

var _ keeper.Authenticator = Auth{}

func (Auth) HasAddress(ctx context.Context, addr keeper.Address) bool {
	caller, ok := Caller(ctx)
	if !ok {
		return false
	}
	return caller.Equals(addr)
}

// Verifier checks request signatures and binds the verified caller to
// the request context.
//
// An empty Secret disables signature verification and trusts the
// caller header as-is. That mode exists for development setups and
// tests only.
type Verifier struct {
	Secret  string
	MaxSkew time.Duration
	// Now is used to judge timestamp freshness. Defaults to time.Now.
	Now func() time.Time
}

// Middleware authenticates the request and passes it on with the
// caller in the context. Requests that fail verification are rejected
// with status 401 before reaching the next handler.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, err := v.verify(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if addr != nil {
			r = r.WithContext(WithCaller(r.Context(), addr))
		}
		next.ServeHTTP(w, r)
	})
}

func (v *Verifier) verify(r *http.Request) (keeper.Address, error) {
	caller := r.Header.Get(headerCaller)
	if caller == "" {
		// Anonymous request. Queries are fine with that; mutations
		// will fail their authorization check.
		return nil, nil
	}
	addr, err := keeper.ParseAddress(caller)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnauthorized, "malformed caller address")
	}

	if v.Secret == "" {
		return addr, nil
	}

	sig := r.Header.Get(headerSignature)
	if sig == "" {
		return nil, errors.Wrap(errors.ErrUnauthorized, "missing request signature")
	}
	tsHeader := r.Header.Get(headerTimestamp)
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnauthorized, "missing request timestamp")
	}

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	reqTime := time.Unix(ts, 0)
	if now.Sub(reqTime) > v.MaxSkew || reqTime.Sub(now) > v.MaxSkew {
		return nil, errors.Wrap(errors.ErrUnauthorized, "stale request timestamp")
	}

	body, err := readBody(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnauthorized, "cannot read body")
	}

	expected := Sign(v.Secret, tsHeader, caller, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "invalid request signature")
	}
	return addr, nil
}

// Sign computes the request signature clients must attach.
func Sign(secret, timestamp, caller string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("\n"))
	mac.Write([]byte(strings.ToLower(strings.TrimPrefix(caller, "0x"))))
	mac.Write([]byte("\n"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte{}, nil
	}
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	return body, nil
}
