package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/animus-labs/stamps/internal/platform/auth"
	"github.com/animus-labs/stamps/internal/platform/httpserver"
)

// newReverseProxy forwards to target with the caller's identity in signed
// headers. Identity headers sent by the client are always dropped.
func newReverseProxy(logger *slog.Logger, secret string, target string, now func() time.Time) (http.Handler, error) {
	upstream, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream url: %q", target)
	}
	if now == nil {
		now = time.Now
	}

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		for _, h := range []string{auth.HeaderSubject, auth.HeaderEmail, auth.HeaderRoles, auth.HeaderInternalAuthTimestamp, auth.HeaderInternalAuthSignature} {
			r.Header.Del(h)
		}
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			return
		}
		roles := strings.Join(identity.Roles, ",")
		ts := strconv.FormatInt(now().UTC().Unix(), 10)
		sig, err := auth.SignGatewayHeaders(secret, ts, r.Method, r.URL.Path, r.Header.Get("X-Request-Id"), identity.Subject, identity.Email, roles)
		if err != nil {
			logger.Error("sign identity headers failed", "request_id", r.Header.Get("X-Request-Id"), "error", err)
			return
		}
		r.Header.Set(auth.HeaderSubject, identity.Subject)
		if identity.Email != "" {
			r.Header.Set(auth.HeaderEmail, identity.Email)
		}
		if roles != "" {
			r.Header.Set(auth.HeaderRoles, roles)
		}
		r.Header.Set(auth.HeaderInternalAuthTimestamp, ts)
		r.Header.Set(auth.HeaderInternalAuthSignature, sig)
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error", "request_id", r.Header.Get("X-Request-Id"), "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("{\"error\":\"bad_gateway\"}\n"))
	}
	return proxy, nil
}

func handleSession(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"subject": identity.Subject,
		"email":   identity.Email,
		"roles":   identity.Roles,
	})
}
