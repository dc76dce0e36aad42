package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/hirelink/hireauth"
)

// Request headers read besides the token header.
const (
	HeaderDeviceID      = "X-Device-Id"
	HeaderClientVersion = "X-Client-Version"
)

// Authenticate resolves the session id carried in the configured token
// header and puts the resulting [hireauth.Principal] on the request context.
//
// Preflight requests and paths matching Interceptor.ExcludePaths pass
// through untouched. Every other request without a valid session is
// answered with 400 and an [ErrorBody]; store outages, unexpected errors
// and panics in later handlers are answered with 500. After a successful
// lookup the session TTL is extended in the background and an access log
// entry is recorded once the handler returns.
func Authenticate(engine *hireauth.Engine, log logrus.FieldLogger) func(http.Handler) http.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg := engine.Config().Interceptor
	header := cfg.TokenHeader
	if header == "" {
		header = "Authorization"
	}
	exclude := cfg.ExcludePaths

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || excluded(exclude, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			fields := logrus.Fields{"path": r.URL.Path, "method": r.Method}

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithFields(fields).WithField("panic", rec).Error("request failed with panic")
				if ww.Status() == 0 {
					WriteError(ww, http.StatusInternalServerError, CodeInternal, "internal error")
				}
			}()

			if engine == nil {
				WriteError(ww, http.StatusInternalServerError, CodeInternal, "internal error")
				return
			}

			token := SessionToken(r, header)
			if token == "" {
				log.WithFields(fields).Debug("request without session token")
				WriteError(ww, http.StatusBadRequest, CodeTokenMissing, "token missing")
				return
			}

			ctx := withRequestMetadata(r)
			p, err := engine.ValidateSessionAndGetUser(ctx, token)
			if err != nil {
				status, code, msg := Classify(err)
				if status >= http.StatusInternalServerError {
					log.WithFields(fields).WithError(err).Error("session lookup failed")
				} else {
					log.WithFields(fields).WithField("error_by", code).Debug("session rejected")
				}
				WriteError(ww, status, code, msg)
				return
			}

			engine.RefreshAsync(p.SessionID)

			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(hireauth.WithPrincipal(ctx, p)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			engine.RecordAccess(ctx, hireauth.AccessLogEntry{
				Account:   p.Account,
				UserID:    p.UserID,
				SessionID: p.SessionID,
				Method:    r.Method,
				Path:      r.URL.Path,
				Status:    status,
				Duration:  time.Since(start),
				IP:        p.IP,
				UserAgent: r.UserAgent(),
			})
		})
	}
}

// RequestMetadata records the client IP, user agent, device id and client
// version on the request context.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(withRequestMetadata(r)))
	})
}

func withRequestMetadata(r *http.Request) context.Context {
	ctx := r.Context()
	ctx = hireauth.WithClientIP(ctx, clientIP(r))
	ctx = hireauth.WithUserAgent(ctx, r.UserAgent())
	if v := strings.TrimSpace(r.Header.Get(HeaderDeviceID)); v != "" {
		ctx = hireauth.WithDeviceID(ctx, v)
	}
	if v := strings.TrimSpace(r.Header.Get(HeaderClientVersion)); v != "" {
		ctx = hireauth.WithClientVersion(ctx, v)
	}
	return ctx
}

// clientIP expects chi's RealIP to have rewritten RemoteAddr when the
// service runs behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SessionToken returns the session id carried in header, with an optional
// "Bearer " prefix removed. An empty header name means Authorization.
func SessionToken(r *http.Request, header string) string {
	if header == "" {
		header = "Authorization"
	}
	return tokenFromHeader(r.Header.Get(header))
}

// tokenFromHeader strips an optional bearer scheme. A scheme with nothing
// after it is a missing token, not a token named "Bearer".
func tokenFromHeader(value string) string {
	value = strings.TrimSpace(value)
	const scheme = "bearer"
	if len(value) < len(scheme) || !strings.EqualFold(value[:len(scheme)], scheme) {
		return value
	}
	rest := value[len(scheme):]
	switch {
	case rest == "":
		return ""
	case rest[0] == ' ' || rest[0] == '\t':
		return strings.TrimSpace(rest)
	default:
		return value
	}
}

func excluded(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
