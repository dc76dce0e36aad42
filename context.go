package hireauth

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type deviceIDContextKey struct{}
type clientVersionContextKey struct{}
type principalContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP login throttling, the session's login IP and access logs.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithDeviceID attaches the client-declared device id to ctx. When absent,
// sessions are tagged with a fingerprint of user agent and IP.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDContextKey{}, deviceID)
}

// WithClientVersion attaches the client application version to ctx.
func WithClientVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, clientVersionContextKey{}, version)
}

// WithPrincipal returns a copy of ctx carrying p. The principal lives only
// as long as the derived context, so it never outlives the request.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the authenticated principal of the request,
// or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

func clientIPFromContext(ctx context.Context) string {
	return stringFromContext(ctx, clientIPContextKey{})
}

func userAgentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, userAgentContextKey{})
}

func deviceIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, deviceIDContextKey{})
}

func clientVersionFromContext(ctx context.Context) string {
	return stringFromContext(ctx, clientVersionContextKey{})
}

func stringFromContext(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
