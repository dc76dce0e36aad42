package internaldefs

import (
	"github.com/hirelink/hireauth"
	"github.com/hirelink/hireauth/session"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   hireauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   hireauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported engine counter.
var CounterDefs = []CounterDef{
	{ID: hireauth.MetricSessionCreated, Name: "hireauth_session_created_total", Help: "Sessions issued."},
	{ID: hireauth.MetricSessionDisplaced, Name: "hireauth_session_displaced_total", Help: "Sessions replaced by a newer login of the same account."},
	{ID: hireauth.MetricSessionValidated, Name: "hireauth_session_validated_total", Help: "Successful session validations."},
	{ID: hireauth.MetricSessionNotFound, Name: "hireauth_session_not_found_total", Help: "Validations of unknown session ids."},
	{ID: hireauth.MetricSessionExpired, Name: "hireauth_session_expired_total", Help: "Expired sessions removed on read."},
	{ID: hireauth.MetricSessionDisabled, Name: "hireauth_session_disabled_total", Help: "Validations rejected because the account is disabled."},
	{ID: hireauth.MetricSessionCorrupt, Name: "hireauth_session_corrupt_total", Help: "Unreadable session payloads removed on read."},
	{ID: hireauth.MetricSessionDegraded, Name: "hireauth_session_degraded_total", Help: "Sessions served from a partially recovered payload."},
	{ID: hireauth.MetricSessionRefreshed, Name: "hireauth_session_refreshed_total", Help: "Session TTL extensions."},
	{ID: hireauth.MetricSessionRefreshFailed, Name: "hireauth_session_refresh_failed_total", Help: "Session TTL extensions that failed."},
	{ID: hireauth.MetricSessionRefreshDropped, Name: "hireauth_session_refresh_dropped_total", Help: "Background refreshes dropped under backpressure."},
	{ID: hireauth.MetricLogout, Name: "hireauth_logout_total", Help: "Logouts."},
	{ID: hireauth.MetricKickOut, Name: "hireauth_kick_out_total", Help: "Sessions removed by an administrator."},
	{ID: hireauth.MetricLoginSuccess, Name: "hireauth_login_success_total", Help: "Successful login attempts."},
	{ID: hireauth.MetricLoginFailure, Name: "hireauth_login_failure_total", Help: "Failed login attempts."},
	{ID: hireauth.MetricLoginRateLimited, Name: "hireauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: hireauth.MetricAccountLocked, Name: "hireauth_account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: hireauth.MetricAccountDisabled, Name: "hireauth_account_disabled_total", Help: "Account disable operations."},
	{ID: hireauth.MetricAccountEnabled, Name: "hireauth_account_enabled_total", Help: "Account enable operations."},
	{ID: hireauth.MetricPolicyReloadSuccess, Name: "hireauth_policy_reload_success_total", Help: "Successful policy reloads."},
	{ID: hireauth.MetricPolicyReloadFailure, Name: "hireauth_policy_reload_failure_total", Help: "Failed policy reloads."},
	{ID: hireauth.MetricPermissionDenied, Name: "hireauth_permission_denied_total", Help: "Denied permission and role checks."},
}

// HistogramDefs lists every exported engine histogram.
var HistogramDefs = []HistogramDef{
	{ID: hireauth.MetricValidateLatency, Name: "hireauth_validate_latency_seconds", Help: "Session validation latency."},
}

// Labeled counters built from the map sections of the snapshot.
const (
	SerializationErrorsName = "hireauth_serialization_errors_total"
	SerializationErrorsHelp = "Session payload serialization failures by category."
	SerializationLabel      = "category"

	DroppedName  = "hireauth_background_dropped_total"
	DroppedHelp  = "Background work dropped under backpressure by queue."
	DroppedLabel = "queue"
)

// SerializationCategories returns the category label values in a stable
// order.
func SerializationCategories() []string {
	cats := session.Categories()
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, c.String())
	}
	return out
}

// DroppedQueues lists the queue label values.
var DroppedQueues = []string{hireauth.QueueAccessLog, hireauth.QueueSessionRefresh}

// HistogramBounds are the upper bounds of the latency buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix spells HistogramBounds for use in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
