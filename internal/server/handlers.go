package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/hirelink/hireauth"
	"github.com/hirelink/hireauth/middleware"
)

type handlers struct {
	engine *hireauth.Engine
	log    logrus.FieldLogger
}

type loginRequest struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string    `json:"sessionId"`
	Account   string    `json:"account"`
	UserID    int64     `json:"userId"`
	Nickname  string    `json:"nickname,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type principalResponse struct {
	SessionID   string    `json:"sessionId"`
	Account     string    `json:"account"`
	UserID      int64     `json:"userId"`
	Nickname    string    `json:"nickname,omitempty"`
	DeviceID    string    `json:"deviceId,omitempty"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	LoginTime   time.Time `json:"loginTime"`
	ExpireTime  time.Time `json:"expireTime"`
	Degraded    bool      `json:"degraded,omitempty"`
}

type healthResponse struct {
	Status           string `json:"status"`
	PolicyGeneration uint64 `json:"policyGeneration"`
}

type policyResponse struct {
	Generation uint64         `json:"generation"`
	Reloads    uint64         `json:"reloads"`
	Failures   uint64         `json:"failures"`
	Edges      map[string]int `json:"edges"`
	Skipped    []string       `json:"skipped,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := middleware.Classify(err)
	entry := h.log.WithFields(logrus.Fields{"path": r.URL.Path, "error_by": code})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	middleware.WriteError(w, status, code, msg)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeBadRequest, "malformed login request")
		return
	}

	res, err := h.engine.Login(r.Context(), req.Account, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		SessionID: res.SessionID,
		Account:   res.Account,
		UserID:    res.UserID,
		Nickname:  res.Nickname,
		ExpiresAt: res.ExpiresAt,
	})
}

// logout is reachable without a valid session so that clients holding an
// expired id can still clear it.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionToken(r, h.engine.Config().Interceptor.TokenHeader)
	if token == "" {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeTokenMissing, "token missing")
		return
	}
	if err := h.engine.Logout(r.Context(), token); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "UP", PolicyGeneration: h.engine.PolicyStatus().Generation}
	if err := h.engine.Ping(r.Context()); err != nil {
		h.log.WithError(err).Warn("health check failed")
		resp.Status = "DOWN"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	p := hireauth.PrincipalFromContext(r.Context())
	if p == nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeTokenMissing, "token missing")
		return
	}
	writeJSON(w, http.StatusOK, toPrincipalResponse(p))
}

func toPrincipalResponse(p *hireauth.Principal) principalResponse {
	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}
	perms := p.Permissions
	if perms == nil {
		perms = []string{}
	}
	return principalResponse{
		SessionID:   p.SessionID,
		Account:     p.Account,
		UserID:      p.UserID,
		Nickname:    p.Nickname,
		DeviceID:    p.DeviceID,
		Roles:       roles,
		Permissions: perms,
		LoginTime:   p.LoginTime,
		ExpireTime:  p.ExpireTime,
		Degraded:    p.Degraded,
	}
}

func (h *handlers) reloadPolicy(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ReloadPolicy(r.Context()); err != nil {
		h.log.WithError(err).Error("policy reload failed")
		middleware.WriteError(w, http.StatusServiceUnavailable, middleware.CodeUnavailable, "policy reload failed")
		return
	}
	h.policyStatus(w, r)
}

func (h *handlers) policyStatus(w http.ResponseWriter, _ *http.Request) {
	st := h.engine.PolicyStatus()
	resp := policyResponse{
		Generation: st.Generation,
		Reloads:    st.Reloads,
		Failures:   st.Failures,
		Edges:      make(map[string]int, len(st.Stats.Edges)),
	}
	for stratum, n := range st.Stats.Edges {
		resp.Edges[string(stratum)] = n
	}
	for _, s := range st.Stats.Skipped {
		resp.Skipped = append(resp.Skipped, string(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) kickOut(w http.ResponseWriter, r *http.Request) {
	removed, err := h.engine.KickOut(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *handlers) disableAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DisableAccount(r.Context(), chi.URLParam(r, "account")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) enableAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.EnableAccount(r.Context(), chi.URLParam(r, "account")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) accountSession(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.GetUserSession(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rec == nil {
		middleware.WriteError(w, http.StatusNotFound, middleware.CodeNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":  rec.SessionID,
		"account":    rec.Account,
		"loginIp":    rec.LoginIP,
		"loginTime":  rec.LoginTime,
		"expireTime": rec.ExpireTime,
	})
}
