package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"bloodlink/internal/util"
	"bloodlink/pkg/domain"
	"bloodlink/services/api/internal/app"
	"bloodlink/services/api/internal/security"
)

const defaultCookieName = "donor_session"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                 *app.App
	CookieName          string
	SessionTTL          time.Duration
	TrustedProxies      *util.TrustedProxies
	CORSAllowedOrigins  []string
	DisableRegistration bool
	Alerter             *security.AuditAlerter
}

// Server exposes the donor registry HTTP API.
type Server struct {
	app                 *app.App
	mux                 *http.ServeMux
	cookieName          string
	sessionTTL          time.Duration
	trustedProxies      *util.TrustedProxies
	corsOrigins         []string
	disableRegistration bool
	alerter             *security.AuditAlerter
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		cookieName = defaultCookieName
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s := &Server{
		app:                 cfg.App,
		mux:                 http.NewServeMux(),
		cookieName:          cookieName,
		sessionTTL:          ttl,
		trustedProxies:      cfg.TrustedProxies,
		corsOrigins:         cfg.CORSAllowedOrigins,
		disableRegistration: cfg.DisableRegistration,
		alerter:             cfg.Alerter,
	}
	s.routes()
	return s
}

// Router returns the configured handler wrapped in the middleware chain.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithRequestLog("api", h)
	h = util.WithRequestID(h)
	h = util.WithCORS(s.corsOrigins, h)
	return util.WithSecurityHeaders(s.trustedProxies, h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/auth/session", s.handleSession)

	// donors
	s.mux.HandleFunc("POST /api/donors", s.handleSubmitDonor)
	s.mux.HandleFunc("GET /api/donors", s.handleListDonors)
	s.mux.HandleFunc("GET /api/donors/stats", s.handleDonorStats)
	s.mux.HandleFunc("GET /api/donors/{id}", s.handleGetDonor)
	s.mux.HandleFunc("POST /api/donors/{id}/approve", s.handleApprove)
	s.mux.HandleFunc("POST /api/donors/{id}/reject", s.handleReject)
	s.mux.HandleFunc("PUT /api/donors/{id}/status", s.handleSetStatus)
	s.mux.HandleFunc("DELETE /api/donors/{id}", s.handleDeleteDonor)

	// contact
	s.mux.HandleFunc("POST /api/contact", s.handleSubmitContact)
	s.mux.HandleFunc("GET /api/contact", s.handleListContacts)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth handlers
type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type adminView struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

type loginResponse struct {
	Message string    `json:"message"`
	Admin   adminView `json:"admin"`
}

type sessionResponse struct {
	Admin *domain.Session `json:"admin"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.disableRegistration {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	admin, err := s.app.Register(r.Context(), req.Username, req.Password, req.Name)
	if err != nil {
		s.audit(r, "api.register", "fail", "username", strings.TrimSpace(req.Username), "reason", app.KindOf(err).String())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.register", "success", "admin_id", admin.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Admin registered successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, sess, err := s.app.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.audit(r, "api.login", "fail", "reason", app.KindOf(err).String())
		s.writeAppError(w, r, err)
		return
	}
	s.setSessionCookie(w, r, token)
	s.audit(r, "api.login", "success", "admin_id", sess.AdminID)
	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		Admin:   adminView{Username: sess.Username, Name: sess.Name},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Logout(r.Context(), s.sessionToken(r)); err != nil {
		s.audit(r, "api.logout", "fail")
		util.LoggerFromContext(r.Context()).Error("logout failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Logout failed")
		return
	}
	s.clearSessionCookie(w, r)
	s.audit(r, "api.logout", "success")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.app.CurrentSession(r.Context(), s.sessionToken(r))
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Admin: &sess})
}

// donor handlers
type donorRequest struct {
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	BloodType string      `json:"bloodType"`
	Age       json.Number `json:"age"`
	Address   string      `json:"address"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type donorResponse struct {
	Message string       `json:"message"`
	Donor   domain.Donor `json:"donor"`
}

func (s *Server) handleSubmitDonor(w http.ResponseWriter, r *http.Request) {
	var req donorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Age == "" {
		s.writeAppError(w, r, app.ErrFieldsRequired)
		return
	}
	age, ok := parseAge(req.Age)
	if !ok {
		s.writeAppError(w, r, app.ErrInvalidAge)
		return
	}
	donor, err := s.app.SubmitDonor(r.Context(), domain.DonorInput{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		BloodType: req.BloodType,
		Age:       age,
		Address:   req.Address,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, donorResponse{Message: "Donor added successfully", Donor: donor})
}

// parseAge accepts any JSON number with an integral value, so 30, 30.0 and
// 3e1 are all 30. Values outside int32 are rejected.
func parseAge(n json.Number) (int, bool) {
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func (s *Server) handleListDonors(w http.ResponseWriter, r *http.Request) {
	donors, err := s.app.ListDonors(r.Context(), s.sessionToken(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, donors)
}

func (s *Server) handleDonorStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.DonorStats(r.Context(), s.sessionToken(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetDonor(w http.ResponseWriter, r *http.Request) {
	donor, err := s.app.GetDonor(r.Context(), s.sessionToken(r), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, donor)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, domain.DonorApproved, "Donor approved successfully")
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, domain.DonorRejected, "Donor rejected successfully")
}

// handleSetStatus leaves an undecodable body as an empty status so the
// session check still runs first and decides between 401 and 400.
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		req = statusRequest{}
	}
	s.setStatus(w, r, domain.DonorStatus(strings.TrimSpace(req.Status)), "Status updated successfully")
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request, status domain.DonorStatus, message string) {
	donor, err := s.app.SetDonorStatus(r.Context(), s.sessionToken(r), r.PathValue("id"), status)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, donorResponse{Message: message, Donor: donor})
}

func (s *Server) handleDeleteDonor(w http.ResponseWriter, r *http.Request) {
	if err := s.app.RemoveDonor(r.Context(), s.sessionToken(r), r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Donor deleted successfully"})
}

// contact handlers
type contactResponse struct {
	Message        string                `json:"message"`
	ContactMessage domain.ContactMessage `json:"contactMessage"`
}

func (s *Server) handleSubmitContact(w http.ResponseWriter, r *http.Request) {
	var req domain.ContactInput
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := s.app.SubmitContact(r.Context(), req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contactResponse{Message: "Contact message saved successfully", ContactMessage: msg})
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.app.ListContacts(r.Context(), s.sessionToken(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// session cookie helpers
func (s *Server) sessionToken(r *http.Request) string {
	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   util.IsSecureRequest(r, s.trustedProxies),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   util.IsSecureRequest(r, s.trustedProxies),
		SameSite: http.SameSiteLaxMode,
	})
}

// writeAppError maps typed failures to status codes. Internal errors are
// logged and replaced with a generic message.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch app.KindOf(err) {
	case app.KindValidation, app.KindConflict:
		writeError(w, http.StatusBadRequest, err.Error())
	case app.KindUnauthorized:
		if errors.Is(err, app.ErrUnauthorized) {
			s.audit(r, "api.authorize", "fail")
		}
		writeError(w, http.StatusUnauthorized, err.Error())
	case app.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":     "internal error",
			"requestId": util.RequestIDFromContext(r.Context()),
		})
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trustedProxies)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
	s.observeAlert(r.Context(), logger, event, outcome, ip)
}

func (s *Server) observeAlert(ctx context.Context, logger *slog.Logger, event, outcome, ip string) {
	result, err := s.alerter.Observe(ctx, event, outcome, ip)
	if err != nil {
		logger.Warn("security alert evaluation failed", "event", event, "err", err)
		return
	}
	if result.Triggered {
		logger.Warn("security_alert",
			"event", event,
			"ip", ip,
			"count", result.Count,
			"threshold", result.Threshold,
			"window", result.Window.String(),
		)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
