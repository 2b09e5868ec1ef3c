// Package httpapi implements the HTTP routes of the offer service.
//
// HR routes read the session attached by the auth middleware; candidate
// routes are authorized by the offer token alone.
//
// Routes:
//
//	GET  /health                 → liveness and store reachability
//	POST /hr-login               → start an HR session
//	GET  /logout                 → end the HR session
//	POST /create-offer           → create a PENDING offer (HR)
//	GET  /hr-dashboard           → list every offer, newest first (HR)
//	POST /offers/{id}/resend     → queue the letter of a pending offer again (HR)
//	GET  /offer-details?token=   → decision-page view of a pending offer
//	POST /offer-action           → accept or reject an offer, once
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"offerdesk/offer-service/internal/auth"
	"offerdesk/offer-service/internal/notify"
	"offerdesk/offer-service/internal/offer"
)

const (
	version      = "1.0.0"
	maxBodyBytes = 1 << 20

	invalidLinkMsg = "this offer link is no longer valid"
)

// ─── Request / response types ────────────────────────────────────────────────

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type actionRequest struct {
	Token  string `json:"token"`
	Status string `json:"status"`
}

type createResponse struct {
	Message            string `json:"message"`
	ID                 int64  `json:"id"`
	Token              string `json:"token"`
	Link               string `json:"link"`
	NotificationQueued bool   `json:"notificationQueued"`
}

type resendResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
	Link    string `json:"link"`
}

type detailsResponse struct {
	Success bool        `json:"success"`
	Offer   *offer.View `json:"offer,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ─── Handler ─────────────────────────────────────────────────────────────────

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies.
type Handler struct {
	engine        *offer.Engine
	gateway       *auth.Gateway
	health        Pinger
	hostURL       string
	secureCookies bool
	validate      *validator.Validate
	log           *slog.Logger
}

// NewHandler returns a configured Handler. health may be nil.
func NewHandler(engine *offer.Engine, gateway *auth.Gateway, health Pinger, hostURL string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return &Handler{
		engine:        engine,
		gateway:       gateway,
		health:        health,
		hostURL:       hostURL,
		secureCookies: strings.HasPrefix(hostURL, "https://"),
		validate:      v,
		log:           log,
	}
}

// Routes returns the full middleware-wrapped route tree.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.healthCheck)
	mux.HandleFunc("POST /hr-login", h.login)
	mux.HandleFunc("GET /logout", h.logout)
	mux.HandleFunc("POST /create-offer", h.createOffer)
	mux.HandleFunc("GET /hr-dashboard", h.dashboard)
	mux.HandleFunc("POST /offers/{id}/resend", h.resendOffer)
	mux.HandleFunc("GET /offer-details", h.offerDetails)
	mux.HandleFunc("POST /offer-action", h.offerAction)
	return requestLogger(h.log, h.gateway.Middleware(mux))
}

// ─── HR routes ───────────────────────────────────────────────────────────────

// login handles POST /hr-login
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeBody(w, r, &body, func(get func(string) string) {
		body.Email, body.Password = get("email"), get("password")
	}); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	body.Email = strings.TrimSpace(body.Email)
	if err := h.validate.Struct(body); err != nil {
		jsonError(w, firstFieldError(err), http.StatusBadRequest)
		return
	}

	session, err := h.gateway.Login(body.Email, body.Password)
	if err != nil {
		h.log.Info("hr login refused", "remote", r.RemoteAddr)
		jsonError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	auth.SetSessionCookie(w, session, h.secureCookies)
	jsonOK(w, http.StatusOK, map[string]any{
		"message":   "Login successful",
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

// logout handles GET /logout
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secureCookies)
	jsonOK(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// createOffer handles POST /create-offer
func (h *Handler) createOffer(w http.ResponseWriter, r *http.Request) {
	var in offer.CreateInput
	if err := decodeBody(w, r, &in, func(get func(string) string) {
		in.CandidateName, in.Email, in.Position, in.Salary = get("name"), get("email"), get("position"), get("salary")
	}); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.engine.Create(r.Context(), auth.ActorFrom(r.Context()), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusCreated, createResponse{
		Message:            "Offer created",
		ID:                 created.Offer.ID,
		Token:              created.Offer.Token,
		Link:               notify.OfferLink(h.hostURL, created.Offer.Token),
		NotificationQueued: created.NotificationQueued,
	})
}

// dashboard handles GET /hr-dashboard
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	offers, err := h.engine.List(r.Context(), auth.ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, offers)
}

// resendOffer handles POST /offers/{id}/resend
func (h *Handler) resendOffer(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())
	if !actor.Authorized() {
		h.writeError(w, offer.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		jsonError(w, "id: must be a positive integer", http.StatusBadRequest)
		return
	}

	o, err := h.engine.Resend(r.Context(), actor, id)
	switch {
	case err == nil:
	case errors.Is(err, offer.ErrNotFound):
		jsonError(w, "offer not found", http.StatusNotFound)
		return
	case errors.Is(err, offer.ErrAlreadyProcessedOrInvalid):
		jsonError(w, "offer is no longer pending", http.StatusConflict)
		return
	default:
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusAccepted, resendResponse{
		Message: "Offer letter queued",
		ID:      o.ID,
		Link:    notify.OfferLink(h.hostURL, o.Token),
	})
}

// ─── Candidate routes ────────────────────────────────────────────────────────

// offerDetails handles GET /offer-details?token=
func (h *Handler) offerDetails(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetByToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		if offer.IsInvalidLink(err) {
			jsonOK(w, http.StatusNotFound, detailsResponse{Error: invalidLinkMsg, Message: invalidLinkMsg})
			return
		}
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, detailsResponse{Success: true, Offer: &view})
}

// offerAction handles POST /offer-action
func (h *Handler) offerAction(w http.ResponseWriter, r *http.Request) {
	var body actionRequest
	if err := decodeBody(w, r, &body, func(get func(string) string) {
		body.Token, body.Status = get("token"), get("status")
	}); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.engine.Resolve(r.Context(), body.Token, body.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, map[string]string{
		"message": "Offer " + string(res.Status),
		"status":  string(res.Status),
	})
}

// ─── Health ──────────────────────────────────────────────────────────────────

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.log.Warn("health check failed", "err", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	jsonOK(w, code, map[string]string{
		"status":  status,
		"service": "offer-service",
		"version": version,
	})
}

// ─── Errors ──────────────────────────────────────────────────────────────────

// httpStatus maps engine errors onto status codes. Unknown and consumed
// tokens share one response.
func httpStatus(err error) (int, string) {
	var verr *offer.ValidationError
	var perr *offer.PersistenceError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, offer.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, offer.ErrAlreadyProcessedOrInvalid):
		return http.StatusGone, invalidLinkMsg
	case errors.Is(err, offer.ErrNotFound):
		return http.StatusNotFound, invalidLinkMsg
	case errors.Is(err, offer.ErrNotificationUnavailable):
		return http.StatusServiceUnavailable, "offer letter could not be queued"
	case errors.As(err, &perr):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code, msg := httpStatus(err)
	if code >= http.StatusInternalServerError {
		h.log.Error("request failed", "err", err)
	}
	jsonError(w, msg, code)
}

func firstFieldError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Tag() == "email" {
			return fe.Field() + ": must be a valid email address"
		}
		return fe.Field() + ": is required"
	}
	return err.Error()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// decodeBody reads a JSON body into dst, or hands form values to fromForm
// for urlencoded and multipart submissions.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, fromForm func(get func(string) string)) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return err
		}
		fromForm(r.PostForm.Get)
		return nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return err
		}
		fromForm(r.PostFormValue)
		return nil
	default:
		return json.NewDecoder(r.Body).Decode(dst)
	}
}

func jsonOK(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// jsonError writes msg under both "error" and "message"; the browser pages
// read data.message.
func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg, "message": msg})
}
