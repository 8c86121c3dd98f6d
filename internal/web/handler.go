// Package web implements the HTTP surface of the subscription lifecycle.
//
// Routes:
//
//	POST /subscribe          → sign up (double opt-in, sends confirmation mail)
//	GET  /confirm?token=     → complete the opt-in, activate the subscription
//	POST /context            → upload CV text, derive profile + search queries
//	GET  /unsubscribe?token= → deactivate and wipe personal data
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"net/url"
	"strings"

	"github.com/TheTrueAI/stellenscout/internal/mailer"
	"github.com/TheTrueAI/stellenscout/internal/model"
	"github.com/TheTrueAI/stellenscout/internal/registry"
)

// queriesPerContext is how many search queries are derived from one CV.
const queriesPerContext = 5

// Sender delivers one HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Profiler derives a candidate profile and search queries from CV text.
// *agent.Agent satisfies it.
type Profiler interface {
	ProfileCandidate(ctx context.Context, cvText string) (*model.CandidateProfile, error)
	GenerateQueries(ctx context.Context, profile *model.CandidateProfile, location string, n int) ([]string, error)
}

// Handler holds shared dependencies.
type Handler struct {
	reg      *registry.Registry
	profiler Profiler
	mail     Sender
	appURL   string
}

// NewHandler returns a configured Handler. appURL is the public base URL used
// in confirmation links.
func NewHandler(reg *registry.Registry, profiler Profiler, mail Sender, appURL string) *Handler {
	return &Handler{reg: reg, profiler: profiler, mail: mail, appURL: appURL}
}

// RegisterRoutes mounts all lifecycle routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/subscribe", h.handleSubscribe)
	mux.HandleFunc("/confirm", h.handleConfirm)
	mux.HandleFunc("/context", h.handleContext)
	mux.HandleFunc("/unsubscribe", h.handleUnsubscribe)
}

// handleSubscribe handles POST /subscribe
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		jsonError(w, "invalid email address", http.StatusBadRequest)
		return
	}

	sub, sendConfirm, err := h.reg.Create(r.Context(), email)
	if err != nil {
		log.Printf("[web] subscribe error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	if sendConfirm && sub.ConfirmToken != nil {
		confirmURL := h.appURL + "/confirm?token=" + url.QueryEscape(*sub.ConfirmToken)
		subject, body := mailer.ConfirmationEmail(confirmURL)
		if err := h.mail.Send(r.Context(), sub.Email, subject, body); err != nil {
			log.Printf("[web] confirmation email error: %v", err)
			jsonError(w, "could not send confirmation email", http.StatusBadGateway)
			return
		}
	}

	// Same response whether the signup was new, refreshed, or already active,
	// so the endpoint doesn't leak subscription state.
	jsonOK(w, map[string]string{
		"status":  "ok",
		"message": "check your inbox to confirm your subscription",
	})
}

// handleConfirm handles GET /confirm?token=
func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		jsonError(w, "missing token", http.StatusBadRequest)
		return
	}

	sub, err := h.reg.Confirm(r.Context(), token)
	var verr *registry.ValidationError
	if errors.As(err, &verr) {
		jsonError(w, verr.Msg, http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("[web] confirm error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	subject, body := mailer.WelcomeEmail()
	if err := h.mail.Send(r.Context(), sub.Email, subject, body); err != nil {
		log.Printf("[web] welcome email error: %v", err)
	}

	jsonOK(w, map[string]string{
		"status":  "ok",
		"message": "subscription confirmed",
	})
}

// handleContext handles POST /context. It runs the CV through the profiler,
// derives search queries for the target location, and stores the resulting
// personalization context. Allowed only for active subscriptions.
func (h *Handler) handleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Email          string `json:"email"`
		CVText         string `json:"cv_text"`
		TargetLocation string `json:"target_location"`
		MinScore       *int   `json:"min_score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.CVText) == "" {
		jsonError(w, "cv_text is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.TargetLocation) == "" {
		jsonError(w, "target_location is required", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	sub, err := h.reg.ByEmail(r.Context(), email)
	if errors.Is(err, registry.ErrNotFound) || (err == nil && sub.Status != registry.StatusActive) {
		jsonError(w, "subscription is not active", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("[web] context lookup error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	profile, err := h.profiler.ProfileCandidate(r.Context(), req.CVText)
	if err != nil {
		log.Printf("[web] profiling error: %v", err)
		jsonError(w, "could not extract a profile from the CV", http.StatusBadGateway)
		return
	}
	queries, err := h.profiler.GenerateQueries(r.Context(), profile, req.TargetLocation, queriesPerContext)
	if err != nil {
		log.Printf("[web] query generation error: %v", err)
		jsonError(w, "could not derive search queries", http.StatusBadGateway)
		return
	}

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	minScore := h.reg.DefaultMinScore
	if req.MinScore != nil {
		if *req.MinScore < 0 || *req.MinScore > 100 {
			jsonError(w, "min_score must be between 0 and 100", http.StatusBadRequest)
			return
		}
		minScore = *req.MinScore
	}

	if err := h.reg.SaveContext(r.Context(), sub.ID, profileJSON, queries, req.TargetLocation, minScore); err != nil {
		var verr *registry.ValidationError
		if errors.As(err, &verr) {
			jsonError(w, verr.Msg, http.StatusBadRequest)
			return
		}
		log.Printf("[web] save context error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	jsonOK(w, map[string]any{
		"status":           "ok",
		"experience_level": profile.ExperienceLevel,
		"queries":          queries,
	})
}

// handleUnsubscribe handles GET /unsubscribe?token=
func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		jsonError(w, "missing token", http.StatusBadRequest)
		return
	}

	_, err := h.reg.Deactivate(r.Context(), token)
	var verr *registry.ValidationError
	if errors.As(err, &verr) {
		jsonError(w, verr.Msg, http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("[web] unsubscribe error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	jsonOK(w, map[string]string{
		"status":  "ok",
		"message": "you have been unsubscribed and your data deleted",
	})
}

// ─── JSON helpers ─────────────────────────────────────────────────────────────

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
