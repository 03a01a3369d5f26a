package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/nidhogg/skillgate/internal/apperr"
	"github.com/nidhogg/skillgate/internal/broker"
	"go.uber.org/zap"
)

var validate = validator.New()

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc    *broker.Service
	logger *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc *broker.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type",
			HeaderUserID, HeaderOrgID, HeaderOrgAdmin, HeaderPaymentIntent},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Post("/cron/validate", h.validateCron)

		r.Group(func(r chi.Router) {
			r.Use(requireViewer)

			r.Get("/access", h.effectiveAccess)

			r.Get("/skills", h.listSkills)
			r.Post("/skills", h.createSkill)
			r.Get("/skills/{slug}", h.getSkill)
			r.Put("/skills/{slug}", h.updateSkill)
			r.Post("/skills/{slug}/render", h.renderSkill)
			r.Post("/skills/{slug}/automations", h.createAutomation)
		})
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Health(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "service": "skillgate"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "skillgate"})
}

func (h *Handler) effectiveAccess(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r.Context())
	eff, err := h.svc.ResolveEffectiveAccess(r.Context(), v.UserID, v.OrganizationID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":         v.UserID,
		"organization_id": v.OrganizationID,
		"access":          eff,
	})
}

func (h *Handler) listSkills(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListSkills(r.Context(), viewerFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getSkill(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetSkill(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) createSkill(w http.ResponseWriter, r *http.Request) {
	var in broker.SkillInput
	if err := decodeAndValidate(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.CreateSkill(r.Context(), viewerFrom(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) updateSkill(w http.ResponseWriter, r *http.Request) {
	var in broker.SkillInput
	if err := decodeAndValidate(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.svc.UpdateSkill(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "slug"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) renderSkill(w http.ResponseWriter, r *http.Request) {
	// Rendered text carries live credentials.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	out, err := h.svc.RenderSkill(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createAutomation(w http.ResponseWriter, r *http.Request) {
	var in broker.AutomationInput
	if err := decodeAndValidate(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.svc.CreateAutomation(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "slug"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type cronRequest struct {
	Expression string `json:"expression" validate:"required"`
	Timezone   string `json:"timezone"`
}

func (h *Handler) validateCron(w http.ResponseWriter, r *http.Request) {
	var req cronRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ValidateCron(req.Expression, req.Timezone))
}

func decodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	if err := validate.Struct(v); err != nil {
		return apperr.NewInvalidRequest(validationMessage(err))
	}
	return nil
}

// validationMessage turns validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), rule))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

type errorBody struct {
	Error *apperr.Error `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err)
	if ae.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, ae.Status, errorBody{Error: ae})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
