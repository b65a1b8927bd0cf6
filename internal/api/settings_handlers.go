package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ai-exchange/internal/settings"
)

// Stored credentials are read at startup; changes apply on the next start.
const restartNotice = "changes take effect after restart"

// HandleGetSettings returns masked API key settings
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		h.jsonError(w, "Settings not available", http.StatusServiceUnavailable)
		return
	}

	h.jsonResponse(w, h.settings.GetMaskedSettings())
}

// HandleUpdateAPIKey updates a single API key configuration. Empty fields keep
// their stored values.
func (h *Handler) HandleUpdateAPIKey(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		h.jsonError(w, "Settings not available", http.StatusServiceUnavailable)
		return
	}

	var req settings.APIKeyConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	if req.ServiceName == "" {
		h.jsonError(w, "Service name is required", http.StatusBadRequest)
		return
	}
	if !knownService(req.ServiceName) {
		h.jsonError(w, "Unknown service: "+string(req.ServiceName), http.StatusBadRequest)
		return
	}

	if req.APIKey == "" && req.APISecret == "" && req.BaseURL == "" {
		h.jsonResponse(w, map[string]string{"status": "no changes", "service": string(req.ServiceName)})
		return
	}

	// Merge with existing config to preserve fields not being updated
	if existing := h.settings.GetAPIKey(req.ServiceName); existing != nil {
		if req.APIKey == "" {
			req.APIKey = existing.APIKey
		}
		if req.APISecret == "" {
			req.APISecret = existing.APISecret
		}
		if req.BaseURL == "" {
			req.BaseURL = existing.BaseURL
		}
	}

	if err := h.settings.SetAPIKey(&req); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]string{
		"status":  "saved",
		"service": string(req.ServiceName),
		"message": restartNotice,
	})
}

// HandleTestAPIKey checks the stored key of a service against its provider
func (h *Handler) HandleTestAPIKey(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		h.jsonError(w, "Settings not available", http.StatusServiceUnavailable)
		return
	}

	service := settings.ServiceName(chi.URLParam(r, "service"))
	if !knownService(service) {
		h.jsonError(w, "Unknown service: "+string(service), http.StatusBadRequest)
		return
	}

	cfg := h.settings.GetAPIKey(service)
	if cfg == nil {
		h.jsonError(w, "Service not configured", http.StatusNotFound)
		return
	}

	result, err := h.validator.ValidateAPIKey(r.Context(), cfg)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, result)
}

// HandleDeleteAPIKey removes an API key configuration
func (h *Handler) HandleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		h.jsonError(w, "Settings not available", http.StatusServiceUnavailable)
		return
	}

	service := settings.ServiceName(chi.URLParam(r, "service"))
	if !knownService(service) {
		h.jsonError(w, "Unknown service: "+string(service), http.StatusBadRequest)
		return
	}

	if err := h.settings.DeleteAPIKey(service); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]string{"status": "deleted", "service": string(service)})
}

// HandleResetSettings removes all API key configurations
func (h *Handler) HandleResetSettings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		h.jsonError(w, "Settings not available", http.StatusServiceUnavailable)
		return
	}

	if err := h.settings.ResetAll(); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]string{"status": "reset"})
}

func knownService(service settings.ServiceName) bool {
	for _, s := range settings.Services {
		if s == service {
			return true
		}
	}
	return false
}
