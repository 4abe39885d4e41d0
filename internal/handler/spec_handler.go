package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"visual-spec-compiler/internal/agent"
	"visual-spec-compiler/internal/history"
	"visual-spec-compiler/internal/imagegen"
	"visual-spec-compiler/internal/models"
	"visual-spec-compiler/internal/service"
	"visual-spec-compiler/internal/validation"
)

// MaxBodyBytes caps every JSON request body.
const MaxBodyBytes = 1 << 20

type SpecHandler struct {
	Service *service.GenerationService
	Agent   agent.Proposer
	Logger  *slog.Logger
}

// Routes registers the API on an /api/v1 subrouter.
func (h *SpecHandler) Routes(api *mux.Router) {
	api.HandleFunc("/generate", h.Generate).Methods("POST")
	api.HandleFunc("/propose-patch", h.ProposePatch).Methods("POST")
	api.HandleFunc("/history", h.ListHistory).Methods("GET")
	api.HandleFunc("/history/", h.ListHistory).Methods("GET")
	api.HandleFunc("/history/{uuid}", h.GetHistory).Methods("GET")
}

// Generate renders a Spec and returns the persisted history record.
func (h *SpecHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Spec json.RawMessage `json:"spec"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	var c validation.Collector
	spec, ok := parseSpecField(&c, "spec", req.Spec)
	if !ok {
		h.respondError(w, r, c.Err())
		return
	}

	res, err := h.Service.Generate(r.Context(), spec)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, res)
}

// ProposePatch asks the agent for a modified Spec. Nothing is persisted.
func (h *SpecHandler) ProposePatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentSpec json.RawMessage `json:"current_spec"`
		Instruction *string         `json:"instruction"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	var c validation.Collector
	current, _ := parseSpecField(&c, "current_spec", req.CurrentSpec)
	instruction := ""
	if c.Required("instruction", req.Instruction != nil) {
		instruction = *req.Instruction
		if err := validation.ValidateInstruction(instruction); err != nil {
			c.Merge("", err)
		}
	}
	if err := c.Err(); err != nil {
		h.respondError(w, r, err)
		return
	}

	res, err := h.Agent.ProposePatch(r.Context(), current, instruction)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

func (h *SpecHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.GetHistory(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *SpecHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.ListHistory(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// parseSpecField validates the nested Spec under field, merging its
// violations into c.
func parseSpecField(c *validation.Collector, field string, raw json.RawMessage) (models.Spec, bool) {
	if !c.Required(field, len(raw) > 0 && !bytes.Equal(raw, []byte("null"))) {
		return models.Spec{}, false
	}
	spec, err := models.ParseSpec(raw)
	if err != nil {
		c.Merge(field, err)
		return models.Spec{}, false
	}
	return spec, true
}

func (h *SpecHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			return false
		}
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

type errorBody struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

// respondError maps domain errors to status codes. Upstream details are
// logged, never returned.
func (h *SpecHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr       *validation.Error
		provErr    *imagegen.ProviderError
		transErr   *imagegen.TransportError
		respErr    *agent.ResponseError
		unavailErr *agent.UnavailableError
	)

	// ResponseError wraps the *validation.Error of a bad LLM answer, so it
	// must be matched before plain validation errors.
	switch {
	case errors.As(err, &respErr):
		h.Logger.WarnContext(r.Context(), "patch agent returned an unusable response", "error", err)
		respondJSON(w, http.StatusBadGateway, errorBody{Error: "the patch agent returned an invalid spec"})
	case errors.As(err, &unavailErr):
		h.Logger.WarnContext(r.Context(), "patch agent unavailable", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, errorBody{Error: "the patch agent is unavailable"})
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: verr.Fields})
	case errors.As(err, &provErr):
		h.Logger.WarnContext(r.Context(), "image provider error", "status", provErr.StatusCode, "error", err)
		respondJSON(w, http.StatusBadGateway, errorBody{Error: "the image provider rejected the request"})
	case errors.As(err, &transErr):
		h.Logger.WarnContext(r.Context(), "image provider unreachable", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, errorBody{Error: "the image provider is unavailable"})
	case errors.Is(err, history.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorBody{Error: "generation record not found"})
	default:
		h.Logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
