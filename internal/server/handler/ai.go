package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"chatpilot/internal/llm"
	"chatpilot/internal/suggest"
)

type AIHandler struct {
	pipeline *suggest.Pipeline
}

func NewAIHandler(p *suggest.Pipeline) *AIHandler {
	return &AIHandler{pipeline: p}
}

type suggestionsRequest struct {
	ChatHistory []suggest.Turn `json:"chatHistory"`
	AutoMode    bool           `json:"autoMode"`
}

// HandleSuggestions serves both modes of the pipeline. The response is
// a JSON array of 3 strings (interactive) or a {reply, confidence_score}
// object (autonomous). Degraded results come back with status 200; only
// the missing-credentials configuration error is surfaced as a failure.
func (h *AIHandler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	var req suggestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.AutoMode {
		reply, err := h.pipeline.Autonomous(r.Context(), req.ChatHistory)
		if err != nil {
			h.pipelineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reply)
		return
	}

	items, err := h.pipeline.Interactive(r.Context(), req.ChatHistory)
	if err != nil {
		h.pipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type draftRequest struct {
	Prompt      string         `json:"prompt"`
	ChatHistory []suggest.Turn `json:"chatHistory"`
}

func (h *AIHandler) HandleDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt required")
		return
	}
	draft, err := h.pipeline.GenerateDraft(r.Context(), req.Prompt, req.ChatHistory)
	if err != nil {
		log.Printf("handler: draft generation: %v", err)
		h.pipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"draft": draft})
}

func (h *AIHandler) pipelineError(w http.ResponseWriter, err error) {
	if errors.Is(err, llm.ErrNoCredentials) {
		writeError(w, http.StatusInternalServerError, "no AI credentials configured")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to generate draft")
}
