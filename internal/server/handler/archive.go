package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"chatpilot/internal/archive"
	"chatpilot/internal/entity"
	"chatpilot/internal/store"
)

// ArchiveHandler exports a conversation transcript to the configured
// sink. A nil sink answers 503: the feature is optional.
type ArchiveHandler struct {
	store store.Store
	sink  archive.Sink
}

func NewArchiveHandler(st store.Store, sink archive.Sink) *ArchiveHandler {
	return &ArchiveHandler{store: st, sink: sink}
}

func (h *ArchiveHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	if h.sink == nil {
		writeError(w, http.StatusServiceUnavailable, "transcript archive not configured")
		return
	}
	room := r.PathValue("room")
	a, b, ok := entity.SplitRoom(room)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return
	}
	msgs, err := h.store.MessagesByPair(r.Context(), a, b)
	if err != nil {
		log.Printf("handler: archive load: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	payload, err := json.Marshal(archive.Transcript{
		Room:       room,
		ExportedAt: time.Now().UTC(),
		Messages:   msgs,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode transcript")
		return
	}
	key, err := h.sink.Put(r.Context(), room, payload)
	if err != nil {
		log.Printf("handler: archive put: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store transcript")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "messages": len(msgs)})
}
