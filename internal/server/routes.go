package server

import (
	"net/http"

	"chatpilot/internal/server/handler"
	"chatpilot/internal/server/middleware"
)

func NewMux(
	chatHandler *handler.ChatHandler,
	aiHandler *handler.AIHandler,
	authHandler *handler.AuthHandler,
	archiveHandler *handler.ArchiveHandler,
	wsHandler *handler.WSHandler,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handler.HandleHealth)

	// Chat read/update surface
	mux.HandleFunc("GET /api/conversations/{userId}", chatHandler.HandleConversations)
	mux.HandleFunc("GET /api/messages/{room}", chatHandler.HandleMessages)
	mux.HandleFunc("GET /api/conversation/status/{id1}/{id2}", chatHandler.HandleConversationStatus)
	mux.HandleFunc("POST /api/conversation/update", chatHandler.HandleConversationUpdate)

	// AI surface
	mux.HandleFunc("POST /api/generate-suggestions", aiHandler.HandleSuggestions)
	mux.HandleFunc("POST /api/generate-draft", aiHandler.HandleDraft)

	// Demo bootstrap + user lookup boundary
	mux.HandleFunc("POST /api/auth/demo", authHandler.HandleDemo)
	mux.HandleFunc("GET /api/auth/users", authHandler.HandleUsers)
	mux.HandleFunc("GET /api/auth/search", authHandler.HandleSearch)

	// Transcript export
	mux.HandleFunc("POST /api/conversations/{room}/archive", archiveHandler.HandleArchive)

	// Real-time channel
	mux.HandleFunc("GET /ws", wsHandler.HandleWS)

	return middleware.CORS(mux)
}
