package handler

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"chatpilot/internal/entity"
	"chatpilot/internal/store"
)

// AuthHandler covers the registration/auth boundary the core consumes:
// the demo-session bootstrap plus user lookups. Full credential flows
// live outside this service.
type AuthHandler struct {
	store    store.Store
	botEmail string
}

func NewAuthHandler(st store.Store, botEmail string) *AuthHandler {
	return &AuthHandler{store: st, botEmail: botEmail}
}

const welcomeMessage = "Welcome to ChatPilot! I'm your AI assistant. How can I help you?"

// HandleDemo bootstraps a demo session: the bot identity (created once),
// a fresh guest user, and an already-accepted welcome conversation
// between the two. Returns the guest profile.
func (h *AuthHandler) HandleDemo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bot, err := h.store.UserByEmail(ctx, h.botEmail)
	if errors.Is(err, store.ErrNotFound) {
		bot, err = h.store.CreateUser(ctx, entity.User{
			Username:    "Pilot Bot",
			Email:       h.botEmail,
			PhoneNumber: "0000000000",
		}, hashPassword("bot_password_secure"))
	}
	if err != nil {
		log.Printf("handler: demo bot bootstrap: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create demo session")
		return
	}

	n := rand.Intn(10000)
	guest, err := h.store.CreateUser(ctx, entity.User{
		Username:    fmt.Sprintf("Guest Pilot %d", n),
		Email:       fmt.Sprintf("guest%d@demo.com", n),
		PhoneNumber: fmt.Sprintf("99%08d", n),
	}, hashPassword("demo_password"))
	if err != nil {
		log.Printf("handler: demo guest bootstrap: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create demo session")
		return
	}

	conv, err := h.store.GetOrCreateConversation(ctx, guest.ID, bot.ID, bot.ID)
	if err == nil {
		_, err = h.store.SetConversationStatus(ctx, conv.ID, entity.StatusAccepted)
	}
	if err == nil {
		err = h.store.TouchLastMessage(ctx, conv.ID, entity.MessageSnapshot{
			SenderID:  bot.ID,
			Content:   welcomeMessage,
			Timestamp: time.Now(),
		})
	}
	if err != nil {
		log.Printf("handler: demo conversation bootstrap: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create demo session")
		return
	}

	writeJSON(w, http.StatusOK, guest)
}

// HandleUsers lists all public profiles.
func (h *AuthHandler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.Users(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load users")
		return
	}
	if users == nil {
		users = []entity.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleSearch finds a user by phone number.
func (h *AuthHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, "phone number required")
		return
	}
	user, err := h.store.UserByPhone(r.Context(), phone)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func hashPassword(pw string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return ""
	}
	return string(hash)
}
