// Package bot runs the automated responder: when a message's receiver is
// the reserved bot identity, it signals typing, asks the provider for a
// reply after a short think delay, and injects the result through the
// same store+hub path as a human message.
package bot

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"chatpilot/internal/entity"
	"chatpilot/internal/hub"
	"chatpilot/internal/store"
)

// unavailableNotice is persisted when every credential fails; the bot
// must never silently drop a reply.
const unavailableNotice = "I'm currently processing your frequency. Standby for link calibration. (AI temporarily unavailable)"

// DefaultThinkDelay simulates think-time before the provider call.
const DefaultThinkDelay = 2 * time.Second

// Clock abstracts the think delay so tests run without real time.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// RealClock is the production clock.
type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Generator is the provider surface; *llm.Failover satisfies it.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Publisher is the router surface the responder needs.
type Publisher interface {
	Publish(event string, payload any, targets ...string)
}

// Responder reacts to messages addressed to the bot user. The bot
// identity is resolved lazily by its reserved email: the user record may
// not exist until the demo bootstrap runs, and never changes afterwards.
type Responder struct {
	Store    store.Store
	Hub      Publisher
	LLM      Generator
	BotEmail string
	Clock    Clock
	Delay    time.Duration

	// OnComplete, when set, observes the persisted bot message (or the
	// failure) after the detached work finishes. Tests hook this.
	OnComplete func(entity.Message, error)

	botID atomic.Value // string, cached once found
}

func New(st store.Store, h Publisher, gen Generator, botEmail string) *Responder {
	return &Responder{
		Store:    st,
		Hub:      h,
		LLM:      gen,
		BotEmail: botEmail,
		Clock:    RealClock{},
		Delay:    DefaultThinkDelay,
	}
}

func (r *Responder) resolveBotID(ctx context.Context) string {
	if id, ok := r.botID.Load().(string); ok && id != "" {
		return id
	}
	u, err := r.Store.UserByEmail(ctx, r.BotEmail)
	if err != nil {
		return ""
	}
	r.botID.Store(u.ID)
	return u.ID
}

// Maybe inspects a freshly persisted message and, when it is addressed
// to the bot, emits the typing signal and schedules the reply. The reply
// itself runs detached; Maybe returns immediately after the signal.
func (r *Responder) Maybe(msg entity.Message) bool {
	botID := r.resolveBotID(context.Background())
	if botID == "" || msg.ReceiverID != botID {
		return false
	}
	room := entity.RoomID(msg.SenderID, msg.ReceiverID)
	log.Printf("bot: thinking about message %s", msg.ID)
	r.Hub.Publish(hub.EventBotTyping, hub.TypingPayload{Room: room, SenderID: botID}, room, msg.SenderID)

	go r.reply(msg, room, botID)
	return true
}

func (r *Responder) reply(trigger entity.Message, room, botID string) {
	<-r.Clock.After(r.Delay)

	// The triggering request is long gone; the reply runs on its own
	// context.
	ctx := context.Background()

	content := unavailableNotice
	text, err := r.LLM.GenerateText(ctx, personaPrompt(trigger.Content))
	if err != nil {
		log.Printf("bot: generation failed: %v", err)
	} else if text != "" {
		content = text
	}

	r.Hub.Publish(hub.EventBotStopTyping, hub.TypingPayload{Room: room, SenderID: botID}, room, trigger.SenderID)

	msg, err := r.Store.AppendMessage(ctx, entity.Message{
		SenderID:      botID,
		ReceiverID:    trigger.SenderID,
		Content:       content,
		IsAIGenerated: true,
	})
	if err != nil {
		log.Printf("bot: persisting reply failed: %v", err)
		r.complete(entity.Message{}, err)
		return
	}

	conv, err := r.Store.GetOrCreateConversation(ctx, msg.SenderID, msg.ReceiverID, trigger.SenderID)
	if err == nil {
		err = r.Store.TouchLastMessage(ctx, conv.ID, msg.Snapshot())
	}
	if err != nil {
		log.Printf("bot: updating conversation failed: %v", err)
	}

	r.Hub.Publish(hub.EventReceiveMessage, msg, room, trigger.SenderID)
	r.complete(msg, nil)
}

func (r *Responder) complete(msg entity.Message, err error) {
	if r.OnComplete != nil {
		r.OnComplete(msg, err)
	}
}

func personaPrompt(content string) string {
	return fmt.Sprintf(`You are "Pilot Bot", a helpful AI assistant in the ChatPilot app.
User just said: %q

Reply normally as a helpful assistant. Keep it concise (under 2 sentences).`, content)
}
