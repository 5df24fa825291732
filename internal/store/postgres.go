package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"chatpilot/internal/entity"
	"chatpilot/internal/util/cryptutil"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    user_id       TEXT PRIMARY KEY,
    username      TEXT NOT NULL,
    email         TEXT NOT NULL,
    phone_number  TEXT NOT NULL,
    password_hash TEXT NOT NULL DEFAULT '',
    CONSTRAINT users_email_key UNIQUE (email),
    CONSTRAINT users_phone_key UNIQUE (phone_number)
);
CREATE TABLE IF NOT EXISTS conversations (
    conversation_id TEXT PRIMARY KEY,
    pair_key        TEXT NOT NULL,
    participant_a   TEXT NOT NULL,
    participant_b   TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'pending',
    initiated_by    TEXT NOT NULL,
    last_sender     TEXT,
    last_content    TEXT,
    last_timestamp  TIMESTAMPTZ,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT conversations_pair_key UNIQUE (pair_key)
);
CREATE TABLE IF NOT EXISTS messages (
    seq             BIGSERIAL PRIMARY KEY,
    message_id      TEXT NOT NULL UNIQUE,
    pair_key        TEXT NOT NULL,
    sender_id       TEXT NOT NULL,
    receiver_id     TEXT NOT NULL,
    content         TEXT NOT NULL,
    ts              TIMESTAMPTZ NOT NULL,
    is_ai_generated BOOLEAN NOT NULL DEFAULT FALSE,
    status          TEXT NOT NULL DEFAULT 'sent'
);
CREATE INDEX IF NOT EXISTS messages_pair_ts ON messages (pair_key, ts, seq);
`

// Postgres persists through database/sql over the pgx stdlib driver.
// User profiles sit behind a small LRU because the conversation list
// resolves a peer profile per row.
type Postgres struct {
	db       *sql.DB
	box      *cryptutil.Box
	botEmail string

	schemaOnce sync.Once
	schemaErr  error

	userCache *lru.Cache[string, entity.User]
}

// NewPostgres opens and pings dsn.
func NewPostgres(dsn string, box *cryptutil.Box, botEmail string) (*Postgres, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, entity.User](1024)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db, box: box, botEmail: botEmail, userCache: cache}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) ensureSchema(ctx context.Context) error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.ExecContext(ctx, schemaSQL)
	})
	return p.schemaErr
}

func (p *Postgres) AppendMessage(ctx context.Context, msg entity.Message) (entity.Message, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return entity.Message{}, err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Status == "" {
		msg.Status = entity.MessageSent
	}
	msg.Room = entity.RoomID(msg.SenderID, msg.ReceiverID)

	conv, err := p.ConversationByPair(ctx, msg.SenderID, msg.ReceiverID)
	if err == nil {
		if err := writePolicy(conv, msg.SenderID, p.botID(ctx)); err != nil {
			return entity.Message{}, err
		}
	} else if !errors.Is(err, ErrNotFound) {
		return entity.Message{}, err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, pair_key, sender_id, receiver_id, content, ts, is_ai_generated, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, entity.PairKey(msg.SenderID, msg.ReceiverID), msg.SenderID, msg.ReceiverID,
		p.box.Encrypt(msg.Content), msg.Timestamp, msg.IsAIGenerated, string(msg.Status),
	)
	if err != nil {
		return entity.Message{}, err
	}
	return msg, nil
}

func (p *Postgres) MessagesByPair(ctx context.Context, a, b string) ([]entity.Message, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT message_id, sender_id, receiver_id, content, ts, is_ai_generated, status
		FROM messages WHERE pair_key = $1 ORDER BY ts, seq`,
		entity.PairKey(a, b),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Message
	for rows.Next() {
		var m entity.Message
		var status string
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Timestamp, &m.IsAIGenerated, &status); err != nil {
			return nil, err
		}
		m.Status = entity.MessageStatus(status)
		m.Room = entity.RoomID(m.SenderID, m.ReceiverID)
		m.Content = p.box.Decrypt(m.Content)
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetOrCreateConversation relies on the pair_key unique constraint:
// INSERT ... ON CONFLICT DO NOTHING then reselect, so concurrent first
// messages from both directions converge on one row.
func (p *Postgres) GetOrCreateConversation(ctx context.Context, a, b, initiator string) (entity.Conversation, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return entity.Conversation{}, err
	}
	key := entity.PairKey(a, b)
	pa, pb, _ := entity.SplitRoom(key)
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO conversations (conversation_id, pair_key, participant_a, participant_b, status, initiated_by, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, now())
		ON CONFLICT (pair_key) DO NOTHING`,
		uuid.NewString(), key, pa, pb, initiator,
	)
	if err != nil {
		return entity.Conversation{}, err
	}
	return p.ConversationByPair(ctx, a, b)
}

const convColumns = `conversation_id, participant_a, participant_b, status, initiated_by,
	last_sender, last_content, last_timestamp, updated_at`

func (p *Postgres) ConversationByPair(ctx context.Context, a, b string) (entity.Conversation, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return entity.Conversation{}, err
	}
	row := p.db.QueryRowContext(ctx,
		`SELECT `+convColumns+` FROM conversations WHERE pair_key = $1`,
		entity.PairKey(a, b),
	)
	return p.scanConversation(row)
}

func (p *Postgres) ConversationByID(ctx context.Context, id string) (entity.Conversation, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return entity.Conversation{}, err
	}
	row := p.db.QueryRowContext(ctx,
		`SELECT `+convColumns+` FROM conversations WHERE conversation_id = $1`, id)
	return p.scanConversation(row)
}

type rowScanner interface{ Scan(dest ...any) error }

func (p *Postgres) scanConversation(row rowScanner) (entity.Conversation, error) {
	var c entity.Conversation
	var status string
	var lastSender, lastContent sql.NullString
	var lastTS sql.NullTime
	err := row.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &status, &c.InitiatedBy,
		&lastSender, &lastContent, &lastTS, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Conversation{}, ErrNotFound
	}
	if err != nil {
		return entity.Conversation{}, err
	}
	c.Status = entity.ConversationStatus(status)
	if lastSender.Valid {
		c.LastMessage = &entity.MessageSnapshot{
			SenderID:  lastSender.String,
			Content:   p.box.Decrypt(lastContent.String),
			Timestamp: lastTS.Time,
		}
	}
	return c, nil
}

func (p *Postgres) TouchLastMessage(ctx context.Context, conversationID string, snap entity.MessageSnapshot) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE conversations
		SET last_sender = $2, last_content = $3, last_timestamp = $4, updated_at = now()
		WHERE conversation_id = $1`,
		conversationID, snap.SenderID, p.box.Encrypt(snap.Content), snap.Timestamp,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SetConversationStatus(ctx context.Context, conversationID string, status entity.ConversationStatus) (entity.Conversation, error) {
	conv, err := p.ConversationByID(ctx, conversationID)
	if err != nil {
		return entity.Conversation{}, err
	}
	if !conv.Status.CanTransition(status) {
		return entity.Conversation{}, ErrIllegalTransition
	}
	// Guard the transition in SQL as well so two racing updates cannot
	// both move the row.
	res, err := p.db.ExecContext(ctx, `
		UPDATE conversations SET status = $2, updated_at = now()
		WHERE conversation_id = $1 AND status = $3`,
		conversationID, string(status), string(conv.Status),
	)
	if err != nil {
		return entity.Conversation{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.Conversation{}, ErrIllegalTransition
	}
	return p.ConversationByID(ctx, conversationID)
}

func (p *Postgres) ConversationsForUser(ctx context.Context, userID string) ([]entity.ContactSummary, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+convColumns+` FROM conversations
		 WHERE participant_a = $1 OR participant_b = $1
		 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.ContactSummary
	for rows.Next() {
		conv, err := p.scanConversation(rows)
		if err != nil {
			return nil, err
		}
		peer, err := p.UserByID(ctx, conv.Other(userID))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		out = append(out, entity.ContactSummary{
			User:           peer,
			ConversationID: conv.ID,
			Status:         conv.Status,
			LastMessage:    conv.LastMessage,
			UpdatedAt:      conv.UpdatedAt,
		})
	}
	return out, rows.Err()
}

func (p *Postgres) CreateUser(ctx context.Context, u entity.User, passwordHash string) (entity.User, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return entity.User{}, err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, email, phone_number, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		u.ID, u.Username, strings.ToLower(u.Email), u.PhoneNumber, passwordHash,
	)
	if err != nil {
		return entity.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.User{}, ErrDuplicate
	}
	return u, nil
}

func (p *Postgres) UserByID(ctx context.Context, id string) (entity.User, error) {
	if u, ok := p.userCache.Get(id); ok {
		return u, nil
	}
	u, err := p.userBy(ctx, `user_id = $1`, id)
	if err == nil {
		p.userCache.Add(id, u)
	}
	return u, err
}

func (p *Postgres) UserByEmail(ctx context.Context, email string) (entity.User, error) {
	return p.userBy(ctx, `email = $1`, strings.ToLower(email))
}

func (p *Postgres) UserByPhone(ctx context.Context, phone string) (entity.User, error) {
	return p.userBy(ctx, `phone_number = $1`, phone)
}

func (p *Postgres) userBy(ctx context.Context, where string, arg any) (entity.User, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return entity.User{}, err
	}
	var u entity.User
	err := p.db.QueryRowContext(ctx,
		`SELECT user_id, username, email, phone_number FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PhoneNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.User{}, ErrNotFound
	}
	if err != nil {
		return entity.User{}, err
	}
	return u, nil
}

func (p *Postgres) Users(ctx context.Context) ([]entity.User, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT user_id, username, email, phone_number FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []entity.User
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PhoneNumber); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *Postgres) botID(ctx context.Context) string {
	u, err := p.UserByEmail(ctx, p.botEmail)
	if err != nil {
		return ""
	}
	return u.ID
}
