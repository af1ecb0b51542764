package state

import (
	"errors"
	"strings"
	"time"
)

// MaxTurns bounds how much history a conversation keeps.
const MaxTurns = 10

type Role string

const (
	RoleRequester Role = "requester"
	RoleAgent     Role = "agent"
)

// Conversation is the short rolling history handed to the intent extractor
// so follow-up mails ("renew it too") can be resolved.
type Conversation struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Turns     []Turn    `json:"turns,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

var (
	ErrNilConversation = errors.New("conversation is nil")
	ErrInvalidSender   = errors.New("conversation sender is empty")
	ErrTooManyTurns    = errors.New("conversation holds too many turns")
	ErrUnknownTurnRole = errors.New("turn role is unknown")
)

func NewConversation(id, sender string, now time.Time) *Conversation {
	return &Conversation{
		ID:        strings.TrimSpace(id),
		Sender:    strings.ToLower(strings.TrimSpace(sender)),
		Turns:     make([]Turn, 0, 4),
		UpdatedAt: now.UTC(),
	}
}

// Append records a turn and drops the oldest ones past MaxTurns.
func (c *Conversation) Append(role Role, text string, now time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	c.Turns = append(c.Turns, Turn{Role: role, Text: text, At: now.UTC()})
	if over := len(c.Turns) - MaxTurns; over > 0 {
		c.Turns = append(c.Turns[:0:0], c.Turns[over:]...)
	}
	c.UpdatedAt = now.UTC()
}

// Recent returns at most n of the newest turns, oldest first.
func (c *Conversation) Recent(n int) []Turn {
	if c == nil || n <= 0 || len(c.Turns) == 0 {
		return nil
	}
	if n >= len(c.Turns) {
		return c.Turns
	}
	return c.Turns[len(c.Turns)-n:]
}

func (c *Conversation) Validate() error {
	if c == nil {
		return ErrNilConversation
	}
	if strings.TrimSpace(c.ID) == "" {
		return ErrInvalidConversation
	}
	if strings.TrimSpace(c.Sender) == "" {
		return ErrInvalidSender
	}
	if len(c.Turns) > MaxTurns {
		return ErrTooManyTurns
	}
	for _, t := range c.Turns {
		if t.Role != RoleRequester && t.Role != RoleAgent {
			return ErrUnknownTurnRole
		}
	}
	return nil
}
