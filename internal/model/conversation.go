package model

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

type ConversationStatus string

const (
	ConversationStatusOpen   ConversationStatus = "open"
	ConversationStatusActive ConversationStatus = "active"
	ConversationStatusClosed ConversationStatus = "closed"
)

var ErrInvalidTransition = errors.New("conversation status: invalid transition")

func (s ConversationStatus) rank() int {
	switch s {
	case ConversationStatusOpen:
		return 1
	case ConversationStatusActive:
		return 2
	case ConversationStatusClosed:
		return 3
	default:
		return 0
	}
}

func (s ConversationStatus) Valid() bool {
	return s.rank() > 0
}

// CanTransition reports whether s may move to next. Statuses only move forward
// along open -> active -> closed; staying put is allowed, closed is terminal.
func (s ConversationStatus) CanTransition(next ConversationStatus) bool {
	if !next.Valid() {
		return false
	}
	if !s.Valid() {
		return true
	}
	if s == ConversationStatusClosed {
		return next == ConversationStatusClosed
	}
	return next.rank() >= s.rank()
}

// Advance returns the status after applying next, or ErrInvalidTransition.
func (s ConversationStatus) Advance(next ConversationStatus) (ConversationStatus, error) {
	if !s.CanTransition(next) {
		return s, errors.WithMessagef(ErrInvalidTransition, "%s -> %s", s, next)
	}
	return next, nil
}

// Later returns whichever of a and b is further along the lifecycle.
func Later(a, b ConversationStatus) ConversationStatus {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

type SenderRole string

const (
	RoleCustomer SenderRole = "customer"
	RoleAgent    SenderRole = "agent"
)

func (r SenderRole) Valid() bool {
	return r == RoleCustomer || r == RoleAgent
}

func (r SenderRole) Opposite() SenderRole {
	if r == RoleAgent {
		return RoleCustomer
	}
	return RoleAgent
}

func ConversationPK(conversationID string) string {
	return conversationID
}

// TimestampLayout has a fixed width so stored timestamps order
// lexicographically.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// MessageSK orders messages inside a conversation by creation time.
func MessageSK(createdAt time.Time, messageID string) string {
	return fmt.Sprintf("%s#%s", Timestamp(createdAt), messageID)
}

type ConversationItem struct {
	PK             string             `dynamodbav:"pk"`
	ConversationID string             `dynamodbav:"conversationId"`
	Subject        string             `dynamodbav:"subject"`
	CustomerID     string             `dynamodbav:"customerId"`
	CustomerName   string             `dynamodbav:"customerName,omitempty"`
	CustomerEmail  string             `dynamodbav:"customerEmail,omitempty"`
	AgentID        string             `dynamodbav:"agentId,omitempty"`
	Status         ConversationStatus `dynamodbav:"status"`
	Scope          string             `dynamodbav:"scope"`
	CreatedAt      string             `dynamodbav:"createdAt"`
	UpdatedAt      string             `dynamodbav:"updatedAt"`
	LastMessageAt  string             `dynamodbav:"lastMessageAt"`
	ClosedAt       string             `dynamodbav:"closedAt,omitempty"`
	ClosedBy       string             `dynamodbav:"closedBy,omitempty"`
}

type MessageItem struct {
	ConversationID string     `dynamodbav:"conversationId"`
	SK             string     `dynamodbav:"sk"`
	MessageID      string     `dynamodbav:"messageId"`
	SenderRole     SenderRole `dynamodbav:"senderRole"`
	SenderID       string     `dynamodbav:"senderId"`
	Content        string     `dynamodbav:"content"`
	CreatedAt      string     `dynamodbav:"createdAt"`
	IsRead         bool       `dynamodbav:"isRead"`
}
