package endpoints

import (
	"context"
	"fmt"
	"net/http"

	"channah-support-chat/internal/api/middleware"
	"channah-support-chat/internal/dto"
	"channah-support-chat/internal/model"
	conversationservice "channah-support-chat/internal/service/conversation"

	"github.com/go-chi/chi/v5"
)

type ConversationEndpoints interface {
	ListConversations(http.ResponseWriter, *http.Request) error
	CreateConversation(http.ResponseWriter, *http.Request) error
	ListMessages(http.ResponseWriter, *http.Request) error
	PostMessage(http.ResponseWriter, *http.Request) error
	CloseConversation(http.ResponseWriter, *http.Request) error
}

// Notifier pushes conversation events to connected participants.
type Notifier interface {
	MessageCreated(ctx context.Context, msg dto.Message)
	ConversationClosed(ctx context.Context, conversationID string)
}

type conversationEndpoints struct {
	service  *conversationservice.Service
	notifier Notifier
}

func NewConversationEndpoints(service *conversationservice.Service, notifier Notifier) ConversationEndpoints {
	return &conversationEndpoints{
		service:  service,
		notifier: notifier,
	}
}

func (h *conversationEndpoints) ListConversations(w http.ResponseWriter, r *http.Request) error {
	identity, err := conversationIdentity(r)
	if err != nil {
		return err
	}

	summaries, err := h.service.ListConversations(r.Context(), identity)
	if err != nil {
		return conversationServiceError(err)
	}

	resp := make([]dto.Conversation, len(summaries))
	for i, summary := range summaries {
		conv := toConversation(summary.Conversation)
		conv.UnreadCount = summary.UnreadCount
		if summary.LastMessage != nil {
			last := toMessage(*summary.LastMessage)
			conv.LastMessage = &last
		}
		resp[i] = conv
	}
	return WriteJSON(w, http.StatusOK, resp)
}

func (h *conversationEndpoints) CreateConversation(w http.ResponseWriter, r *http.Request) error {
	identity, err := conversationIdentity(r)
	if err != nil {
		return err
	}

	var req dto.CreateConversationRequest
	if err := decodeJSON(w, r, "create conversation", &req); err != nil {
		return err
	}

	result, err := h.service.CreateConversation(r.Context(), identity, conversationservice.CreateConversationParams{
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		return conversationServiceError(err)
	}

	conv := toConversation(result.Conversation)
	last := toMessage(result.Message)
	conv.LastMessage = &last
	return WriteJSON(w, http.StatusCreated, conv)
}

func (h *conversationEndpoints) ListMessages(w http.ResponseWriter, r *http.Request) error {
	identity, err := conversationIdentity(r)
	if err != nil {
		return err
	}

	result, err := h.service.ListMessages(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		return conversationServiceError(err)
	}

	resp := make([]dto.Message, len(result.Messages))
	for i, msg := range result.Messages {
		resp[i] = toMessage(msg)
	}
	return WriteJSON(w, http.StatusOK, resp)
}

func (h *conversationEndpoints) PostMessage(w http.ResponseWriter, r *http.Request) error {
	identity, err := conversationIdentity(r)
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := decodeJSON(w, r, "send message", &req); err != nil {
		return err
	}

	result, err := h.service.PostMessage(r.Context(), identity, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		return conversationServiceError(err)
	}

	msg := toMessage(result.Message)
	h.notifier.MessageCreated(r.Context(), msg)
	return WriteJSON(w, http.StatusCreated, msg)
}

func (h *conversationEndpoints) CloseConversation(w http.ResponseWriter, r *http.Request) error {
	identity, err := conversationIdentity(r)
	if err != nil {
		return err
	}

	conversation, err := h.service.CloseConversation(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		return conversationServiceError(err)
	}

	h.notifier.ConversationClosed(r.Context(), conversation.ConversationID)
	return WriteJSON(w, http.StatusOK, toConversation(conversation))
}

func conversationIdentity(r *http.Request) (conversationservice.Identity, error) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return conversationservice.Identity{}, errUnauthenticated
	}
	return conversationservice.Identity{
		UserID: identity.UserID,
		Email:  identity.Email,
		Role:   identity.Role,
	}, nil
}

func conversationServiceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*conversationservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			Err:        fmt.Errorf("conversation service: %w", err),
		}
	}

	var cause error
	if svcErr.Err != nil {
		cause = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		cause = svcErr
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	switch svcErr.Code {
	case conversationservice.ErrorCodeValidation:
		status, message = http.StatusBadRequest, svcErr.Message
	case conversationservice.ErrorCodeUnauthorized:
		status, message = http.StatusUnauthorized, svcErr.Message
	case conversationservice.ErrorCodeForbidden:
		status, message = http.StatusForbidden, svcErr.Message
	case conversationservice.ErrorCodeNotFound:
		status, message = http.StatusNotFound, svcErr.Message
	case conversationservice.ErrorCodeConflict:
		status, message = http.StatusConflict, svcErr.Message
	}

	return &HTTPError{StatusCode: status, Message: message, Err: cause}
}

func toConversation(item model.ConversationItem) dto.Conversation {
	return dto.Conversation{
		ID:            item.ConversationID,
		Status:        string(item.Status),
		Subject:       item.Subject,
		CustomerID:    item.CustomerID,
		CustomerName:  item.CustomerName,
		CustomerEmail: item.CustomerEmail,
		AgentID:       item.AgentID,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
}

func toMessage(item model.MessageItem) dto.Message {
	return dto.Message{
		ID:             item.MessageID,
		ConversationID: item.ConversationID,
		SenderRole:     string(item.SenderRole),
		SenderID:       item.SenderID,
		Content:        item.Content,
		CreatedAt:      item.CreatedAt,
		IsRead:         item.IsRead,
	}
}
