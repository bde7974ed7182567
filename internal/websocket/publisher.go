package websocket

import (
	"context"

	"channah-support-chat/internal/dto"
	"channah-support-chat/internal/protocol"
	"channah-support-chat/pkg/logger"

	"go.uber.org/zap"
)

// Publisher turns conversation events into push frames.
type Publisher struct {
	hub *Hub
	log *logger.Logger
}

func NewPublisher(hub *Hub, log *logger.Logger) *Publisher {
	return &Publisher{hub: hub, log: logger.OrGlobal(log).Named("publisher")}
}

func (p *Publisher) MessageCreated(ctx context.Context, msg dto.Message) {
	frame, err := protocol.Encode(protocol.NewMessage{Message: msg})
	if err != nil {
		p.log.Error("encode new_message frame", zap.Error(err))
		return
	}
	if err := p.hub.Publish(ctx, msg.ConversationID, "", frame); err != nil {
		p.log.Warn("publish new_message failed", zap.String("conversation_id", msg.ConversationID), zap.Error(err))
	}
}

func (p *Publisher) ConversationClosed(ctx context.Context, conversationID string) {
	if err := p.hub.Publish(ctx, conversationID, "", protocol.MustEncode(protocol.ChatClosed{})); err != nil {
		p.log.Warn("publish chat_closed failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}
