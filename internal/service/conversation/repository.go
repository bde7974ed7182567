package conversation

import (
	"context"
	"errors"
	"sort"

	"channah-support-chat/internal/database"
	"channah-support-chat/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound      = errors.New("conversation repository: not found")
	ErrAlreadyClosed = errors.New("conversation repository: already closed")
)

type ActivityUpdate struct {
	UpdatedAt     string
	LastMessageAt string
	// Status and AgentID are written only when set.
	Status  model.ConversationStatus
	AgentID string
}

type Repository interface {
	GetUser(ctx context.Context, userID string) (model.UserItem, error)
	CreateConversation(ctx context.Context, conversation model.ConversationItem) error
	GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error)
	ListConversationsByCustomer(ctx context.Context, customerID string) ([]model.ConversationItem, error)
	ListAllConversations(ctx context.Context) ([]model.ConversationItem, error)
	UpdateConversationActivity(ctx context.Context, conversationID string, update ActivityUpdate) error
	CloseConversation(ctx context.Context, conversationID, closedAt, closedBy string) (model.ConversationItem, error)
	CreateMessage(ctx context.Context, message model.MessageItem) error
	ListMessages(ctx context.Context, conversationID string) ([]model.MessageItem, error)
	MarkMessagesRead(ctx context.Context, conversationID string, sortKeys []string) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func conversationKey(conversationID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": database.AttrString(model.ConversationPK(conversationID)),
	}
}

func (r *DynamoRepository) GetUser(ctx context.Context, userID string) (model.UserItem, error) {
	var user model.UserItem
	err := r.db.Client.GetItem(
		ctx,
		model.UsersTable,
		map[string]types.AttributeValue{
			"userId": database.AttrString(userID),
		},
		&user,
	)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return model.UserItem{}, ErrNotFound
		}
		return model.UserItem{}, err
	}
	return user, nil
}

func (r *DynamoRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	return r.db.Client.PutItemIfAbsent(ctx, model.ConversationsTable, "pk", conversation)
}

func (r *DynamoRepository) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	var conversation model.ConversationItem
	err := r.db.Client.GetItem(ctx, model.ConversationsTable, conversationKey(conversationID), &conversation)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return model.ConversationItem{}, ErrNotFound
		}
		return model.ConversationItem{}, err
	}
	return conversation, nil
}

func (r *DynamoRepository) ListConversationsByCustomer(ctx context.Context, customerID string) ([]model.ConversationItem, error) {
	return r.queryConversations(ctx, model.ConversationsByCustomerIndex, "customerId = :v", customerID)
}

func (r *DynamoRepository) ListAllConversations(ctx context.Context) ([]model.ConversationItem, error) {
	return r.queryConversations(ctx, model.ConversationsByScopeIndex, "#scope = :v", model.ConversationScopeAll)
}

func (r *DynamoRepository) queryConversations(ctx context.Context, index, keyCond, value string) ([]model.ConversationItem, error) {
	var names map[string]string
	if index == model.ConversationsByScopeIndex {
		names = map[string]string{"#scope": "scope"}
	}
	scanForward := false
	items, err := r.db.Client.QueryAll(
		ctx,
		model.ConversationsTable,
		aws.String(index),
		keyCond,
		map[string]types.AttributeValue{
			":v": database.AttrString(value),
		},
		names,
		&scanForward,
	)
	if err != nil {
		return nil, err
	}
	return database.UnmarshalItems[model.ConversationItem](items)
}

func (r *DynamoRepository) UpdateConversationActivity(ctx context.Context, conversationID string, update ActivityUpdate) error {
	updateExpr := "SET #updatedAt = :updatedAt, #lastMessageAt = :lastMessageAt"
	exprValues := map[string]types.AttributeValue{
		":updatedAt":     database.AttrString(update.UpdatedAt),
		":lastMessageAt": database.AttrString(update.LastMessageAt),
		":closed":        database.AttrString(string(model.ConversationStatusClosed)),
	}
	attrNames := map[string]string{
		"#updatedAt":     "updatedAt",
		"#lastMessageAt": "lastMessageAt",
		"#status":        "status",
	}

	if update.Status != "" {
		updateExpr += ", #status = :status"
		exprValues[":status"] = database.AttrString(string(update.Status))
	}
	if update.AgentID != "" {
		updateExpr += ", #agentId = :agentId"
		exprValues[":agentId"] = database.AttrString(update.AgentID)
		attrNames["#agentId"] = "agentId"
	}

	err := r.db.Client.UpdateItem(
		ctx,
		model.ConversationsTable,
		conversationKey(conversationID),
		updateExpr,
		"attribute_exists(pk) AND #status <> :closed",
		exprValues,
		attrNames,
		nil,
	)
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrAlreadyClosed
	}
	return err
}

func (r *DynamoRepository) CloseConversation(ctx context.Context, conversationID, closedAt, closedBy string) (model.ConversationItem, error) {
	var updated model.ConversationItem
	err := r.db.Client.UpdateItem(
		ctx,
		model.ConversationsTable,
		conversationKey(conversationID),
		"SET #status = :closed, #closedAt = :closedAt, #closedBy = :closedBy, #updatedAt = :closedAt",
		"attribute_exists(pk) AND #status <> :closed",
		map[string]types.AttributeValue{
			":closed":   database.AttrString(string(model.ConversationStatusClosed)),
			":closedAt": database.AttrString(closedAt),
			":closedBy": database.AttrString(closedBy),
		},
		map[string]string{
			"#status":    "status",
			"#closedAt":  "closedAt",
			"#closedBy":  "closedBy",
			"#updatedAt": "updatedAt",
		},
		&updated,
	)
	if errors.Is(err, database.ErrConditionFailed) {
		return model.ConversationItem{}, ErrAlreadyClosed
	}
	if err != nil {
		return model.ConversationItem{}, err
	}
	return updated, nil
}

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	return r.db.Client.PutItem(ctx, model.MessagesTable, message)
}

func (r *DynamoRepository) ListMessages(ctx context.Context, conversationID string) ([]model.MessageItem, error) {
	scanForward := true
	items, err := r.db.Client.QueryAll(
		ctx,
		model.MessagesTable,
		nil,
		"conversationId = :conversationId",
		map[string]types.AttributeValue{
			":conversationId": database.AttrString(conversationID),
		},
		nil,
		&scanForward,
	)
	if err != nil {
		return nil, err
	}

	messages, err := database.UnmarshalItems[model.MessageItem](items)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].SK < messages[j].SK
	})
	return messages, nil
}

func (r *DynamoRepository) MarkMessagesRead(ctx context.Context, conversationID string, sortKeys []string) error {
	for _, sk := range sortKeys {
		err := r.db.Client.UpdateItem(
			ctx,
			model.MessagesTable,
			map[string]types.AttributeValue{
				"conversationId": database.AttrString(conversationID),
				"sk":             database.AttrString(sk),
			},
			"SET #isRead = :true",
			"",
			map[string]types.AttributeValue{
				":true": &types.AttributeValueMemberBOOL{Value: true},
			},
			map[string]string{"#isRead": "isRead"},
			nil,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
