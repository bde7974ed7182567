package model

const (
	UsersTable         = "Users"
	ConversationsTable = "Conversations"
	MessagesTable      = "Messages"
)

const (
	UsersByEmailIndex            = "byEmail"
	ConversationsByCustomerIndex = "byCustomer"
	ConversationsByScopeIndex    = "byScope"
)

// ConversationScopeAll is the partition value of the byScope index, which lets
// agents list every conversation newest first.
const ConversationScopeAll = "support"

type UserItem struct {
	UserID       string     `dynamodbav:"userId"`
	Email        string     `dynamodbav:"email"`
	Name         string     `dynamodbav:"name"`
	Role         SenderRole `dynamodbav:"role"`
	Status       string     `dynamodbav:"status"`
	PasswordHash string     `dynamodbav:"passwordHash"`
	CreatedAt    string     `dynamodbav:"createdAt"`
}
