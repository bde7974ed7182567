package dto

type Conversation struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	Subject       string   `json:"subject"`
	CustomerID    string   `json:"customer_id"`
	CustomerName  string   `json:"customer_name,omitempty"`
	CustomerEmail string   `json:"customer_email,omitempty"`
	AgentID       string   `json:"agent_id,omitempty"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
	UnreadCount   int      `json:"unread_count"`
	LastMessage   *Message `json:"last_message,omitempty"`
}

type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderRole     string `json:"sender_role"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
	IsRead         bool   `json:"is_read"`
}

type CreateConversationRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}
