package jwt

import "channah-support-chat/internal/model"

// Subject is the account an access token is issued for.
type Subject struct {
	UserID string
	Email  string
	Role   model.SenderRole
}

// Claims are the identifiers carried by an access token.
type Claims struct {
	UserID    string
	Email     string
	Role      model.SenderRole
	ExpiresAt int64
}
