package auth

import (
	"context"
	"errors"

	"channah-support-chat/internal/database"
	"channah-support-chat/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound      = errors.New("auth repository: not found")
	ErrAlreadyExists = errors.New("auth repository: already exists")
)

type Repository interface {
	CreateUser(ctx context.Context, user model.UserItem) error
	FindUserByEmail(ctx context.Context, email string) (model.UserItem, error)
	GetUser(ctx context.Context, userID string) (model.UserItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

// CreateUser stores user. The byEmail index cannot enforce uniqueness, so the
// service checks FindUserByEmail first.
func (r *DynamoRepository) CreateUser(ctx context.Context, user model.UserItem) error {
	err := r.db.Client.PutItemIfAbsent(ctx, model.UsersTable, "userId", user)
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrAlreadyExists
	}
	return err
}

func (r *DynamoRepository) FindUserByEmail(ctx context.Context, email string) (model.UserItem, error) {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.UsersTable,
		aws.String(model.UsersByEmailIndex),
		"email = :email",
		map[string]types.AttributeValue{
			":email": database.AttrString(email),
		},
		nil,
		nil,
	)
	if err != nil {
		return model.UserItem{}, err
	}

	users, err := database.UnmarshalItems[model.UserItem](items)
	if err != nil {
		return model.UserItem{}, err
	}
	if len(users) == 0 {
		return model.UserItem{}, ErrNotFound
	}
	return users[0], nil
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
