package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"channah-support-chat/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const tableReadyTimeout = 2 * time.Minute

type keyDef struct {
	Hash  string
	Range string
}

type tableSpec struct {
	Name    string
	Key     keyDef
	Indexes map[string]keyDef
}

// chatTables describes the tables the repositories query. Every key
// attribute is a string.
var chatTables = []tableSpec{
	{
		Name: model.UsersTable,
		Key:  keyDef{Hash: "userId"},
		Indexes: map[string]keyDef{
			model.UsersByEmailIndex: {Hash: "email"},
		},
	},
	{
		Name: model.ConversationsTable,
		Key:  keyDef{Hash: "pk"},
		Indexes: map[string]keyDef{
			model.ConversationsByCustomerIndex: {Hash: "customerId", Range: "lastMessageAt"},
			model.ConversationsByScopeIndex:    {Hash: "scope", Range: "lastMessageAt"},
		},
	},
	{
		Name: model.MessagesTable,
		Key:  keyDef{Hash: "conversationId", Range: "sk"},
	},
}

func (c *DynamoDBClient) ListTables(ctx context.Context) ([]string, error) {
	var last *string
	var names []string

	for {
		out, err := c.svc.ListTables(ctx, &dynamodb.ListTablesInput{
			ExclusiveStartTableName: last,
			Limit:                   aws.Int32(100),
		})
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}

		names = append(names, out.TableNames...)
		if out.LastEvaluatedTableName == nil {
			break
		}
		last = out.LastEvaluatedTableName
	}

	return names, nil
}

// EnsureTables creates any missing chat table together with its indexes and
// waits until it is active. Existing tables are left untouched.
func (d *Database) EnsureTables(ctx context.Context) ([]string, error) {
	existing, err := d.Client.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	created := make([]string, 0)
	for _, spec := range chatTables {
		if present[spec.Name] {
			continue
		}
		if err := d.Client.createTable(ctx, spec); err != nil {
			return created, err
		}
		created = append(created, spec.Name)
	}
	return created, nil
}

func (c *DynamoDBClient) createTable(ctx context.Context, spec tableSpec) error {
	attrs := map[string]bool{}
	addAttrs := func(k keyDef) {
		attrs[k.Hash] = true
		if k.Range != "" {
			attrs[k.Range] = true
		}
	}
	addAttrs(spec.Key)

	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(spec.Name),
		KeySchema:   keySchema(spec.Key),
		BillingMode: types.BillingModePayPerRequest,
	}

	for name, key := range spec.Indexes {
		addAttrs(key)
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName:  aws.String(name),
			KeySchema:  keySchema(key),
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	for name := range attrs {
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: types.ScalarAttributeTypeS,
		})
	}

	if _, err := c.svc.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(c.svc)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(spec.Name)}, tableReadyTimeout); err != nil {
		return fmt.Errorf("wait for table %s: %w", spec.Name, err)
	}
	return nil
}

func keySchema(k keyDef) []types.KeySchemaElement {
	schema := []types.KeySchemaElement{
		{AttributeName: aws.String(k.Hash), KeyType: types.KeyTypeHash},
	}
	if k.Range != "" {
		schema = append(schema, types.KeySchemaElement{AttributeName: aws.String(k.Range), KeyType: types.KeyTypeRange})
	}
	return schema
}

var ErrTableNotFound = errors.New("table not found")

// TableStatus summarises one chat table as DynamoDB reports it.
type TableStatus struct {
	Name      string
	Exists    bool
	Status    string
	ItemCount int64
	Indexes   []string
}

func (c *DynamoDBClient) DescribeTable(ctx context.Context, table string) (*types.TableDescription, error) {
	out, err := c.svc.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("describe table %s: %w", table, ErrTableNotFound)
		}
		return nil, fmt.Errorf("describe table %s: %w", table, err)
	}
	return out.Table, nil
}

// TableStatuses describes every chat table, including the ones not created
// yet.
func (d *Database) TableStatuses(ctx context.Context) ([]TableStatus, error) {
	statuses := make([]TableStatus, 0, len(chatTables))
	for _, spec := range chatTables {
		desc, err := d.Client.DescribeTable(ctx, spec.Name)
		if errors.Is(err, ErrTableNotFound) {
			statuses = append(statuses, TableStatus{Name: spec.Name})
			continue
		}
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, tableStatus(spec.Name, desc))
	}
	return statuses, nil
}

func tableStatus(name string, desc *types.TableDescription) TableStatus {
	st := TableStatus{
		Name:   name,
		Exists: true,
		Status: string(desc.TableStatus),
	}
	if desc.ItemCount != nil {
		st.ItemCount = *desc.ItemCount
	}
	for _, gsi := range desc.GlobalSecondaryIndexes {
		st.Indexes = append(st.Indexes, aws.ToString(gsi.IndexName))
	}
	sort.Strings(st.Indexes)
	return st
}

// Ping checks that the users table is reachable.
func (d *Database) Ping(ctx context.Context) error {
	_, err := d.Client.DescribeTable(ctx, model.UsersTable)
	return err
}
