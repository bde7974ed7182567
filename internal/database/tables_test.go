package database

import (
	"testing"

	"channah-support-chat/internal/model"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

func TestChatTablesCoverRepositoryIndexes(t *testing.T) {
	indexes := map[string]bool{}
	names := map[string]bool{}
	for _, spec := range chatTables {
		names[spec.Name] = true
		for name := range spec.Indexes {
			indexes[name] = true
		}
	}

	require.True(t, names[model.UsersTable])
	require.True(t, names[model.ConversationsTable])
	require.True(t, names[model.MessagesTable])
	require.True(t, indexes[model.UsersByEmailIndex])
	require.True(t, indexes[model.ConversationsByCustomerIndex])
	require.True(t, indexes[model.ConversationsByScopeIndex])
}

func TestKeySchema(t *testing.T) {
	schema := keySchema(keyDef{Hash: "conversationId", Range: "sk"})
	require.Len(t, schema, 2)
	require.Equal(t, types.KeyTypeHash, schema[0].KeyType)
	require.Equal(t, "sk", *schema[1].AttributeName)

	require.Len(t, keySchema(keyDef{Hash: "userId"}), 1)
}

func TestTableStatusFromDescription(t *testing.T) {
	count := int64(42)
	name := "byScope"
	other := "byCustomer"
	st := tableStatus(model.ConversationsTable, &types.TableDescription{
		TableStatus: types.TableStatusActive,
		ItemCount:   &count,
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndexDescription{
			{IndexName: &name},
			{IndexName: &other},
		},
	})

	require.True(t, st.Exists)
	require.Equal(t, "ACTIVE", st.Status)
	require.Equal(t, int64(42), st.ItemCount)
	require.Equal(t, []string{"byCustomer", "byScope"}, st.Indexes)
}
