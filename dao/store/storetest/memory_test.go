package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store"
)

func TestListChatMessagesKeepsNewest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	project, owner := uuid.New(), uuid.New()
	for i := range 5 {
		_, err := m.CreateChatMessage(ctx, &model.ChatMessage{
			ProjectID: project, SenderID: owner, Content: fmt.Sprintf("msg %d", i),
		})
		require.NoError(t, err)
	}

	msgs, err := m.ListChatMessages(ctx, store.ChatFilter{ProjectID: project, Limit: 3})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "msg 2", msgs[0].Content)
	assert.Equal(t, "msg 4", msgs[2].Content)
}

func TestListChatMessagesViewerFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	project, owner, member, other := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	for _, msg := range []*model.ChatMessage{
		{ProjectID: project, SenderID: owner, Content: "everyone"},
		{ProjectID: project, SenderID: owner, RecipientID: &member, Content: "to member"},
		{ProjectID: project, SenderID: other, RecipientID: &owner, Content: "private to owner"},
		{ProjectID: project, SenderID: member, RecipientID: &owner, Content: "from member"},
	} {
		_, err := m.CreateChatMessage(ctx, msg)
		require.NoError(t, err)
	}

	msgs, err := m.ListChatMessages(ctx, store.ChatFilter{ProjectID: project, ViewerID: &member})
	require.NoError(t, err)
	var contents []string
	for _, msg := range msgs {
		contents = append(contents, msg.Content)
	}
	assert.Equal(t, []string{"everyone", "to member", "from member"}, contents)

	all, err := m.ListChatMessages(ctx, store.ChatFilter{ProjectID: project})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
