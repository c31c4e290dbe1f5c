package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertMessage(t *testing.T, convs ConversationRepository, msgs MessageRepository, conv *domain.Conversation, sender, content string) *domain.Message {
	t.Helper()
	ctx := context.Background()
	seq, err := convs.NextSeq(ctx, conv.ID)
	require.NoError(t, err)

	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       sender,
		RecipientID:    conv.Counterpart(sender),
		Content:        content,
		Seq:            seq,
		CreatedAt:      domain.Now(),
	}
	require.NoError(t, msgs.Insert(ctx, m))
	require.NoError(t, convs.RecordMessage(ctx, m))
	return m
}

func TestMemoryConversation_FindOrCreateDirectIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryConversationRepository()

	c1, created, err := repo.FindOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, created)

	c2, created, err := repo.FindOrCreateDirect(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c1.ID, c2.ID)

	list, err := repo.ListByParticipant(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryConversation_UnknownID(t *testing.T) {
	repo := NewMemoryConversationRepository()
	_, err := repo.FindByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.NextSeq(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	assert.True(t, errors.Is(repo.Delete(context.Background(), "missing"), domain.ErrNotFound))
}

func TestMemory_UnreadAndMarkRead(t *testing.T) {
	ctx := context.Background()
	convs := NewMemoryConversationRepository()
	msgs := NewMemoryMessageRepository()
	conv, _, _ := convs.FindOrCreateDirect(ctx, "alice", "bob")

	insertMessage(t, convs, msgs, conv, "alice", "hi")
	insertMessage(t, convs, msgs, conv, "alice", "are you there")
	insertMessage(t, convs, msgs, conv, "bob", "yes")

	got, _ := convs.FindByID(ctx, conv.ID)
	assert.Equal(t, 2, got.UnreadFor("bob"))
	assert.Equal(t, 1, got.UnreadFor("alice"))
	assert.Equal(t, "yes", got.LastMessage.Content)

	n, err := msgs.MarkRead(ctx, conv.ID, "bob", domain.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, convs.ResetUnread(ctx, conv.ID, "bob"))

	got, _ = convs.FindByID(ctx, conv.ID)
	assert.Equal(t, 0, got.UnreadFor("bob"))
	assert.Equal(t, 1, got.UnreadFor("alice"), "other participant untouched")

	// 重複呼叫不會再變動
	n, err = msgs.MarkRead(ctx, conv.ID, "bob", domain.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	page, _ := msgs.FindByConversation(ctx, conv.ID, 1, 50)
	for _, m := range page {
		if m.RecipientID == "bob" {
			assert.NotNil(t, m.ReadAt)
			assert.NotNil(t, m.DeliveredAt)
		} else {
			assert.Nil(t, m.ReadAt)
		}
	}
}

func recordOutOfOrder(t *testing.T, convs ConversationRepository, conv *domain.Conversation) {
	t.Helper()
	ctx := context.Background()
	older := &domain.Message{ID: uuid.NewString(), ConversationID: conv.ID, SenderID: "alice",
		RecipientID: "bob", Content: "first", Seq: 1, CreatedAt: domain.Now()}
	newer := &domain.Message{ID: uuid.NewString(), ConversationID: conv.ID, SenderID: "alice",
		RecipientID: "bob", Content: "second", Seq: 2, CreatedAt: older.CreatedAt.Add(time.Millisecond)}

	// seq 2 先完成, seq 1 較晚寫入
	require.NoError(t, convs.RecordMessage(ctx, newer))
	require.NoError(t, convs.RecordMessage(ctx, older))

	got, err := convs.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, newer.ID, got.LastMessage.ID)
	assert.Equal(t, int64(2), got.LastMessage.Seq)
	assert.Equal(t, 2, got.UnreadFor("bob"), "unread counts both")
}

func TestMemory_RecordMessageKeepsNewestLast(t *testing.T) {
	convs := NewMemoryConversationRepository()
	conv, _, _ := convs.FindOrCreateDirect(context.Background(), "alice", "bob")
	recordOutOfOrder(t, convs, conv)
}

func TestMemory_MarkDeliveredIdempotent(t *testing.T) {
	ctx := context.Background()
	convs := NewMemoryConversationRepository()
	msgs := NewMemoryMessageRepository()
	conv, _, _ := convs.FindOrCreateDirect(ctx, "alice", "bob")
	m := insertMessage(t, convs, msgs, conv, "alice", "hi")

	t0 := domain.Now()
	first, changed, err := msgs.MarkDelivered(ctx, m.ID, t0)
	require.NoError(t, err)
	assert.True(t, changed)

	second, changed, err := msgs.MarkDelivered(ctx, m.ID, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, *first.DeliveredAt, *second.DeliveredAt)

	_, _, err = msgs.MarkDelivered(ctx, "missing", t0)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMemory_MarkReadKeepsDeliveredAt(t *testing.T) {
	ctx := context.Background()
	convs := NewMemoryConversationRepository()
	msgs := NewMemoryMessageRepository()
	conv, _, _ := convs.FindOrCreateDirect(ctx, "alice", "bob")
	m := insertMessage(t, convs, msgs, conv, "alice", "hi")

	t0 := domain.Now()
	_, _, _ = msgs.MarkDelivered(ctx, m.ID, t0)
	_, _ = msgs.MarkRead(ctx, conv.ID, "bob", t0.Add(time.Minute))

	got, _ := msgs.FindByID(ctx, m.ID)
	assert.Equal(t, t0, *got.DeliveredAt)
	assert.Equal(t, t0.Add(time.Minute), *got.ReadAt)
}

func TestMemory_FindByConversationPaging(t *testing.T) {
	ctx := context.Background()
	convs := NewMemoryConversationRepository()
	msgs := NewMemoryMessageRepository()
	conv, _, _ := convs.FindOrCreateDirect(ctx, "alice", "bob")
	for i := 0; i < 5; i++ {
		insertMessage(t, convs, msgs, conv, "alice", "m")
	}

	page1, _ := msgs.FindByConversation(ctx, conv.ID, 1, 2)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(4), page1[0].Seq)
	assert.Equal(t, int64(5), page1[1].Seq)

	page3, _ := msgs.FindByConversation(ctx, conv.ID, 3, 2)
	require.Len(t, page3, 1)
	assert.Equal(t, int64(1), page3[0].Seq)

	page4, _ := msgs.FindByConversation(ctx, conv.ID, 4, 2)
	assert.Empty(t, page4)

	// 乘積溢位的頁碼回傳空頁
	for _, page := range []int{1<<62 + 1, math.MaxInt} {
		var out []*domain.Message
		var err error
		assert.NotPanics(t, func() {
			out, err = msgs.FindByConversation(ctx, conv.ID, page, 3)
		})
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func TestPageSkip(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		skip        int64
		ok          bool
	}{
		{"first page", 1, 50, 0, true},
		{"zero page is first", 0, 50, 0, true},
		{"third page", 3, 20, 40, true},
		{"overflow", math.MaxInt, 50, 0, false},
		{"zero limit", 2, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skip, ok := pageSkip(tt.page, tt.limit)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.skip, skip)
		})
	}
}

func TestMemory_DeleteCascade(t *testing.T) {
	ctx := context.Background()
	convs := NewMemoryConversationRepository()
	msgs := NewMemoryMessageRepository()
	conv, _, _ := convs.FindOrCreateDirect(ctx, "alice", "bob")
	m := insertMessage(t, convs, msgs, conv, "alice", "hi")

	require.NoError(t, convs.Delete(ctx, conv.ID))
	require.NoError(t, msgs.DeleteByConversation(ctx, conv.ID))

	_, err := msgs.FindByID(ctx, m.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	again, created, _ := convs.FindOrCreateDirect(ctx, "alice", "bob")
	assert.True(t, created)
	assert.NotEqual(t, conv.ID, again.ID)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	convs := NewMemoryConversationRepository()
	msgs := NewMemoryMessageRepository()
	conv, _, _ := convs.FindOrCreateDirect(ctx, "alice", "bob")
	m := insertMessage(t, convs, msgs, conv, "alice", "hi")

	got, _ := msgs.FindByID(ctx, m.ID)
	got.MarkRead(domain.Now())

	again, _ := msgs.FindByID(ctx, m.ID)
	assert.Nil(t, again.ReadAt)
}
