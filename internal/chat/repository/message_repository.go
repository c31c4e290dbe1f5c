package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageCollection = "messages"

// pageSkip 第 page 頁之前的筆數, page 超出可表示範圍時 ok 為 false
func pageSkip(page, limit int) (skip int64, ok bool) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || int64(page-1) > math.MaxInt64/int64(limit) {
		return 0, false
	}
	return int64(page-1) * int64(limit), true
}

// MessageRepository definition message persistence
type MessageRepository interface {
	Insert(ctx context.Context, m *domain.Message) error
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	// FindByConversation page 1 is the newest page, each page is ordered by seq ascending
	FindByConversation(ctx context.Context, conversationID string, page, limit int) ([]*domain.Message, error)
	// MarkDelivered set delivered_at only when it is still null, reports whether it changed
	MarkDelivered(ctx context.Context, id string, at time.Time) (*domain.Message, bool, error)
	// MarkRead set read_at on every unread message addressed to readerID
	MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

type messageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository create mongo MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		coll: db.Collection(messageCollection),
	}
}

func (r *messageRepository) Insert(ctx context.Context, m *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, m)
	return err
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepository) FindByConversation(ctx context.Context, conversationID string, page, limit int) ([]*domain.Message, error) {
	skip, ok := pageSkip(page, limit)
	if !ok {
		return []*domain.Message{}, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	msgs := []*domain.Message{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("cursor All error: %w", err)
	}

	// 反轉為舊到新
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *messageRepository) MarkDelivered(ctx context.Context, id string, at time.Time) (*domain.Message, bool, error) {
	filter := bson.M{"_id": id, "delivered_at": nil}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m domain.Message
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"delivered_at": at}}, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// 已送達或不存在
		existing, err := r.FindByID(ctx, id)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return &m, true, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"recipient_id":    readerID,
		"read_at":         nil,
	}
	// read implies delivered, keep an existing delivered_at
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "read_at", Value: at},
			{Key: "delivered_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$delivered_at", at}}}},
		}}},
	}

	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *messageRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	return err
}
