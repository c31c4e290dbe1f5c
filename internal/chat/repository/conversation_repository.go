package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const conversationCollection = "conversations"

// ConversationRepository definition conversation persistence
type ConversationRepository interface {
	// FindOrCreateDirect 同一組參與者只會有一個對話
	FindOrCreateDirect(ctx context.Context, userA, userB string) (*domain.Conversation, bool, error)
	FindByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]*domain.Conversation, error)
	// NextSeq atomically reserve the next message sequence number
	NextSeq(ctx context.Context, id string) (int64, error)
	// RecordMessage set lastMessage and increment the recipient unread count
	RecordMessage(ctx context.Context, m *domain.Message) error
	// RefreshLastMessage replace lastMessage when it is still m
	RefreshLastMessage(ctx context.Context, m *domain.Message) error
	ResetUnread(ctx context.Context, id, userID string) error
	Delete(ctx context.Context, id string) error
}

type conversationRepository struct {
	coll *mongo.Collection
}

// NewMongoConversationRepository create mongo ConversationRepository
func NewMongoConversationRepository(db *mongo.Database) ConversationRepository {
	return &conversationRepository{
		coll: db.Collection(conversationCollection),
	}
}

func (r *conversationRepository) FindOrCreateDirect(ctx context.Context, userA, userB string) (*domain.Conversation, bool, error) {
	now := domain.Now()
	fresh := domain.NewDirectConversation(uuid.New().String(), userA, userB, now)

	filter := bson.M{"pair_key": fresh.PairKey}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":          fresh.ID,
		"type":         fresh.Type,
		"participants": fresh.Participants,
		"unread":       fresh.Unread,
		"message_seq":  int64(0),
		"created_at":   now,
		"updated_at":   now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var conv domain.Conversation
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if mongo.IsDuplicateKeyError(err) {
		// 併發 upsert, 另一方已建立
		err = r.coll.FindOne(ctx, filter).Decode(&conv)
	}
	if err != nil {
		return nil, false, fmt.Errorf("find or create direct conversation: %w", err)
	}
	return &conv, conv.ID == fresh.ID, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	convs := []*domain.Conversation{}
	if err := cur.All(ctx, &convs); err != nil {
		return nil, fmt.Errorf("cursor All error: %w", err)
	}
	return convs, nil
}

func (r *conversationRepository) NextSeq(ctx context.Context, id string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"message_seq": 1})

	var doc struct {
		MessageSeq int64 `bson:"message_seq"`
	}
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"message_seq": 1}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return 0, err
	}
	return doc.MessageSeq, nil
}

func (r *conversationRepository) RecordMessage(ctx context.Context, m *domain.Message) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": m.ConversationID},
		bson.M{"$inc": bson.M{"unread." + m.RecipientID: 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: conversation %s", domain.ErrNotFound, m.ConversationID)
	}

	// 只在 seq 較新時覆寫, 併發送出時較舊的訊息可能較晚寫入
	filter := bson.M{
		"_id": m.ConversationID,
		"$or": bson.A{
			bson.M{"last_message": nil},
			bson.M{"last_message.seq": bson.M{"$lt": m.Seq}},
		},
	}
	_, err = r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"last_message": m, "updated_at": m.CreatedAt}})
	return err
}

func (r *conversationRepository) RefreshLastMessage(ctx context.Context, m *domain.Message) error {
	filter := bson.M{"_id": m.ConversationID, "last_message._id": m.ID}
	_, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"last_message": m}})
	return err
}

func (r *conversationRepository) ResetUnread(ctx context.Context, id, userID string) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"unread." + userID: 0}})
	return err
}

func (r *conversationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	return nil
}

// EnsureIndexes create the indexes conversations and messages rely on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := db.Collection(conversationCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("conversation indexes: %w", err)
	}

	_, err = db.Collection(messageCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "recipient_id", Value: 1}, {Key: "read_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("message indexes: %w", err)
	}
	return nil
}
