package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// UserRepository read-only access to account service profiles
type UserRepository interface {
	// FindByIDs unknown ids are skipped
	FindByIDs(ctx context.Context, ids []string) (map[string]domain.User, error)
}

type userRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository users collection shared with the account service
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{coll: db.Collection("users")}
}

type userDoc struct {
	ID          interface{} `bson:"_id"`
	Username    string      `bson:"username"`
	DisplayName string      `bson:"display_name"`
	Avatar      string      `bson:"avatar"`
}

func (d userDoc) toDomain() domain.User {
	var id string
	switch v := d.ID.(type) {
	case primitive.ObjectID:
		id = v.Hex()
	case string:
		id = v
	default:
		id = fmt.Sprint(v)
	}
	return domain.User{ID: id, Username: d.Username, DisplayName: d.DisplayName, Avatar: d.Avatar}
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []string) (map[string]domain.User, error) {
	users := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	// account service 可能用 ObjectID 或字串當 _id
	keys := bson.A{}
	for _, id := range ids {
		keys = append(keys, id)
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			keys = append(keys, oid)
		}
	}

	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("cursor All error: %w", err)
	}
	for _, d := range docs {
		u := d.toDomain()
		users[u.ID] = u
	}
	return users, nil
}

const userCacheTTL = 10 * time.Minute

type cachedUserRepository struct {
	next  UserRepository
	cache database.RedisRepository[domain.User]
}

// NewCachedUserRepository profile lookups go through redis first
func NewCachedUserRepository(next UserRepository, cache database.RedisRepository[domain.User]) UserRepository {
	return &cachedUserRepository{next: next, cache: cache}
}

func userCacheKey(id string) string {
	return "chat:user:profile:" + id
}

func (r *cachedUserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]domain.User, error) {
	users := make(map[string]domain.User, len(ids))
	var missing []string

	for _, id := range ids {
		u, err := r.cache.Get(ctx, userCacheKey(id))
		switch {
		case err == nil:
			users[id] = u
		case errors.Is(err, database.ErrCacheMiss):
			missing = append(missing, id)
		default:
			logger.Log.Warn("user cache get", zap.String("userID", id), zap.Error(err))
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return users, nil
	}

	found, err := r.next.FindByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, u := range found {
		users[id] = u
		if err := r.cache.Set(ctx, userCacheKey(id), u, userCacheTTL); err != nil {
			logger.Log.Warn("user cache set", zap.String("userID", id), zap.Error(err))
		}
	}
	return users, nil
}
