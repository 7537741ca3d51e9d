package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus represents a user's online status
type PresenceStatus struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceStore tracks which users hold at least one live connection.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

const (
	presenceKeyPrefix = "presence:"       // JSON PresenceStatus per user
	presenceOnlineSet = "presence:online" // Set of online user IDs
	offlineRetention  = 24 * time.Hour    // Keep offline status for last_seen
)

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{client: client, ttl: ttl}
}

// SetOnline marks a user as online
func (p *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	data, err := json.Marshal(PresenceStatus{UserID: userID, IsOnline: true, LastSeen: time.Now().UTC()})
	if err != nil {
		return err
	}
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, data, p.ttl)
	pipe.SAdd(ctx, presenceOnlineSet, userID)
	_, err = pipe.Exec(ctx)
	return err
}

// SetOffline marks a user as offline
func (p *PresenceStore) SetOffline(ctx context.Context, userID string) error {
	data, err := json.Marshal(PresenceStatus{UserID: userID, IsOnline: false, LastSeen: time.Now().UTC()})
	if err != nil {
		return err
	}
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, data, offlineRetention)
	pipe.SRem(ctx, presenceOnlineSet, userID)
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the stored status, or an offline status when none is known.
func (p *PresenceStore) Get(ctx context.Context, userID string) (PresenceStatus, error) {
	raw, err := p.client.Get(ctx, presenceKeyPrefix+userID).Bytes()
	if err == goredis.Nil {
		return PresenceStatus{UserID: userID}, nil
	}
	if err != nil {
		return PresenceStatus{}, err
	}
	var status PresenceStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return PresenceStatus{}, err
	}
	return status, nil
}

func (p *PresenceStore) OnlineCount(ctx context.Context) (int64, error) {
	return p.client.SCard(ctx, presenceOnlineSet).Result()
}
