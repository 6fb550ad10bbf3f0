package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceTTL = time.Hour
	fcmTokenTTL = 30 * 24 * time.Hour
)

// PresenceRecord is the ephemeral per-user connection record shared across
// server instances through Redis. A record that outlives its TTL without a
// refresh is stale and the user is treated as offline.
type PresenceRecord struct {
	SessionID   string `json:"sessionId"`
	UserKind    string `json:"userKind"`
	ConnectedAt int64  `json:"connectedAt"`
}

// FCMTokenRecord holds a user's registered device token.
type FCMTokenRecord struct {
	Token     string `json:"token"`
	Platform  string `json:"platform"`
	UpdatedAt int64  `json:"updatedAt"`
}

// PresenceRegistry tracks which users currently hold a live realtime
// connection. State lives in Redis so every replica observes the same
// presence data; no process owns it. Reads are eventually consistent and a
// positive answer is never a delivery guarantee.
type PresenceRegistry struct {
	client *redis.Client
}

func NewPresenceRegistry(client *redis.Client) *PresenceRegistry {
	return &PresenceRegistry{client: client}
}

func presenceKey(userID uint) string {
	return fmt.Sprintf("ws:user:%d", userID)
}

func fcmTokenKey(userID uint) string {
	return fmt.Sprintf("fcm:user:%d", userID)
}

// MarkOnline stores the presence record with a fixed TTL. Reconnects
// overwrite the record, refreshing the TTL.
func (p *PresenceRegistry) MarkOnline(ctx context.Context, userID uint, sessionID, userKind string) error {
	record := PresenceRecord{
		SessionID:   sessionID,
		UserKind:    userKind,
		ConnectedAt: time.Now().Unix(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, presenceKey(userID), data, presenceTTL).Err()
}

// MarkOffline removes the presence record immediately.
func (p *PresenceRegistry) MarkOffline(ctx context.Context, userID uint) error {
	return p.client.Del(ctx, presenceKey(userID)).Err()
}

func (p *PresenceRegistry) IsOnline(ctx context.Context, userID uint) (bool, error) {
	n, err := p.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *PresenceRegistry) GetConnection(ctx context.Context, userID uint) (*PresenceRecord, error) {
	data, err := p.client.Get(ctx, presenceKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record PresenceRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// SaveFCMToken registers a device token for push delivery.
func (p *PresenceRegistry) SaveFCMToken(ctx context.Context, userID uint, token, platform string) error {
	record := FCMTokenRecord{Token: token, Platform: platform, UpdatedAt: time.Now().Unix()}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, fcmTokenKey(userID), data, fcmTokenTTL).Err()
}

func (p *PresenceRegistry) GetFCMToken(ctx context.Context, userID uint) (*FCMTokenRecord, error) {
	data, err := p.client.Get(ctx, fcmTokenKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record FCMTokenRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteFCMToken drops a token the gateway reported as invalid.
func (p *PresenceRegistry) DeleteFCMToken(ctx context.Context, userID uint) error {
	return p.client.Del(ctx, fcmTokenKey(userID)).Err()
}
