package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"delivering/internal/models"
)

// Broadcast channels shared by all server instances.
const (
	ChannelBroadcast = "notifications:broadcast"
	ChannelDrivers   = "notifications:drivers"
	ChannelCustomers = "notifications:customers"
)

// RedisBus publishes payloads on the shared broker so other server
// instances can react.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal publish payload: %w", err)
	}
	return b.client.Publish(ctx, channel, raw).Err()
}

// bridgeEnvelope is the cross-instance broadcast wire format.
type bridgeEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PublishBroadcast fans an event out to every instance on one of the shared
// channels.
func (b *RedisBus) PublishBroadcast(ctx context.Context, channel, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal broadcast data: %w", err)
	}
	return b.Publish(ctx, channel, bridgeEnvelope{Event: event, Data: raw})
}

// Bridge relays broker broadcasts into this instance's websocket hub, so a
// client connected to any replica receives events published by any other.
type Bridge struct {
	client *redis.Client
	hub    *Hub
}

func NewBridge(client *redis.Client, hub *Hub) *Bridge {
	return &Bridge{client: client, hub: hub}
}

// Run subscribes to the shared channels and forwards messages to locally
// connected clients until the context is cancelled.
func (br *Bridge) Run(ctx context.Context) {
	sub := br.client.Subscribe(ctx, ChannelBroadcast, ChannelDrivers, ChannelCustomers)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			br.relay(msg)
		}
	}
}

func (br *Bridge) relay(msg *redis.Message) {
	var envelope bridgeEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
		log.Printf("Dropping malformed broadcast on %s: %v", msg.Channel, err)
		return
	}

	switch msg.Channel {
	case ChannelDrivers:
		br.hub.PushToRole(models.RoleDriver, envelope.Event, envelope.Data)
	case ChannelCustomers:
		br.hub.PushToRole(models.RoleCustomer, envelope.Event, envelope.Data)
	default:
		br.hub.PushToAll(envelope.Event, envelope.Data)
	}
}
