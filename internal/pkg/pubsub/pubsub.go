package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultChannel 同步状态频道
const DefaultChannel = "drive_sync_status"

// 同步状态
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

var statusMessages = map[string]string{
	StatusQueued:  "Metadata sync queued",
	StatusRunning: "Syncing drive metadata",
	StatusDone:    "Metadata sync completed",
	StatusFailed:  "Metadata sync failed",
}

// SyncStatus 同步状态消息，推送给前端
type SyncStatus struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
	Provider  string `json:"provider"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// Publisher Redis 发布者
type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// PublishStatus 发布同步状态，未填写消息时使用默认文案
func (p *Publisher) PublishStatus(ctx context.Context, msg *SyncStatus) error {
	msg.Type = "sync_status"
	if msg.Message == "" {
		msg.Message = statusMessages[msg.Status]
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal sync status: %w", err)
	}

	return p.client.Publish(ctx, p.channel, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client  *redis.Client
	channel string
}

func NewSubscriber(client *redis.Client, channel string) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Subscriber{client: client, channel: channel}
}

// Subscribe 阻塞直到 ctx 取消
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*SyncStatus)) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// 等待订阅确认，避免订阅建立前的消息丢失
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", s.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var status SyncStatus
			if err := json.Unmarshal([]byte(msg.Payload), &status); err != nil {
				continue
			}

			handler(&status)
		}
	}
}
