package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// Key space. The three namespaces must stay collision-free (content entries
// are global; pending updates and notifications are session-scoped).

const ContentKeyPrefix = "content:"

func ContentKey(hash string) string {
	return ContentKeyPrefix + hash
}

func PendingKey(sessionCode, unitID string) string {
	return fmt.Sprintf("pending:%s:%s", sessionCode, unitID)
}

func PendingKeyPattern(sessionCode string) string {
	return fmt.Sprintf("pending:%s:*", sessionCode)
}

func NotifyKey(sessionCode string) string {
	return fmt.Sprintf("notify:%s", sessionCode)
}

// EventChannel is the pubsub channel carrying session event fan-out.
func EventChannel(sessionCode string) string {
	return fmt.Sprintf("events:%s", sessionCode)
}
