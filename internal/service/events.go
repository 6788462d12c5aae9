package service

import (
	"context"

	commonredis "remediation-engine/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	EventRemediationSaved = "remediation.saved"
	EventInvoiceSubmitted = "invoice.submitted"
)

// EventPublisher 领域事件发布（尽力而为，失败只记录日志）
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// RedisEventPublisher 发布到 Redis Streams
type RedisEventPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

func NewRedisEventPublisher(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *RedisEventPublisher {
	return &RedisEventPublisher{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	id, err := commonredis.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, eventType, payload)
	if err != nil {
		return err
	}
	p.logger.Debug("Published event", zap.String("stream", p.stream), zap.String("type", eventType), zap.String("id", id))
	return nil
}

// NopEventPublisher 事件关闭时使用
type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, string, any) error { return nil }

// RemediationSavedEvent remediation.saved 负载
type RemediationSavedEvent struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	RoomCount int    `json:"room_count"`
	UpdatedAt int64  `json:"updated_at"`
}

// InvoiceSubmittedEvent invoice.submitted 负载
type InvoiceSubmittedEvent struct {
	JobID     string  `json:"job_id"`
	InvoiceID string  `json:"invoice_id"`
	DocNumber string  `json:"doc_number,omitempty"`
	TotalAmt  float64 `json:"total_amt"`
}
