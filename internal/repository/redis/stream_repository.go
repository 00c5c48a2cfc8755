package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/domain/repository"
)

// payloadField - поле записи стрима с JSON события
const payloadField = "data"

const (
	readCount = 10
	readBlock = time.Second
)

type streamRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStreamRepository создает новый экземпляр StreamRepository
func NewStreamRepository(client *redis.Client, logger *zap.Logger) repository.StreamRepository {
	return &streamRepository{
		client: client,
		logger: logger,
	}
}

// CreateConsumerGroup создаёт consumer group; группа читает только новые
// записи, существующая группа не ошибка.
func (r *streamRepository) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	err := r.client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			r.logger.Debug("Consumer group already exists",
				zap.String("stream", stream),
				zap.String("group", group))
			return nil
		}
		r.logger.Error("Failed to create consumer group",
			zap.String("stream", stream),
			zap.String("group", group),
			zap.Error(err))
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	r.logger.Info("Consumer group created",
		zap.String("stream", stream),
		zap.String("group", group))
	return nil
}

// ConsumeStream first redelivers the entries this consumer read but never
// acknowledged, then follows new entries. The channel is closed when ctx
// ends.
func (r *streamRepository) ConsumeStream(ctx context.Context, stream, group, consumer string) (<-chan domain.StreamMessage, error) {
	msgChan := make(chan domain.StreamMessage, readCount)

	go func() {
		defer close(msgChan)
		log := r.logger.With(
			zap.String("stream", stream),
			zap.String("group", group),
			zap.String("consumer", consumer))

		// "0" - своя история pending, ">" - новые записи
		cursor := "0"
		for ctx.Err() == nil {
			block := readBlock
			if cursor != ">" {
				block = -1 // без ожидания
			}
			result, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumer,
				Streams:  []string{stream, cursor},
				Count:    readCount,
				Block:    block,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					cursor = ">"
					continue
				}
				if ctx.Err() != nil {
					break
				}
				log.Error("Failed to read from stream", zap.Error(err))
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
				continue
			}

			read := 0
			for _, s := range result {
				for _, msg := range s.Messages {
					read++
					if cursor != ">" {
						cursor = msg.ID
					}
					if !r.deliver(ctx, log, stream, group, msg, msgChan) {
						return
					}
				}
			}
			if cursor != ">" && read == 0 {
				log.Debug("Pending entries replayed")
				cursor = ">"
			}
		}
		log.Info("Stream consumer stopped")
	}()

	return msgChan, nil
}

// deliver hands one entry to the consumer. An entry without payload can
// never be processed and is acknowledged right away.
func (r *streamRepository) deliver(ctx context.Context, log *zap.Logger, stream, group string, msg redis.XMessage, out chan<- domain.StreamMessage) bool {
	data, ok := msg.Values[payloadField].(string)
	if !ok {
		log.Warn("Stream entry has no payload, acknowledging",
			zap.String("message_id", msg.ID))
		if err := r.client.XAck(ctx, stream, group, msg.ID).Err(); err != nil && ctx.Err() == nil {
			log.Error("Failed to acknowledge entry", zap.String("message_id", msg.ID), zap.Error(err))
		}
		return true
	}

	select {
	case out <- domain.StreamMessage{ID: msg.ID, Data: data}:
		return true
	case <-ctx.Done():
		return false
	}
}

// AckMessage подтверждает обработку сообщения
func (r *streamRepository) AckMessage(ctx context.Context, stream, group, messageID string) error {
	if err := r.client.XAck(ctx, stream, group, messageID).Err(); err != nil {
		r.logger.Error("Failed to acknowledge message",
			zap.String("stream", stream),
			zap.String("group", group),
			zap.String("message_id", messageID),
			zap.Error(err))
		return fmt.Errorf("failed to acknowledge message: %w", err)
	}
	return nil
}

// PublishToStream публикует сообщение в стрим
func (r *streamRepository) PublishToStream(ctx context.Context, stream string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	id, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{payloadField: string(payload)},
	}).Result()
	if err != nil {
		r.logger.Error("Failed to publish to stream",
			zap.String("stream", stream),
			zap.Error(err))
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	r.logger.Debug("Published to stream",
		zap.String("stream", stream),
		zap.String("message_id", id))
	return nil
}

// TrimStream обрезает стрим до ~maxLen последних записей
func (r *streamRepository) TrimStream(ctx context.Context, stream string, maxLen int64) error {
	if maxLen <= 0 {
		return nil
	}
	removed, err := r.client.XTrimMaxLenApprox(ctx, stream, maxLen, 0).Result()
	if err != nil {
		r.logger.Error("Failed to trim stream",
			zap.String("stream", stream),
			zap.Int64("max_len", maxLen),
			zap.Error(err))
		return fmt.Errorf("failed to trim stream: %w", err)
	}
	if removed > 0 {
		r.logger.Debug("Stream trimmed",
			zap.String("stream", stream),
			zap.Int64("removed", removed))
	}
	return nil
}
