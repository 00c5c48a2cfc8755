// +build ignore

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/repository/cache"
)

// Публикует тестовое событие в стрим изменений доски и ждёт, пока
// воркер проекций обновит день в кеше.
func main() {
	redisAddr := flag.String("redis", "localhost:6380", "Redis address for streams")
	cacheAddr := flag.String("cache", "localhost:6379", "Redis address for projections")
	date := flag.String("date", domain.DateOf(time.Now().UTC()).String(), "board date")
	seq := flag.Uint64("seq", 1, "sequence number of the event")
	flag.Parse()

	day, err := domain.ParseDate(*date)
	if err != nil {
		log.Fatalf("Invalid date: %v", err)
	}

	streams := redis.NewClient(&redis.Options{Addr: *redisAddr})
	defer streams.Close()
	cacheClient := redis.NewClient(&redis.Options{Addr: *cacheAddr})
	defer cacheClient.Close()

	ctx := context.Background()

	// Проверка подключения
	if err := streams.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	slot := domain.Slot{ID: 1, Date: day, SlotNumber: 1, Assignments: []domain.SlotAssignment{}}
	snapshot, err := domain.Snapshot(slot)
	if err != nil {
		log.Fatalf("Failed to build snapshot: %v", err)
	}
	event := domain.ChangeEvent{
		ID:         uuid.New(),
		Seq:        *seq,
		Date:       &day,
		Dates:      []domain.Date{day},
		Entity:     domain.EntitySlot,
		EntityID:   slot.ID,
		Type:       domain.UpdateCreated,
		Snapshot:   snapshot,
		OccurredAt: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Fatalf("Failed to marshal event: %v", err)
	}

	// Публикация в стрим
	result, err := streams.XAdd(ctx, &redis.XAddArgs{
		Stream: domain.StreamDispatchChanges,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		log.Fatalf("Failed to publish event: %v", err)
	}

	fmt.Printf("Event published\n")
	fmt.Printf("   Stream: %s\n", domain.StreamDispatchChanges)
	fmt.Printf("   Message ID: %s\n", result)
	fmt.Printf("   Date: %s, seq %d\n", day, event.Seq)

	fmt.Printf("\nWaiting for projection %s...\n", cache.BoardKey(day))

	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			fmt.Println("Timeout waiting for projection")
			return
		case <-ticker.C:
			raw, err := cacheClient.Get(ctx, cache.BoardKey(day)).Bytes()
			if err != nil {
				continue
			}
			var projected domain.BoardDay
			if err := json.Unmarshal(raw, &projected); err != nil {
				continue
			}
			if projected.Seq >= event.Seq {
				fmt.Printf("\nProjection updated: seq %d, %d slots\n", projected.Seq, len(projected.Slots))
				return
			}
		}
	}
}
