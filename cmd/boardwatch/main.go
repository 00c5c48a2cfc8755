package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/config"
	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/logger"
	"github.com/dispatch-board/internal/replica"
)

// boardwatch keeps a live replica of some board days and logs a summary of
// each day whenever it changes.
func main() {
	datesFlag := flag.String("dates", "", "comma separated dates (YYYY-MM-DD), defaults to today")
	every := flag.Duration("every", 5*time.Second, "summary interval")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	dates, err := parseDates(*datesFlag)
	if err != nil {
		log.Fatal("Invalid dates", zap.Error(err))
	}

	rcfg := replica.DefaultConfig()
	rcfg.GuardWindow = cfg.Board.GuardWindow

	client := replica.NewClient(
		replica.NewHTTPAuthority(replica.HTTPConfig{
			BaseURL:        cfg.Worker.AuthorityURL,
			RequestTimeout: cfg.Worker.AuthorityTimeout,
		}, log.Named("authority")),
		replica.NewWSSubscriber("ws://"+cfg.GetWebSocketAddr()+"/ws", log.Named("push")),
		rcfg,
		log.Named("replica"),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := client.Watch(ctx, dates...); err != nil {
		log.Fatal("Failed to load board days", zap.Error(err))
	}
	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Replica stopped", zap.Error(err))
		}
	}()

	seen := make(map[domain.Date]uint64)
	ticker := time.NewTicker(*every)
	defer ticker.Stop()
	for {
		for _, d := range dates {
			day, ok := client.View().Day(d)
			if !ok || seen[d] == day.Seq {
				continue
			}
			seen[d] = day.Seq
			assigned := 0
			for _, s := range day.Slots {
				assigned += len(s.Assignments)
			}
			log.Info("Board day",
				zap.String("date", d.String()),
				zap.Uint64("seq", day.Seq),
				zap.Int("slots", len(day.Slots)),
				zap.Int("assigned", assigned),
				zap.Int("unassigned", len(day.Unassigned)))
		}

		select {
		case <-ctx.Done():
			log.Info("Stopped")
			return
		case <-ticker.C:
		}
	}
}

func parseDates(raw string) ([]domain.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return []domain.Date{domain.DateOf(time.Now().UTC())}, nil
	}
	var dates []domain.Date
	for _, part := range strings.Split(raw, ",") {
		d, err := domain.ParseDate(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}
