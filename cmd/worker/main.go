package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/hotelbooking/config"
	"github.com/Domenick1991/hotelbooking/internal/bootstrap"
	"github.com/Domenick1991/hotelbooking/internal/kafka"
	"github.com/Domenick1991/hotelbooking/internal/logger"
	"github.com/Domenick1991/hotelbooking/internal/metrics"
	"github.com/Domenick1991/hotelbooking/internal/repository"
	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "copy every booking from the JSON file into the mirrors and exit")
	flag.Parse()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := bootstrap.NewRecordStore(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("init record store", zap.Error(err))
	}
	defer cleanup()

	if store.Mirrors() == 0 {
		zl.Warn("no mirrors configured, nothing to sync")
		return
	}

	if *once {
		resync(ctx, store, zl)
		return
	}

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewBookingEventConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.BookingEventsTopic, zl.Named("kafka"))
		defer consumer.Close()

		go func() {
			err := consumer.Run(ctx, func(ctx context.Context, event kafka.BookingEvent) error {
				store.MirrorBooking(ctx, event.Booking)
				zl.Debug("mirrored booking event", zap.String("type", string(event.Type)), zap.String("booking_id", event.BookingID))
				return nil
			})
			if err != nil && ctx.Err() == nil {
				zl.Error("consumer stopped", zap.Error(err))
			}
		}()
	}

	resync(ctx, store, zl)
	ticker := time.NewTicker(time.Duration(cfg.Worker.ResyncMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			resync(ctx, store, zl)
		case <-ctx.Done():
			zl.Info("shutting down worker")
			return
		}
	}
}

func resync(ctx context.Context, store *repository.RecordStore, zl *zap.Logger) {
	start := time.Now()
	synced, err := store.SyncMirrors(ctx)
	if err != nil {
		zl.Error("mirror resync failed", zap.Int("synced", synced), zap.Error(err))
		return
	}
	zl.Info("mirror resync finished", zap.Int("synced", synced), zap.Duration("took", time.Since(start)))
}
