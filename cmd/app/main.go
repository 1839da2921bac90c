package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/hotelbooking/api"
	"github.com/Domenick1991/hotelbooking/config"
	"github.com/Domenick1991/hotelbooking/internal/bootstrap"
	"github.com/Domenick1991/hotelbooking/internal/cache"
	"github.com/Domenick1991/hotelbooking/internal/email"
	"github.com/Domenick1991/hotelbooking/internal/kafka"
	"github.com/Domenick1991/hotelbooking/internal/logger"
	"github.com/Domenick1991/hotelbooking/internal/metrics"
	"github.com/Domenick1991/hotelbooking/internal/service/booking"
	"github.com/Domenick1991/hotelbooking/internal/service/notification"
	"go.uber.org/zap"
)

func main() {
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

	opts := []booking.BookingServiceOption{
		booking.WithLogger(zl.Named("booking")),
		booking.WithPaymentPrefix(cfg.Booking.PaymentPrefix),
		booking.WithPaymentPath(cfg.Booking.PaymentPath),
	}

	if cfg.Redis.Addr != "" {
		locker := cache.NewRedisLocker(cfg.Redis)
		defer locker.Close()
		if err := locker.Ping(ctx); err != nil {
			zl.Warn("redis unavailable, booking locks disabled", zap.Error(err))
		} else {
			opts = append(opts, booking.WithLocker(locker))
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, zl.Named("kafka"))
		defer producer.Close()
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Kafka.PublishTimeout())
		err := producer.CheckConnection(checkCtx)
		cancel()
		if err != nil {
			zl.Warn("kafka unavailable, booking events disabled", zap.Error(err))
		} else {
			opts = append(opts,
				booking.WithProducer(producer, cfg.Kafka.BookingEventsTopic),
				booking.WithPublishTimeout(cfg.Kafka.PublishTimeout()),
			)
		}
	}

	bookingService := booking.NewBookingService(store, newDispatcher(cfg, zl), opts...)
	handler := api.NewBookingHandler(bookingService, zl.Named("http"))

	if err := bootstrap.Run(ctx, cfg, handler, zl); err != nil {
		zl.Fatal("server error", zap.Error(err))
	}
}

func newDispatcher(cfg *config.Config, zl *zap.Logger) *notification.Dispatcher {
	opts := []notification.Option{
		notification.WithLogger(zl.Named("notification")),
		notification.WithTimeout(cfg.Mail.Timeout()),
		notification.WithDetailsBaseURL(cfg.Booking.DetailsBaseURL),
		notification.WithPreviewBaseURL(cfg.Mail.PreviewBaseURL),
	}
	if !cfg.Mail.Enabled() {
		zl.Info("mail host not configured, notifications run in dummy mode")
		return notification.NewDummyDispatcher(opts...)
	}
	return notification.NewDispatcher(email.NewSMTPTransport(cfg.Mail), opts...)
}
