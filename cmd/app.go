package main

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"offerdesk/offer-service/internal/auth"
	"offerdesk/offer-service/internal/config"
	"offerdesk/offer-service/internal/db"
	"offerdesk/offer-service/internal/notify"
	"offerdesk/offer-service/internal/offer"
)

// deps holds the connections shared by the long-running commands.
type deps struct {
	cfg        *config.Config
	log        *slog.Logger
	rdb        *redis.Client
	store      offer.Store
	closeStore func()
}

// connect loads config and opens Redis, and the store when withStore is set.
func connect(ctx context.Context, withStore bool) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := newLogger()
	d := &deps{cfg: cfg, log: log}

	log.Info("connecting to Redis")
	d.rdb, err = db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	log.Info("Redis connected")

	if withStore {
		log.Info("opening offer store", "backend", cfg.Store)
		d.store, d.closeStore, err = db.OpenStore(ctx, cfg)
		if err != nil {
			_ = d.rdb.Close()
			return nil, err
		}
		log.Info("offer store ready", "backend", cfg.Store)
	}
	return d, nil
}

func (d *deps) Close() {
	if d.closeStore != nil {
		d.closeStore()
	}
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
}

func (d *deps) engine() *offer.Engine {
	return offer.NewEngine(d.store, offer.UUIDTokens{},
		offer.WithNotifier(notify.NewDispatcher(notify.NewQueue(d.rdb), d.cfg.HostURL)),
		offer.WithEvents(notify.NewRedisPublisher(d.rdb)),
		offer.WithEmployer(d.cfg.EmployerName),
		offer.WithLogger(d.log),
	)
}

func (d *deps) gateway() *auth.Gateway {
	if d.cfg.HREmail == "" || d.cfg.HRPasswordHash == "" {
		d.log.Warn("HR_EMAIL or HR_PASSWORD_HASH unset; HR login is disabled")
	}
	return auth.NewGateway(d.cfg.HREmail, d.cfg.HRPasswordHash, d.cfg.JWTSecret, d.cfg.SessionTTL)
}

func (d *deps) worker() *notify.Worker {
	var sender notify.Sender = notify.LogSender{Log: d.log}
	if d.cfg.SMTP.Enabled() {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     d.cfg.SMTP.Host,
			Port:     d.cfg.SMTP.Port,
			Username: d.cfg.SMTP.Username,
			Password: d.cfg.SMTP.Password,
			From:     d.cfg.SMTP.From,
		})
	} else {
		d.log.Warn("SMTP_HOST unset; offer letters will be logged, not sent")
	}
	return notify.NewWorker(notify.NewQueue(d.rdb, notify.WithQueueLogger(d.log)), sender,
		notify.Employer{Name: d.cfg.EmployerName, Location: d.cfg.EmployerLocation},
		d.cfg.NotifyMaxAttempts, d.log)
}
