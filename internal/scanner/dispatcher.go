package scanner

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"admissions_backend/platform/config"
	"admissions_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// TenantLister reports the tenants that currently have at least one active
// automation rule. Tenants without rules never get a scan task.
type TenantLister interface {
	TenantsWithActiveRules(ctx context.Context) ([]uuid.UUID, error)
}

// Dispatcher periodically enqueues one scan task per tenant with active
// rules. The worker picks them up via the shared asynq queue.
type Dispatcher struct {
	client   *asynq.Client
	queue    string
	tenants  TenantLister
	interval time.Duration
	log      *logger.Logger
}

func NewDispatcher(cfg config.SchedulerConfig, tenants TenantLister, log *logger.Logger) (*Dispatcher, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	interval := cfg.GetScanInterval()
	if interval < time.Minute {
		interval = time.Minute
	}

	return &Dispatcher{
		client:   asynq.NewClient(opt),
		queue:    queue,
		tenants:  tenants,
		interval: interval,
		log:      log,
	}, nil
}

func (d *Dispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.tenants == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tenants, err := d.tenants.TenantsWithActiveRules(ctx)
		if err != nil {
			d.log.Warn("tenant listing failed", "error", err)
			continue
		}

		for _, schoolID := range tenants {
			task, err := NewTenantScanTask(TenantScanPayload{SchoolID: schoolID.String()})
			if err != nil {
				d.log.Warn("scan task build failed", "error", err, "tenant_id", schoolID.String())
				continue
			}

			_, err = d.client.EnqueueContext(ctx, task, asynq.Queue(d.queue))
			if err != nil {
				d.log.Warn("scan task enqueue failed", "error", err, "tenant_id", schoolID.String())
			}
		}
	}
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
