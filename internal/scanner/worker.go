package scanner

import (
	"context"
	"fmt"

	"admissions_backend/platform/config"
	"admissions_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	scanner *Scanner
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, scanner *Scanner, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		scanner: scanner,
		log:     log,
	}

	mux.HandleFunc(TaskTenantScan, w.handleTenantScan)

	return w, nil
}

func (w *Worker) handleTenantScan(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTenantScanPayload(task)
	if err != nil {
		return err
	}

	schoolID, err := uuid.Parse(payload.SchoolID)
	if err != nil {
		return err
	}

	log := w.log.WithTenantID(schoolID.String())

	result, err := w.scanner.ScanTenant(ctx, schoolID)
	if err != nil {
		log.Error("tenant scan failed", "error", err)
		return err
	}

	log.Info("tenant scan finished",
		"leads", result.Leads,
		"matched", result.Matched,
		"applied", result.Applied,
		"unchanged", result.Unchanged,
		"failed", result.Failed,
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scan worker stopped", "error", err)
	}
}
