package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/application/service"
)

// NotificationWorkerConfig holds configuration for the delivery worker
type NotificationWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// PassTimeout bounds a single delivery pass
	PassTimeout time.Duration
}

// DefaultNotificationWorkerConfig returns default configuration
func DefaultNotificationWorkerConfig() NotificationWorkerConfig {
	return NotificationWorkerConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    20,
		PassTimeout:  time.Minute,
	}
}

// Deliverer sends queued notifications
type Deliverer interface {
	DeliverPending(ctx context.Context, batch int) (service.DeliveryStats, error)
}

// DeliveryObserver receives per-pass delivery counts
type DeliveryObserver interface {
	ObserveDelivery(result string, n int)
}

// NotificationWorker drains the notification outbox on a ticker
type NotificationWorker struct {
	config    NotificationWorkerConfig
	deliverer Deliverer
	observer  DeliveryObserver
	logger    *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	sent      int
	failed    int
	lastError error
}

// NewNotificationWorker creates a new delivery worker; observer may be nil
func NewNotificationWorker(config NotificationWorkerConfig, deliverer Deliverer, observer DeliveryObserver, logger *zap.Logger) *NotificationWorker {
	def := DefaultNotificationWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.PassTimeout <= 0 {
		config.PassTimeout = def.PassTimeout
	}
	return &NotificationWorker{
		config:    config,
		deliverer: deliverer,
		observer:  observer,
		logger:    logger,
	}
}

// Start begins the polling loop
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("notification worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("NotificationWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(runCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for the current pass to finish
func (w *NotificationWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.RLock()
	defer w.mu.RUnlock()
	w.logger.Info("NotificationWorker stopped",
		zap.Int("sent", w.sent),
		zap.Int("failed", w.failed))
	return nil
}

// Name returns the worker name for identification
func (w *NotificationWorker) Name() string {
	return "NotificationWorker"
}

// Stats returns delivery totals since start and the last pass error
func (w *NotificationWorker) Stats() (sent, failed int, lastErr error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sent, w.failed, w.lastError
}

// Report summarises delivery totals for health output
func (w *NotificationWorker) Report() string {
	sent, failed, lastErr := w.Stats()
	if lastErr != nil {
		return fmt.Sprintf("sent=%d failed=%d last_error=%v", sent, failed, lastErr)
	}
	return fmt.Sprintf("sent=%d failed=%d", sent, failed)
}

func (w *NotificationWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *NotificationWorker) runPass(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, w.config.PassTimeout)
	defer cancel()

	stats, err := w.deliverer.DeliverPending(passCtx, w.config.BatchSize)

	w.mu.Lock()
	w.sent += stats.Sent
	w.failed += stats.Failed
	w.lastError = err
	w.mu.Unlock()

	if w.observer != nil {
		w.observer.ObserveDelivery("sent", stats.Sent)
		w.observer.ObserveDelivery("failed", stats.Failed)
	}
	if err != nil {
		w.logger.Error("Failed to deliver pending notifications", zap.Error(err))
		return
	}
	if stats.Sent+stats.Failed > 0 {
		w.logger.Debug("Delivery pass finished",
			zap.Int("sent", stats.Sent),
			zap.Int("failed", stats.Failed))
	}
}
