// Package marketplace owns the job and bid lifecycle: posting, bidding, the
// hire transaction and completion.
package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/cuongbtq/gigflow/internal/joblock"
	"github.com/cuongbtq/gigflow/internal/storage"
)

const defaultNotifyTimeout = 5 * time.Second

// HireNotifier receives a notice after a hire has committed
type HireNotifier interface {
	NotifyHired(ctx context.Context, notice domain.HiredNotice) error
}

// Config holds service dependencies
type Config struct {
	Logger        *slog.Logger
	Store         storage.Gateway
	Locks         *joblock.Locker
	Notifier      HireNotifier
	NotifyTimeout time.Duration
}

// Service implements the job/bid state machine
type Service struct {
	logger        *slog.Logger
	store         storage.Gateway
	locks         *joblock.Locker
	notifier      HireNotifier
	notifyTimeout time.Duration
	now           func() time.Time
}

// NewService creates a new marketplace service
func NewService(cfg *Config) *Service {
	locks := cfg.Locks
	if locks == nil {
		locks = joblock.New()
	}

	notifyTimeout := cfg.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}

	return &Service{
		logger:        cfg.Logger,
		store:         cfg.Store,
		locks:         locks,
		notifier:      cfg.Notifier,
		notifyTimeout: notifyTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// classify keeps taxonomy errors as they are and reports anything else as internal
func classify(op string, err error) error {
	if domain.IsKnown(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrInternal, op, err)
}
