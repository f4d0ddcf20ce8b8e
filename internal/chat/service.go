// Package chat carries the post-hire message channel between a job owner and
// the hired bidder.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/cuongbtq/gigflow/internal/joblock"
	"github.com/cuongbtq/gigflow/internal/storage"
	"github.com/google/uuid"
)

// DefaultMaxTextLength is the message length limit, in runes, applied when
// Config.MaxTextLength is not set.
const DefaultMaxTextLength = 1000

// MessageFanout delivers a persisted message to the live job room
type MessageFanout interface {
	FanoutMessage(ctx context.Context, msg domain.Message) error
}

// Config holds service dependencies
type Config struct {
	Logger        *slog.Logger
	Store         storage.Gateway
	Gate          *Gate
	Locks         *joblock.Locker
	Fanout        MessageFanout
	MaxTextLength int
}

// Service persists messages and hands them to the realtime layer
type Service struct {
	logger        *slog.Logger
	store         storage.Gateway
	gate          *Gate
	locks         *joblock.Locker
	fanout        MessageFanout
	maxTextLength int
	now           func() time.Time
}

// NewService creates a new chat service
func NewService(cfg *Config) *Service {
	gate := cfg.Gate
	if gate == nil {
		gate = NewGate(cfg.Store, false)
	}

	locks := cfg.Locks
	if locks == nil {
		locks = joblock.New()
	}

	maxTextLength := cfg.MaxTextLength
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}

	return &Service{
		logger:        cfg.Logger,
		store:         cfg.Store,
		gate:          gate,
		locks:         locks,
		fanout:        cfg.Fanout,
		maxTextLength: maxTextLength,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Send stores a message from senderID to the other participant of jobID and
// pushes it to the job room. The job lock is held until the message has been
// handed to the fan-out, so room delivery follows persist order.
func (s *Service) Send(ctx context.Context, jobID, senderID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message cannot be empty", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(text) > s.maxTextLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", domain.ErrInvalidArgument, s.maxTextLength)
	}

	unlock := s.locks.Lock(jobID)
	defer unlock()

	grant, err := s.gate.Check(ctx, jobID, senderID, AccessWrite)
	if err != nil {
		s.logger.Info("Message refused",
			slog.String("job_id", jobID),
			slog.String("sender_id", senderID),
			slog.String("reason", err.Error()),
		)
		return nil, classify("authorize sender", err)
	}

	msg := &domain.Message{
		MessageID:  uuid.New().String(),
		JobID:      jobID,
		SenderID:   senderID,
		ReceiverID: grant.CounterpartID,
		Text:       text,
		CreatedAt:  s.now(),
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		// The job left assigned between the check and the insert
		if errors.Is(err, domain.ErrInvalidState) {
			return nil, fmt.Errorf("%w: messaging is only available for assigned jobs", domain.ErrForbidden)
		}
		s.logger.Error("Failed to store message",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return nil, classify("create message", err)
	}

	s.logger.Debug("Message stored",
		slog.String("job_id", jobID),
		slog.String("message_id", msg.MessageID),
	)

	if s.fanout != nil {
		if err := s.fanout.FanoutMessage(ctx, *msg); err != nil {
			s.logger.Warn("Failed to fan out message",
				slog.String("job_id", jobID),
				slog.String("message_id", msg.MessageID),
				slog.String("error", err.Error()),
			)
		}
	}

	return msg, nil
}

// History returns the job's messages oldest first
func (s *Service) History(ctx context.Context, jobID, requesterID string) ([]domain.Message, error) {
	if _, err := s.gate.Check(ctx, jobID, requesterID, AccessRead); err != nil {
		return nil, classify("authorize reader", err)
	}

	messages, err := s.store.ListMessages(ctx, jobID)
	if err != nil {
		return nil, classify("list messages", err)
	}
	return messages, nil
}

// AuthorizeRoom checks that userID may join the live room of jobID
func (s *Service) AuthorizeRoom(ctx context.Context, jobID, userID string) (*Grant, error) {
	grant, err := s.gate.Check(ctx, jobID, userID, AccessWrite)
	if err != nil {
		return nil, classify("authorize room", err)
	}
	return grant, nil
}

func classify(op string, err error) error {
	if domain.IsKnown(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrInternal, op, err)
}
