// Package notification emits user-facing message intents. Delivery is
// a separate collaborator; this service only records what should be said
// to whom. Dispatch is best-effort and never fails the caller.
package notification

import (
	"context"

	"gearted/internal/models"

	"github.com/sirupsen/logrus"
)

// Intent describes one message to one user.
type Intent struct {
	UserID  uint
	Title   string
	Message string
	Type    string
	Data    map[string]interface{}
}

// Dispatcher is consumed by every service that notifies users. A failed
// dispatch must never roll back the state transition that triggered it.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents ...Intent)
}

// Repository is the persistence dependency.
type Repository interface {
	Create(ctx context.Context, n *models.Notification) error
}

// Service persists notification intents as rows the delivery channel
// drains.
type Service struct {
	repo Repository
	log  *logrus.Entry
}

// NewService creates a notification service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		log:  logrus.WithField("component", "notification"),
	}
}

// Dispatch records each intent, logging and swallowing failures.
func (s *Service) Dispatch(ctx context.Context, intents ...Intent) {
	for _, in := range intents {
		n := &models.Notification{
			UserID:  in.UserID,
			Title:   in.Title,
			Message: in.Message,
			Type:    in.Type,
			Data:    models.JSON(in.Data),
		}
		if err := s.repo.Create(ctx, n); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"user_id": in.UserID,
				"title":   in.Title,
			}).Warn("failed to record notification")
		}
	}
}
