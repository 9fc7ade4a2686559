package repository

import (
	"context"

	"parley/internal/models"
	"parley/internal/observability"

	"gorm.io/gorm"
)

// MessageRepository defines persistence operations for the append-only
// message log.
type MessageRepository interface {
	Log(ctx context.Context, msg *models.ChatMessage) error
	Recent(ctx context.Context, limit int) ([]models.ChatMessage, error)
	Count(ctx context.Context) (int64, error)
}

type messageRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db, log: observability.NewRepoLogger("chat_messages")}
}

func (r *messageRepository) Log(ctx context.Context, msg *models.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		r.log.LogError(ctx, err, "log")
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) Recent(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	var msgs []models.ChatMessage
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		r.log.LogError(ctx, err, "recent")
		return nil, models.NewInternalError(err)
	}
	return msgs, nil
}

func (r *messageRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.ChatMessage{}).Count(&n).Error; err != nil {
		r.log.LogError(ctx, err, "count")
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
