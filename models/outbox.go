package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"bitbucket.org/uniadq/requisitions_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequisitionEventRecord is the transactional outbox. Rows are written in
// the same transaction as the requisition change and published to Pub/Sub
// by the dispatcher after commit.
type RequisitionEventRecord struct {
	ID               int                    `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	RequisitionId    int                    `gorm:"index;not null" json:"requisition_id"`
	Action           RequisitionEventAction `gorm:"size:2;not null" json:"action"`
	UserId           int                    `gorm:"index" json:"user_id"`
	OldObj           []byte                 `gorm:"type:blob" json:"old_obj"`
	NewObj           []byte                 `gorm:"type:blob" json:"new_obj"`
	PublishStatus    string                 `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time             `gorm:"index" json:"published_at"`
	PubSubMessageId  *string                `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int                    `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time             `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time             `gorm:"index" json:"locked_at"`
	LockedBy         *string                `gorm:"size:100" json:"locked_by"`
	LastPublishError *string                `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string                 `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToRequisitionEvent(record RequisitionEventRecord) config.RequisitionEvent {
	return config.RequisitionEvent{
		ID:            record.ID,
		OccurredAt:    record.CreatedAt,
		RequisitionId: record.RequisitionId,
		Action:        string(record.Action),
		UserId:        record.UserId,
		OldObj:        record.OldObj,
		NewObj:        record.NewObj,
		CorrelationId: record.CorrelationId,
	}
}

// recordRequisitionEvent queues an event inside tx. Nothing is published
// here.
func recordRequisitionEvent(ctx context.Context, tx *gorm.DB, requisitionId int, action RequisitionEventAction, oldObj interface{}, newObj interface{}) error {
	var oldBytes, newBytes []byte
	var err error
	if oldObj != nil {
		if oldBytes, err = json.Marshal(oldObj); err != nil {
			return err
		}
	}
	if newObj != nil {
		if newBytes, err = json.Marshal(newObj); err != nil {
			return err
		}
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	record := RequisitionEventRecord{
		RequisitionId: requisitionId,
		Action:        action,
		UserId:        userId,
		OldObj:        oldBytes,
		NewObj:        newBytes,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

// ReplayRequisitionEvent puts a FAILED or DEAD event back in the dispatch
// queue with a fresh attempt budget.
func ReplayRequisitionEvent(ctx context.Context, recordId int) (*RequisitionEventRecord, error) {
	if !utils.IsAdmin(ctx) {
		return nil, utils.ErrorForbidden
	}
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorServiceNotReady
	}

	record, err := utils.FetchModel[RequisitionEventRecord](ctx, recordId)
	if err != nil {
		return nil, err
	}
	if record.PublishStatus != OutboxPublishStatusFailed && record.PublishStatus != OutboxPublishStatusDead {
		return nil, newValidationError("publish_status", "only FAILED or DEAD events can be replayed, this one is %s", record.PublishStatus)
	}

	now := time.Now().UTC()
	if err := db.WithContext(ctx).Model(&RequisitionEventRecord{}).
		Where("id = ?", recordId).
		Updates(map[string]interface{}{
			"publish_status":     OutboxPublishStatusFailed,
			"publish_attempts":   0,
			"next_attempt_at":    &now,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		}).Error; err != nil {
		return nil, err
	}
	record.PublishStatus = OutboxPublishStatusFailed
	record.PublishAttempts = 0
	record.NextAttemptAt = &now
	record.LastPublishError = nil
	return record, nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
