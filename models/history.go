package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"bitbucket.org/uniadq/requisitions_backend/utils"
	"gorm.io/gorm"
)

type History struct {
	ID            int           `gorm:"primary_key" json:"id"`
	ActionType    HistoryAction `gorm:"size:10;not null" json:"action_type"`
	Before        string        `gorm:"type:text" json:"before"`
	After         string        `gorm:"type:text" json:"after"`
	Description   string        `gorm:"type:text;not null" json:"description"`
	ReferenceID   int           `gorm:"index:idx_history_reference,priority:1" json:"reference_id"`
	ReferenceType string        `gorm:"size:255;index:idx_history_reference,priority:2" json:"reference_type"`
	UserId        int           `gorm:"index;not null" json:"user_id"`
	UserName      string        `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
}

const historyReferenceRequisition = "requisitions"

func (h History) GetId() int {
	return h.ID
}

func (h History) GetCursor() string {
	return cursorTime(h.CreatedAt)
}

// createHistory writes an audit row for a requisition inside tx. The acting
// user comes from the transaction context.
func createHistory(tx *gorm.DB,
	actionType HistoryAction,
	referenceId int,
	before interface{},
	after interface{},
	description string) error {

	ctx := tx.Statement.Context
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return errors.New("user id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	history := History{
		ActionType:    actionType,
		Description:   description,
		ReferenceID:   referenceId,
		ReferenceType: historyReferenceRequisition,
		UserId:        userId,
		UserName:      userName,
	}
	if before != nil {
		history.Before = utils.MarshalToJSON(before)
	}
	if after != nil {
		history.After = utils.MarshalToJSON(after)
	}
	return tx.Create(&history).Error
}

// GetRequisitionHistory lists the audit trail of a requisition, newest first.
// The requisition is fetched first so owner scoping applies.
func GetRequisitionHistory(ctx context.Context, requisitionId int, actionType *HistoryAction) ([]*History, error) {
	if _, err := utils.FetchModel[Requisition](ctx, requisitionId); err != nil {
		return nil, err
	}
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorServiceNotReady
	}

	var results []*History
	dbCtx := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", historyReferenceRequisition, requisitionId)
	if actionType != nil && *actionType != "" {
		dbCtx = dbCtx.Where("action_type = ?", *actionType)
	}
	if err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
