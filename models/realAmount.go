package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"bitbucket.org/uniadq/requisitions_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequisitionRealAmountLog records each change of the amount actually paid.
type RequisitionRealAmountLog struct {
	ID            int              `gorm:"primary_key" json:"id"`
	RequisitionId int              `gorm:"index;not null" json:"requisition_id"`
	OldAmount     *decimal.Decimal `gorm:"type:decimal(20,2)" json:"old_amount"`
	NewAmount     decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"new_amount"`
	Reason        string           `gorm:"type:text;not null" json:"reason"`
	ChangedBy     int              `gorm:"index;not null" json:"changed_by"`
	ChangedByName string           `gorm:"size:100" json:"changed_by_name"`
	ChangedAt     time.Time        `gorm:"autoCreateTime;index" json:"changed_at"`
}

type CostAudit struct {
	RequisitionId  int                         `json:"requisition_id"`
	EstimatedTotal decimal.Decimal             `json:"estimated_total"`
	RealAmount     *decimal.Decimal            `json:"real_amount"`
	Difference     *decimal.Decimal            `json:"difference"`
	Logs           []*RequisitionRealAmountLog `json:"logs"`
}

type NewRealAmount struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required,max=2000"`
}

// SetRealAmount stores the amount actually spent. Setting the same amount
// again changes nothing and writes no log.
func SetRealAmount(ctx context.Context, id int, input *NewRealAmount) (*Requisition, error) {
	if !utils.IsAdmin(ctx) {
		return nil, utils.ErrorForbidden
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, newValidationError("reason", "a reason is required")
	}
	amount := utils.RoundMoney(input.Amount)
	if !amount.IsPositive() {
		return nil, newValidationError("amount", "must be greater than zero")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)

	var result Requisition
	err := withRequisitionForWrite(ctx, id, "SetRealAmount", func(tx *gorm.DB, existing *Requisition) error {
		result = *existing
		if len(existing.Items) == 0 {
			return newValidationError("items", "a requisition without items has no cost to audit")
		}
		if !existing.AckCostRealistic {
			return newValidationError("ack_cost_realistic", "estimated cost must be confirmed first")
		}
		if existing.RealAmount != nil && existing.RealAmount.Equal(amount) {
			return nil
		}

		result.RealAmount = &amount
		if err := tx.Model(&Requisition{ID: existing.ID}).Update("real_amount", amount).Error; err != nil {
			return err
		}
		entry := RequisitionRealAmountLog{
			RequisitionId: existing.ID,
			OldAmount:     existing.RealAmount,
			NewAmount:     amount,
			Reason:        reason,
			ChangedBy:     userId,
			ChangedByName: userName,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		description := fmt.Sprintf("Real amount of requisition #%d set to %v: %s", existing.ID, amount, reason)
		if err := createHistory(tx, HistoryActionRealAmount, existing.ID, existing, &result, description); err != nil {
			return err
		}
		return recordRequisitionEvent(ctx, tx, existing.ID, RequisitionEventRealAmount, existing, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func GetCostAudit(ctx context.Context, id int) (*CostAudit, error) {
	requisition, err := GetRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorServiceNotReady
	}

	var logs []*RequisitionRealAmountLog
	if err := db.WithContext(ctx).
		Where("requisition_id = ?", id).
		Order("changed_at DESC, id DESC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return buildCostAudit(requisition, logs), nil
}

func buildCostAudit(requisition *Requisition, logs []*RequisitionRealAmountLog) *CostAudit {
	audit := &CostAudit{
		RequisitionId:  requisition.ID,
		EstimatedTotal: requisition.EstimatedTotal(),
		RealAmount:     requisition.RealAmount,
		Logs:           logs,
	}
	if audit.Logs == nil {
		audit.Logs = []*RequisitionRealAmountLog{}
	}
	if requisition.RealAmount != nil {
		diff := requisition.RealAmount.Sub(audit.EstimatedTotal)
		audit.Difference = &diff
	}
	return audit
}
