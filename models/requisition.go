package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"bitbucket.org/uniadq/requisitions_backend/duplicates"
	"bitbucket.org/uniadq/requisitions_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Requisition struct {
	ID                     int                `gorm:"primary_key" json:"id"`
	UserId                 int                `gorm:"not null;index:idx_requisition_owner_created,priority:1" json:"user_id"`
	UserName               string             `gorm:"size:100" json:"user_name"`
	RequestingDepartmentId *int               `gorm:"index" json:"requesting_department"`
	ProjectId              *int               `gorm:"index" json:"project"`
	FundingSourceId        *int               `json:"funding_source"`
	BudgetUnitId           *int               `json:"budget_unit"`
	AgreementId            *int               `json:"agreement"`
	TenderId               *int               `json:"tender"`
	ExternalServiceId      *int               `json:"external_service"`
	CategoryId             *int               `json:"category"`
	Reason                 string             `gorm:"type:text;not null" json:"reason"`
	Observations           string             `gorm:"type:text" json:"observations"`
	Status                 RequisitionStatus  `gorm:"size:20;not null;default:'registered';index" json:"status"`
	AckCostRealistic       bool               `gorm:"not null;default:false" json:"ack_cost_realistic"`
	RealAmount             *decimal.Decimal   `gorm:"type:decimal(20,2)" json:"real_amount"`
	CancelledAt            *time.Time         `json:"cancelled_at"`
	CancelledBy            *int               `json:"cancelled_by"`
	CancelReason           string             `gorm:"type:text" json:"cancel_reason"`
	CreatedAt              time.Time          `gorm:"autoCreateTime;index;index:idx_requisition_owner_created,priority:2" json:"created_at"`
	UpdatedAt              time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
	Items                  []*RequisitionItem `gorm:"foreignKey:RequisitionId" json:"items"`
}

// NewRequisition is the create and update payload. On update a nil Items
// keeps the current lines and an empty Status keeps the current status.
type NewRequisition struct {
	RequestingDepartment *int                 `json:"requesting_department" validate:"omitempty,gt=0"`
	Project              *int                 `json:"project" validate:"omitempty,gt=0"`
	FundingSource        *int                 `json:"funding_source" validate:"omitempty,gt=0"`
	BudgetUnit           *int                 `json:"budget_unit" validate:"omitempty,gt=0"`
	Agreement            *int                 `json:"agreement" validate:"omitempty,gt=0"`
	Tender               *int                 `json:"tender" validate:"omitempty,gt=0"`
	ExternalService      *int                 `json:"external_service" validate:"omitempty,gt=0"`
	Category             *int                 `json:"category" validate:"omitempty,gt=0"`
	Reason               string               `json:"reason" validate:"required,max=2000"`
	Observations         string               `json:"observations" validate:"max=4000"`
	Status               RequisitionStatus    `json:"status"`
	AckCostRealistic     bool                 `json:"ack_cost_realistic"`
	Items                []NewRequisitionItem `json:"items"`
}

// WriteOptions carry the duplicate-check knobs of one request.
type WriteOptions struct {
	ForceDuplicates bool
	// WindowDays of 0 uses the configured default.
	WindowDays int
}

// Header returns the identifiers compared by the duplicate check.
func (r *Requisition) Header() duplicates.HeaderIDs {
	return duplicates.HeaderIDs{
		RequestingDepartment: r.RequestingDepartmentId,
		Project:              r.ProjectId,
		FundingSource:        r.FundingSourceId,
		BudgetUnit:           r.BudgetUnitId,
		Agreement:            r.AgreementId,
		Tender:               r.TenderId,
		ExternalService:      r.ExternalServiceId,
	}
}

func (r *Requisition) subject() duplicates.Subject {
	var current *int
	if r.ID > 0 {
		id := r.ID
		current = &id
	}
	return duplicates.Subject{
		CurrentID: current,
		Header:    r.Header(),
		Items:     itemRows(r.Items),
		Reason:    r.Reason,
	}
}

func (r *Requisition) EstimatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.EstimatedTotal)
	}
	return total
}

func (r *Requisition) itemIndex(itemId int) int {
	for i, item := range r.Items {
		if item.ID == itemId {
			return i
		}
	}
	return -1
}

// checkReadyToSend enforces what a requisition needs before it goes out.
func (r *Requisition) checkReadyToSend() error {
	if r.Status != RequisitionStatusSent {
		return nil
	}
	if !r.AckCostRealistic {
		return newValidationError("ack_cost_realistic", "must be confirmed before sending")
	}
	if len(r.Items) == 0 {
		return newValidationError("items", "at least one item is required before sending")
	}
	for i, item := range r.Items {
		if !item.EstimatedTotal.IsPositive() {
			return newValidationError(fmt.Sprintf("items[%d].estimated_total", i), "must be greater than zero before sending")
		}
	}
	return nil
}

func (input *NewRequisition) applyTo(r *Requisition) {
	r.RequestingDepartmentId = input.RequestingDepartment
	r.ProjectId = input.Project
	r.FundingSourceId = input.FundingSource
	r.BudgetUnitId = input.BudgetUnit
	r.AgreementId = input.Agreement
	r.TenderId = input.Tender
	r.ExternalServiceId = input.ExternalService
	r.CategoryId = input.Category
	r.Reason = strings.TrimSpace(input.Reason)
	r.Observations = strings.TrimSpace(input.Observations)
	r.AckCostRealistic = input.AckCostRealistic
}

// validate checks the payload shape and the status the caller asks for.
// Cancellation has its own operation; other workflow statuses are set by
// administrators only.
func (input *NewRequisition) validate(ctx context.Context, previous RequisitionStatus) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if strings.TrimSpace(input.Reason) == "" {
		return newValidationError("reason", "must not be blank")
	}
	if input.Status == "" {
		return nil
	}
	if !input.Status.Valid() {
		return newValidationError("status", "invalid status %q", string(input.Status))
	}
	if input.Status == RequisitionStatusCancelled {
		return newValidationError("status", "use the cancel operation to cancel a requisition")
	}
	if input.Status == previous {
		return nil
	}
	if input.Status != RequisitionStatusRegistered && input.Status != RequisitionStatusSent && !utils.IsAdmin(ctx) {
		return newValidationError("status", "only administrators may set status %q", string(input.Status))
	}
	return nil
}

func (input *NewRequisition) validateHeaderRefs(ctx context.Context) error {
	checks := []struct {
		field string
		id    *int
		check func(context.Context, interface{}) error
	}{
		{"requesting_department", input.RequestingDepartment, utils.ValidateResourceId[Department]},
		{"project", input.Project, utils.ValidateResourceId[Project]},
		{"funding_source", input.FundingSource, utils.ValidateResourceId[FundingSource]},
		{"budget_unit", input.BudgetUnit, utils.ValidateResourceId[BudgetUnit]},
		{"agreement", input.Agreement, utils.ValidateResourceId[Agreement]},
		{"tender", input.Tender, utils.ValidateResourceId[Tender]},
		{"external_service", input.ExternalService, utils.ValidateResourceId[ExternalService]},
		{"category", input.Category, utils.ValidateResourceId[Category]},
	}
	for _, c := range checks {
		if c.id == nil {
			continue
		}
		if err := c.check(ctx, *c.id); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return newValidationError(c.field, "%d does not exist", *c.id)
			}
			return err
		}
	}
	return nil
}

// CreateRequisition stores a new requisition for the requesting user. The
// duplicate check runs inside the write transaction and a hit aborts it with
// a *duplicates.ConflictError unless opts.ForceDuplicates is set.
func CreateRequisition(ctx context.Context, input *NewRequisition, opts WriteOptions) (*Requisition, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, utils.ErrorUnauthorized
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, newValidationError("items", "at least one item is required")
	}
	if err := input.validateHeaderRefs(ctx); err != nil {
		return nil, err
	}

	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorServiceNotReady
	}

	requisition := Requisition{
		UserId:   userId,
		UserName: userName,
		Status:   RequisitionStatusRegistered,
	}
	input.applyTo(&requisition)
	if input.Status != "" {
		requisition.Status = input.Status
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := resolveItems(tx, input.Items, "items", 0)
		if err != nil {
			return err
		}
		requisition.Items = items
		if err := requisition.checkReadyToSend(); err != nil {
			return err
		}

		result, err := guardDuplicates(ctx, tx, requisition.subject(), duplicates.Transition{
			Kind:   duplicates.WriteCreate,
			Target: requisition.Status,
		}, opts)
		if err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(&requisition).Error; err != nil {
			return err
		}
		if err := insertItems(tx, requisition.ID, items); err != nil {
			return err
		}

		description := fmt.Sprintf("Requisition #%d created with %d item(s) for %v.", requisition.ID, len(items), requisition.EstimatedTotal())
		if err := createHistory(tx, HistoryActionCreate, requisition.ID, nil, &requisition, description); err != nil {
			return err
		}
		if err := recordRequisitionEvent(ctx, tx, requisition.ID, RequisitionEventCreate, nil, &requisition); err != nil {
			return err
		}
		return recordForcedBypass(ctx, tx, &requisition, result)
	})
	if err != nil {
		return nil, err
	}
	return &requisition, nil
}

// UpdateRequisition replaces the header of a requisition and, when
// input.Items is not nil, its lines.
func UpdateRequisition(ctx context.Context, id int, input *NewRequisition, opts WriteOptions) (*Requisition, error) {
	var updated Requisition
	err := withRequisitionForWrite(ctx, id, "UpdateRequisition", func(tx *gorm.DB, existing *Requisition) error {
		if err := input.validate(ctx, existing.Status); err != nil {
			return err
		}
		if input.Items != nil && len(input.Items) == 0 {
			return newValidationError("items", "at least one item is required")
		}
		if err := input.validateHeaderRefs(ctx); err != nil {
			return err
		}

		updated = *existing
		input.applyTo(&updated)
		if input.Status != "" {
			updated.Status = input.Status
		}
		if input.Items != nil {
			items, err := resolveItems(tx, input.Items, "items", 0)
			if err != nil {
				return err
			}
			updated.Items = items
		}
		if err := updated.checkReadyToSend(); err != nil {
			return err
		}

		result, err := guardDuplicates(ctx, tx, updated.subject(), duplicates.Transition{
			Kind:     duplicates.WriteUpdate,
			Previous: existing.Status,
			Target:   input.Status,
		}, opts)
		if err != nil {
			return err
		}

		if err := tx.Model(&Requisition{ID: existing.ID}).
			Select("RequestingDepartmentId", "ProjectId", "FundingSourceId", "BudgetUnitId", "AgreementId",
				"TenderId", "ExternalServiceId", "CategoryId", "Reason", "Observations", "Status", "AckCostRealistic").
			Omit(clause.Associations).
			Updates(&updated).Error; err != nil {
			return err
		}
		if input.Items != nil {
			if err := tx.Where("requisition_id = ?", existing.ID).Delete(&RequisitionItem{}).Error; err != nil {
				return err
			}
			if err := insertItems(tx, existing.ID, updated.Items); err != nil {
				return err
			}
		}

		description := fmt.Sprintf("Requisition #%d updated (%s -> %s).", existing.ID, existing.Status, updated.Status)
		if err := createHistory(tx, HistoryActionUpdate, existing.ID, existing, &updated, description); err != nil {
			return err
		}
		if err := recordRequisitionEvent(ctx, tx, existing.ID, RequisitionEventUpdate, existing, &updated); err != nil {
			return err
		}
		return recordForcedBypass(ctx, tx, &updated, result)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// CancelRequisition is an administrator action; a cancelled requisition is
// frozen and no longer takes part in duplicate checks.
func CancelRequisition(ctx context.Context, id int, reason string) (*Requisition, error) {
	if !utils.IsAdmin(ctx) {
		return nil, utils.ErrorForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newValidationError("reason", "a cancellation reason is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	var cancelled Requisition
	err := withRequisitionForWrite(ctx, id, "CancelRequisition", func(tx *gorm.DB, existing *Requisition) error {
		now := time.Now().UTC()
		cancelled = *existing
		cancelled.Status = RequisitionStatusCancelled
		cancelled.CancelledAt = &now
		cancelled.CancelledBy = &userId
		cancelled.CancelReason = reason

		if err := tx.Model(&Requisition{ID: existing.ID}).Updates(map[string]interface{}{
			"status":        RequisitionStatusCancelled,
			"cancelled_at":  &now,
			"cancelled_by":  userId,
			"cancel_reason": reason,
		}).Error; err != nil {
			return err
		}
		if err := createHistory(tx, HistoryActionCancel, existing.ID, existing, &cancelled, "Requisition cancelled: "+reason); err != nil {
			return err
		}
		return recordRequisitionEvent(ctx, tx, existing.ID, RequisitionEventCancel, existing, &cancelled)
	})
	if err != nil {
		return nil, err
	}
	return &cancelled, nil
}

func GetRequisition(ctx context.Context, id int) (*Requisition, error) {
	requisition, err := utils.FetchModel[Requisition](ctx, id, "Items", "Items.Description", "Items.Product")
	if err != nil {
		return nil, err
	}
	fillLabels(requisition.Items)
	return requisition, nil
}

// withRequisitionForWrite locks the requisition, loads it with its lines
// inside a transaction and refuses to touch cancelled ones.
func withRequisitionForWrite(ctx context.Context, id int, funcName string, fn func(tx *gorm.DB, requisition *Requisition) error) error {
	db := config.GetDB()
	if db == nil {
		return utils.ErrorServiceNotReady
	}
	release, err := utils.RequisitionLock(ctx, id, "models", funcName)
	if err != nil {
		return err
	}
	defer release()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := utils.FetchModelTx[Requisition](
			tx.Clauses(clause.Locking{Strength: "UPDATE"}),
			id, "Items", "Items.Description", "Items.Product")
		if err != nil {
			return err
		}
		if existing.Status == RequisitionStatusCancelled {
			return ErrRequisitionCancelled
		}
		fillLabels(existing.Items)
		return fn(tx, existing)
	})
}
