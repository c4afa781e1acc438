package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/uniadq/requisitions_backend/duplicates"
	"bitbucket.org/uniadq/requisitions_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RequisitionItem struct {
	ID                  int              `gorm:"primary_key" json:"id"`
	RequisitionId       int              `gorm:"index;not null" json:"requisition_id"`
	ProductId           *int             `gorm:"index" json:"product_id"`
	DescriptionId       *int             `gorm:"index" json:"description_id"`
	ManualDescription   string           `gorm:"size:500" json:"manual_description"`
	UnitOfMeasurementId *int             `json:"unit_of_measurement_id"`
	Quantity            decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"quantity"`
	EstimatedUnitCost   decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"estimated_unit_cost"`
	EstimatedTotal      decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"estimated_total"`
	Product             *Product         `gorm:"foreignKey:ProductId" json:"-"`
	Description         *ItemDescription `gorm:"foreignKey:DescriptionId" json:"-"`
	Label               string           `gorm:"-" json:"label"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewRequisitionItem is one line of a create or update payload. Either a
// catalog description or a manual description with a unit cost is required.
type NewRequisitionItem struct {
	ProductId           *int             `json:"product_id" validate:"omitempty,gt=0"`
	DescriptionId       *int             `json:"description_id" validate:"omitempty,gt=0"`
	ManualDescription   string           `json:"manual_description" validate:"max=500"`
	UnitOfMeasurementId *int             `json:"unit_of_measurement_id" validate:"omitempty,gt=0"`
	Quantity            decimal.Decimal  `json:"quantity"`
	EstimatedUnitCost   *decimal.Decimal `json:"estimated_unit_cost"`
	EstimatedTotal      *decimal.Decimal `json:"estimated_total"`
}

// displayLabel picks catalog text first, then product, then manual text.
func (item *RequisitionItem) displayLabel() string {
	if item.Description != nil {
		return item.Description.DisplayLabel()
	}
	if item.ManualDescription != "" {
		return item.ManualDescription
	}
	if item.Product != nil {
		return item.Product.DisplayLabel()
	}
	return ""
}

// Row is the view of the item the duplicate check reads.
func (item *RequisitionItem) Row() duplicates.ItemRow {
	return duplicates.ItemRow{
		ProductID:         item.ProductId,
		DescriptionID:     item.DescriptionId,
		ManualDescription: item.ManualDescription,
		Label:             duplicates.DisplayLabel(item.displayLabel()),
		EstimatedTotal:    item.EstimatedTotal,
	}
}

func itemRows(items []*RequisitionItem) []duplicates.ItemRow {
	rows := make([]duplicates.ItemRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, item.Row())
	}
	return rows
}

func fillLabels(items []*RequisitionItem) {
	for _, item := range items {
		item.Label = item.displayLabel()
	}
}

// resolve applies the line rules and computes the money columns. field is
// the prefix used in validation errors, e.g. "items[2]".
func (input *NewRequisitionItem) resolve(field string, descriptions map[int]*ItemDescription, products map[int]*Product) (*RequisitionItem, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Quantity.IsPositive() {
		return nil, newValidationError(field+".quantity", "must be greater than zero")
	}

	item := &RequisitionItem{
		ProductId:           input.ProductId,
		DescriptionId:       input.DescriptionId,
		UnitOfMeasurementId: input.UnitOfMeasurementId,
		Quantity:            input.Quantity,
	}

	var unitCost decimal.Decimal
	if input.DescriptionId != nil {
		desc, ok := descriptions[*input.DescriptionId]
		if !ok {
			return nil, newValidationError(field+".description_id", "item description %d does not exist", *input.DescriptionId)
		}
		if input.ProductId != nil && *input.ProductId != desc.ProductId {
			return nil, newValidationError(field+".product_id", "does not match the product of the description")
		}
		productId := desc.ProductId
		item.ProductId = &productId
		item.Description = desc
		// catalog text wins over anything typed by hand
		item.ManualDescription = ""
		unitCost = desc.EstimatedUnitCost
		if input.EstimatedUnitCost != nil {
			unitCost = *input.EstimatedUnitCost
		}
	} else {
		manual := strings.TrimSpace(input.ManualDescription)
		if manual == "" {
			return nil, newValidationError(field+".manual_description", "a catalog description or a manual description is required")
		}
		if input.EstimatedUnitCost == nil {
			return nil, newValidationError(field+".estimated_unit_cost", "required with a manual description")
		}
		item.ManualDescription = manual
		unitCost = *input.EstimatedUnitCost
	}

	if item.ProductId != nil {
		product, ok := products[*item.ProductId]
		if !ok {
			return nil, newValidationError(field+".product_id", "product %d does not exist", *item.ProductId)
		}
		item.Product = product
	}

	item.EstimatedUnitCost = utils.RoundMoney(unitCost)
	if !item.EstimatedUnitCost.IsPositive() {
		return nil, newValidationError(field+".estimated_unit_cost", "must be greater than zero")
	}
	if input.EstimatedTotal != nil {
		item.EstimatedTotal = utils.RoundMoney(*input.EstimatedTotal)
	} else {
		item.EstimatedTotal = utils.RoundMoney(unitCost.Mul(input.Quantity))
	}
	if !item.EstimatedTotal.IsPositive() {
		return nil, newValidationError(field+".estimated_total", "must be greater than zero")
	}
	item.Label = item.displayLabel()
	return item, nil
}

// resolveItems loads the catalogs referenced by inputs and resolves each line.
func resolveItems(tx *gorm.DB, inputs []NewRequisitionItem, fieldPrefix string, offset int) ([]*RequisitionItem, error) {
	var descIds, productIds []int
	for _, in := range inputs {
		if in.DescriptionId != nil {
			descIds = append(descIds, *in.DescriptionId)
		}
		if in.ProductId != nil {
			productIds = append(productIds, *in.ProductId)
		}
	}
	descriptions, err := loadItemDescriptions(tx, descIds, fieldPrefix+".description_id")
	if err != nil {
		return nil, err
	}
	for _, d := range descriptions {
		productIds = append(productIds, d.ProductId)
	}
	products, err := loadProducts(tx, productIds)
	if err != nil {
		return nil, err
	}

	items := make([]*RequisitionItem, 0, len(inputs))
	for i := range inputs {
		item, err := inputs[i].resolve(fmt.Sprintf("%s[%d]", fieldPrefix, i+offset), descriptions, products)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func insertItems(tx *gorm.DB, requisitionId int, items []*RequisitionItem) error {
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		item.RequisitionId = requisitionId
	}
	return tx.Omit(clause.Associations).Create(&items).Error
}

func ListRequisitionItems(ctx context.Context, requisitionId int) ([]*RequisitionItem, error) {
	requisition, err := GetRequisition(ctx, requisitionId)
	if err != nil {
		return nil, err
	}
	return requisition.Items, nil
}

// AddRequisitionItem appends a line. While the requisition is registered
// the duplicate check runs again, as for any other save.
func AddRequisitionItem(ctx context.Context, requisitionId int, input *NewRequisitionItem, opts WriteOptions) (*RequisitionItem, error) {
	var created *RequisitionItem
	err := withRequisitionForWrite(ctx, requisitionId, "AddRequisitionItem", func(tx *gorm.DB, requisition *Requisition) error {
		items, err := resolveItems(tx, []NewRequisitionItem{*input}, "items", len(requisition.Items))
		if err != nil {
			return err
		}
		created = items[0]

		after := *requisition
		after.Items = append(append([]*RequisitionItem{}, requisition.Items...), created)
		if err := after.checkReadyToSend(); err != nil {
			return err
		}
		if err := guardItemWrite(ctx, tx, requisition, &after, opts); err != nil {
			return err
		}
		if err := insertItems(tx, requisition.ID, items); err != nil {
			return err
		}
		return recordItemChange(ctx, tx, requisition, &after, fmt.Sprintf("Item added to requisition #%d.", requisition.ID))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func UpdateRequisitionItem(ctx context.Context, requisitionId int, itemId int, input *NewRequisitionItem, opts WriteOptions) (*RequisitionItem, error) {
	var updated *RequisitionItem
	err := withRequisitionForWrite(ctx, requisitionId, "UpdateRequisitionItem", func(tx *gorm.DB, requisition *Requisition) error {
		index := requisition.itemIndex(itemId)
		if index < 0 {
			return utils.ErrorRecordNotFound
		}
		items, err := resolveItems(tx, []NewRequisitionItem{*input}, "items", index)
		if err != nil {
			return err
		}
		updated = items[0]
		updated.ID = itemId
		updated.RequisitionId = requisition.ID
		updated.CreatedAt = requisition.Items[index].CreatedAt

		after := *requisition
		after.Items = append([]*RequisitionItem{}, requisition.Items...)
		after.Items[index] = updated
		if err := after.checkReadyToSend(); err != nil {
			return err
		}
		if err := guardItemWrite(ctx, tx, requisition, &after, opts); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(updated).Error; err != nil {
			return err
		}
		return recordItemChange(ctx, tx, requisition, &after, fmt.Sprintf("Item #%d of requisition #%d updated.", itemId, requisition.ID))
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func DeleteRequisitionItem(ctx context.Context, requisitionId int, itemId int, opts WriteOptions) error {
	return withRequisitionForWrite(ctx, requisitionId, "DeleteRequisitionItem", func(tx *gorm.DB, requisition *Requisition) error {
		index := requisition.itemIndex(itemId)
		if index < 0 {
			return utils.ErrorRecordNotFound
		}

		after := *requisition
		after.Items = make([]*RequisitionItem, 0, len(requisition.Items)-1)
		after.Items = append(after.Items, requisition.Items[:index]...)
		after.Items = append(after.Items, requisition.Items[index+1:]...)
		if err := after.checkReadyToSend(); err != nil {
			return err
		}
		if err := guardItemWrite(ctx, tx, requisition, &after, opts); err != nil {
			return err
		}
		if err := tx.Where("requisition_id = ?", requisition.ID).Delete(&RequisitionItem{}, itemId).Error; err != nil {
			return err
		}
		return recordItemChange(ctx, tx, requisition, &after, fmt.Sprintf("Item #%d removed from requisition #%d.", itemId, requisition.ID))
	})
}

// guardItemWrite treats a line change as a save that keeps the status.
func guardItemWrite(ctx context.Context, tx *gorm.DB, before *Requisition, after *Requisition, opts WriteOptions) error {
	result, err := guardDuplicates(ctx, tx, after.subject(), duplicates.Transition{
		Kind:     duplicates.WriteUpdate,
		Previous: before.Status,
	}, opts)
	if err != nil {
		return err
	}
	return recordForcedBypass(ctx, tx, after, result)
}

func recordItemChange(ctx context.Context, tx *gorm.DB, before *Requisition, after *Requisition, description string) error {
	if err := createHistory(tx, HistoryActionUpdate, before.ID, before, after, description); err != nil {
		return err
	}
	return recordRequisitionEvent(ctx, tx, before.ID, RequisitionEventItem, before, after)
}
