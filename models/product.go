package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"bitbucket.org/uniadq/requisitions_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Description string    `gorm:"size:255;not null;uniqueIndex" json:"description"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Product) GetId() int { return p.ID }

func (p Product) DisplayLabel() string { return p.Description }

// ItemDescription is a catalog description of a product with its reference
// unit cost. Text is unique per product regardless of case.
type ItemDescription struct {
	ID                int             `gorm:"primary_key" json:"id"`
	ProductId         int             `gorm:"not null;uniqueIndex:idx_itemdesc_product_text,priority:1" json:"product_id"`
	Text              string          `gorm:"size:500;not null" json:"text"`
	TextKey           string          `gorm:"size:500;not null;uniqueIndex:idx_itemdesc_product_text,priority:2" json:"-"`
	EstimatedUnitCost decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"estimated_unit_cost"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d ItemDescription) GetId() int { return d.ID }

func (d ItemDescription) DisplayLabel() string { return d.Text }

// itemDescriptionKey is the case-insensitive form stored in text_key.
func itemDescriptionKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func (d *ItemDescription) BeforeSave(tx *gorm.DB) error {
	d.TextKey = itemDescriptionKey(d.Text)
	return nil
}

var errItemDescriptionExists = newValidationError("text", "description already exists for this product")

type NewItemDescription struct {
	ProductId         int             `json:"product_id" validate:"required,gt=0"`
	Text              string          `json:"text" validate:"required,max=500"`
	EstimatedUnitCost decimal.Decimal `json:"estimated_unit_cost"`
}

func (input *NewItemDescription) validate(ctx context.Context, tx *gorm.DB) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.EstimatedUnitCost.IsNegative() {
		return newValidationError("estimated_unit_cost", "must not be negative")
	}
	var count int64
	if err := tx.WithContext(ctx).Model(&ItemDescription{}).
		Where("product_id = ? AND text_key = ?", input.ProductId, itemDescriptionKey(input.Text)).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errItemDescriptionExists
	}
	return nil
}

func CreateItemDescription(ctx context.Context, input *NewItemDescription) (*ItemDescription, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorServiceNotReady
	}
	if err := utils.ValidateResourceId[Product](ctx, input.ProductId); err != nil {
		return nil, newValidationError("product_id", "product does not exist")
	}
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}

	description := ItemDescription{
		ProductId:         input.ProductId,
		Text:              strings.TrimSpace(input.Text),
		EstimatedUnitCost: utils.RoundMoney(input.EstimatedUnitCost),
		IsActive:          utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&description).Error; err != nil {
		// a concurrent insert of the same text loses on the unique index
		if isDuplicateKeyErr(err) {
			return nil, errItemDescriptionExists
		}
		return nil, err
	}
	if err := utils.RemoveRedisList[ItemDescription](); err != nil {
		config.LogError(config.GetLogger(), "models", "CreateItemDescription", "clear catalog cache", nil, err)
	}
	return &description, nil
}

// loadItemDescriptions fetches the catalog descriptions referenced by items,
// keyed by id. Missing ids are reported as a validation error on field.
func loadItemDescriptions(tx *gorm.DB, ids []int, field string) (map[int]*ItemDescription, error) {
	out := make(map[int]*ItemDescription, len(ids))
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*ItemDescription
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, newValidationError(field, "item description %d does not exist", id)
		}
	}
	return out, nil
}

func loadProducts(tx *gorm.DB, ids []int) (map[int]*Product, error) {
	out := make(map[int]*Product, len(ids))
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*Product
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, newValidationError("product_id", "product %d does not exist", id)
		}
	}
	return out, nil
}
