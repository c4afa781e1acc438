package models

import (
	"context"
	"errors"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"bitbucket.org/uniadq/requisitions_backend/utils"
)

var ErrUnknownCatalog = errors.New("unknown catalog")

// CatalogEntry is any reference table a requisition points at.
type CatalogEntry interface {
	GetId() int
	DisplayLabel() string
}

// CatalogOption is the listing shape used by selects in the UI.
type CatalogOption struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// ListAllResource lists active rows, redis first, then db, caching the result.
func ListAllResource[T any](ctx context.Context, orders ...string) ([]*T, error) {
	logger := config.GetLogger()

	results, err := utils.RetrieveRedisList[T]()
	if err != nil {
		// a broken cache must not break the listing
		config.LogError(logger, "models", "ListAllResource", "RetrieveRedisList", utils.GetTypeName[T](), err)
		results = nil
	}
	if results != nil {
		return results, nil
	}

	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorServiceNotReady
	}
	var model T
	q := db.WithContext(ctx).Model(&model).Where("is_active = ?", true)
	for _, order := range orders {
		q = q.Order(order)
	}
	if err = q.Find(&results).Error; err != nil {
		return nil, err
	}

	if err := utils.StoreRedisList[T](results); err != nil {
		config.LogError(logger, "models", "ListAllResource", "StoreRedisList", utils.GetTypeName[T](), err)
	}
	return results, nil
}

func listOptions[T CatalogEntry](ctx context.Context, orders ...string) ([]CatalogOption, error) {
	rows, err := ListAllResource[T](ctx, orders...)
	if err != nil {
		return nil, err
	}
	out := make([]CatalogOption, 0, len(rows))
	for _, r := range rows {
		out = append(out, CatalogOption{ID: (*r).GetId(), Label: (*r).DisplayLabel()})
	}
	return out, nil
}

// ListCatalog returns the options of the named catalog.
func ListCatalog(ctx context.Context, name CatalogName) ([]CatalogOption, error) {
	switch name {
	case CatalogDepartments:
		return listOptions[Department](ctx, "code")
	case CatalogProjects:
		return listOptions[Project](ctx, "code")
	case CatalogFundingSources:
		return listOptions[FundingSource](ctx, "code")
	case CatalogBudgetUnits:
		return listOptions[BudgetUnit](ctx, "code")
	case CatalogAgreements:
		return listOptions[Agreement](ctx, "code")
	case CatalogCategories:
		return listOptions[Category](ctx, "name")
	case CatalogTenders:
		return listOptions[Tender](ctx, "code")
	case CatalogExternalServices:
		return listOptions[ExternalService](ctx, "code")
	case CatalogUnitsOfMeasurement:
		return listOptions[UnitOfMeasurement](ctx, "name")
	case CatalogProducts:
		return listOptions[Product](ctx, "description")
	case CatalogItemDescriptions:
		return listOptions[ItemDescription](ctx, "product_id", "text")
	}
	return nil, ErrUnknownCatalog
}
