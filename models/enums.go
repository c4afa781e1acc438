package models

import (
	"errors"

	"bitbucket.org/uniadq/requisitions_backend/duplicates"
)

type RequisitionStatus = duplicates.Status

const (
	RequisitionStatusRegistered = duplicates.StatusRegistered
	RequisitionStatusPending    = duplicates.StatusPending
	RequisitionStatusApproved   = duplicates.StatusApproved
	RequisitionStatusCompleted  = duplicates.StatusCompleted
	RequisitionStatusSent       = duplicates.StatusSent
	RequisitionStatusReceived   = duplicates.StatusReceived
	RequisitionStatusCancelled  = duplicates.StatusCancelled
)

type HistoryAction string

const (
	HistoryActionCreate     HistoryAction = "Create"
	HistoryActionUpdate     HistoryAction = "Update"
	HistoryActionDelete     HistoryAction = "Delete"
	HistoryActionCancel     HistoryAction = "Cancel"
	HistoryActionRealAmount HistoryAction = "RealAmt"
	HistoryActionForce      HistoryAction = "Force"
)

// RequisitionEventAction is the action code of an outbox event.
type RequisitionEventAction string

const (
	RequisitionEventCreate     RequisitionEventAction = "C"
	RequisitionEventUpdate     RequisitionEventAction = "U"
	RequisitionEventCancel     RequisitionEventAction = "X"
	RequisitionEventRealAmount RequisitionEventAction = "R"
	RequisitionEventForce      RequisitionEventAction = "F"
	RequisitionEventItem       RequisitionEventAction = "I"
)

func (a RequisitionEventAction) MarshalText() ([]byte, error) {
	return []byte(a), nil
}

func (a *RequisitionEventAction) UnmarshalText(b []byte) error {
	switch RequisitionEventAction(b) {
	case RequisitionEventCreate, RequisitionEventUpdate, RequisitionEventCancel,
		RequisitionEventRealAmount, RequisitionEventForce, RequisitionEventItem:
		*a = RequisitionEventAction(b)
		return nil
	}
	return errors.New("invalid requisition event action")
}

// CatalogName identifies a catalog in /api/catalogs/:name.
type CatalogName string

const (
	CatalogDepartments        CatalogName = "departments"
	CatalogProjects           CatalogName = "projects"
	CatalogFundingSources     CatalogName = "funding-sources"
	CatalogBudgetUnits        CatalogName = "budget-units"
	CatalogAgreements         CatalogName = "agreements"
	CatalogCategories         CatalogName = "categories"
	CatalogTenders            CatalogName = "tenders"
	CatalogExternalServices   CatalogName = "external-services"
	CatalogUnitsOfMeasurement CatalogName = "units"
	CatalogProducts           CatalogName = "products"
	CatalogItemDescriptions   CatalogName = "item-descriptions"
)
