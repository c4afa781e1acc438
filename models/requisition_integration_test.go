package models

import (
	"context"
	"errors"
	"os"
	"testing"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"bitbucket.org/uniadq/requisitions_backend/duplicates"
	"bitbucket.org/uniadq/requisitions_backend/utils"
)

// Runs against the database configured by DB_* when INTEGRATION_TESTS=1.
func integrationDB(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run against MySQL")
	}
	if config.GetDB() == nil {
		db, err := config.OpenDatabase(config.DSN())
		if err != nil {
			t.Fatalf("open database: %v", err)
		}
		config.SetDB(db)
	}
	MigrateTable()
}

func userContext(id int, admin bool) context.Context {
	ctx := utils.SetUserIdInContext(context.Background(), id)
	ctx = utils.SetUserNameInContext(ctx, "tester")
	return utils.SetIsAdminInContext(ctx, admin)
}

func TestIntegrationDuplicateGuard(t *testing.T) {
	integrationDB(t)
	db := config.GetDB()

	dept := Department{Code: "IT-DUP", Name: "Integration"}
	if err := db.Where(Department{Code: dept.Code}).FirstOrCreate(&dept).Error; err != nil {
		t.Fatalf("seed department: %v", err)
	}
	ctx := userContext(900001, false)

	input := &NewRequisition{
		RequestingDepartment: &dept.ID,
		Reason:               "Integration duplicate probe",
		Items: []NewRequisitionItem{
			{ManualDescription: "Whiteboard markers", Quantity: dec("12"), EstimatedUnitCost: decPtr("1.50")},
		},
	}
	first, err := CreateRequisition(ctx, input, WriteOptions{})
	if err != nil {
		var conflict *duplicates.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("first create: %v", err)
		}
		// left over from a previous run
		first, err = CreateRequisition(ctx, input, WriteOptions{ForceDuplicates: true})
		if err != nil {
			t.Fatalf("forced first create: %v", err)
		}
	}

	_, err = CreateRequisition(ctx, input, WriteOptions{})
	var conflict *duplicates.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("second create: expected conflict, got %v", err)
	}
	found := false
	for _, d := range conflict.Response.Duplicates {
		if d.ID == first.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("conflict does not list #%d: %+v", first.ID, conflict.Response.Duplicates)
	}

	forced, err := CreateRequisition(ctx, input, WriteOptions{ForceDuplicates: true})
	if err != nil {
		t.Fatalf("forced create: %v", err)
	}
	var count int64
	db.Model(&History{}).Where("reference_id = ? AND action_type = ?", forced.ID, HistoryActionForce).Count(&count)
	if count != 1 {
		t.Fatalf("forced create wrote %d Force history rows", count)
	}

	other := userContext(900002, false)
	result, err := CheckRequisitionDuplicates(other, forced.ID, 0)
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("another user should not see #%d, got %v %v", forced.ID, result, err)
	}

	admin := userContext(1, true)
	if _, err := CancelRequisition(admin, forced.ID, "cleanup"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := CancelRequisition(admin, first.ID, "cleanup"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
}
