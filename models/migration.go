package models

import (
	"log"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	db := config.GetDB()

	if err := backfillItemDescriptionKeys(db); err != nil {
		log.Fatal(err)
	}

	err := db.AutoMigrate(
		&Department{}, &Project{}, &FundingSource{}, &BudgetUnit{}, &Agreement{}, &Category{},
		&Tender{}, &ExternalService{}, &UnitOfMeasurement{},
		&Product{}, &ItemDescription{},
		&Requisition{}, &RequisitionItem{}, &RequisitionRealAmountLog{},
		&History{},
		&RequisitionEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}

// backfillItemDescriptionKeys fills text_key on tables created before the
// column existed, so the unique index can be built.
func backfillItemDescriptionKeys(db *gorm.DB) error {
	m := db.Migrator()
	if !m.HasTable(&ItemDescription{}) || m.HasColumn(&ItemDescription{}, "TextKey") {
		return nil
	}
	if err := m.AddColumn(&ItemDescription{}, "TextKey"); err != nil {
		return err
	}
	return db.Exec("UPDATE item_descriptions SET text_key = LOWER(TRIM(text))").Error
}
