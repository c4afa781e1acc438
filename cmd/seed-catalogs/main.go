// seed-catalogs loads catalog rows (departments, projects, products, ...) from
// a JSON file. Rows are matched by code, or by name/description for catalogs
// without codes, so the tool can be rerun safely.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-catalogs -file catalogs.json
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"bitbucket.org/uniadq/requisitions_backend/models"
	"bitbucket.org/uniadq/requisitions_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type codeName struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type seedItemDescription struct {
	Product           string          `json:"product"`
	Text              string          `json:"text"`
	EstimatedUnitCost decimal.Decimal `json:"estimated_unit_cost"`
}

type seedFile struct {
	Departments      []codeName            `json:"departments"`
	Projects         []codeName            `json:"projects"`
	FundingSources   []codeName            `json:"funding_sources"`
	BudgetUnits      []codeName            `json:"budget_units"`
	Agreements       []codeName            `json:"agreements"`
	Tenders          []codeName            `json:"tenders"`
	ExternalServices []codeName            `json:"external_services"`
	Categories       []string              `json:"categories"`
	Units            []string              `json:"units"`
	Products         []string              `json:"products"`
	ItemDescriptions []seedItemDescription `json:"item_descriptions"`
}

func main() {
	file := flag.String("file", "catalogs.json", "JSON file with catalog rows")
	migrate := flag.Bool("migrate", false, "Run AutoMigrate before seeding")
	flag.Parse()

	raw, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *file, err)
		os.Exit(1)
	}
	var seed seedFile
	if err := utils.UnmarshalFromJSON(raw, &seed); err != nil {
		fmt.Fprintf(os.Stderr, "parse %s: %v\n", *file, err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if *migrate {
		models.MigrateTable()
	}
	ctx := utils.SetIsAdminInContext(context.Background(), true)
	db := config.GetDB().WithContext(ctx)

	err = db.Transaction(func(tx *gorm.DB) error {
		return seedAll(tx, &seed)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	// cached option lists are stale now
	_ = utils.RemoveRedisList[models.Department]()
	_ = utils.RemoveRedisList[models.Project]()
	_ = utils.RemoveRedisList[models.FundingSource]()
	_ = utils.RemoveRedisList[models.BudgetUnit]()
	_ = utils.RemoveRedisList[models.Agreement]()
	_ = utils.RemoveRedisList[models.Tender]()
	_ = utils.RemoveRedisList[models.ExternalService]()
	_ = utils.RemoveRedisList[models.Category]()
	_ = utils.RemoveRedisList[models.UnitOfMeasurement]()
	_ = utils.RemoveRedisList[models.Product]()
	_ = utils.RemoveRedisList[models.ItemDescription]()
	fmt.Println("catalogs seeded")
}

func seedAll(tx *gorm.DB, seed *seedFile) error {
	for _, r := range seed.Departments {
		if err := upsert(tx, &models.Department{Code: r.Code}, &models.Department{Code: r.Code, Name: r.Name}); err != nil {
			return err
		}
	}
	for _, r := range seed.Projects {
		if err := upsert(tx, &models.Project{Code: r.Code}, &models.Project{Code: r.Code, Name: r.Name}); err != nil {
			return err
		}
	}
	for _, r := range seed.FundingSources {
		if err := upsert(tx, &models.FundingSource{Code: r.Code}, &models.FundingSource{Code: r.Code, Name: r.Name}); err != nil {
			return err
		}
	}
	for _, r := range seed.BudgetUnits {
		if err := upsert(tx, &models.BudgetUnit{Code: r.Code}, &models.BudgetUnit{Code: r.Code, Name: r.Name}); err != nil {
			return err
		}
	}
	for _, r := range seed.Agreements {
		if err := upsert(tx, &models.Agreement{Code: r.Code}, &models.Agreement{Code: r.Code, Description: r.Name}); err != nil {
			return err
		}
	}
	for _, r := range seed.Tenders {
		if err := upsert(tx, &models.Tender{Code: r.Code}, &models.Tender{Code: r.Code, Name: r.Name}); err != nil {
			return err
		}
	}
	for _, r := range seed.ExternalServices {
		if err := upsert(tx, &models.ExternalService{Code: r.Code}, &models.ExternalService{Code: r.Code, Name: r.Name}); err != nil {
			return err
		}
	}
	for _, name := range seed.Categories {
		if err := upsert(tx, &models.Category{Name: name}, &models.Category{Name: name}); err != nil {
			return err
		}
	}
	for _, name := range seed.Units {
		if err := upsert(tx, &models.UnitOfMeasurement{Name: name}, &models.UnitOfMeasurement{Name: name}); err != nil {
			return err
		}
	}

	products := make(map[string]int)
	for _, description := range seed.Products {
		p := models.Product{Description: description}
		if err := tx.Where(models.Product{Description: description}).FirstOrCreate(&p).Error; err != nil {
			return err
		}
		products[description] = p.ID
	}
	for _, d := range seed.ItemDescriptions {
		productId, ok := products[d.Product]
		if !ok {
			return fmt.Errorf("item description %q refers to unknown product %q", d.Text, d.Product)
		}
		row := models.ItemDescription{ProductId: productId, Text: d.Text, EstimatedUnitCost: utils.RoundMoney(d.EstimatedUnitCost)}
		if err := tx.Where("product_id = ? AND text_key = LOWER(TRIM(?))", productId, d.Text).
			Assign(models.ItemDescription{EstimatedUnitCost: row.EstimatedUnitCost}).
			FirstOrCreate(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// upsert finds a row by the non-zero fields of key and updates it with
// values, creating it when missing.
func upsert[T any](tx *gorm.DB, key *T, values *T) error {
	return tx.Where(key).Assign(values).FirstOrCreate(values).Error
}
