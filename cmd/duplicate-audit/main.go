// duplicate-audit scans recent requisitions and writes every pair the
// duplicate check would flag to an .xlsx workbook.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/duplicate-audit -days 90 -out duplicates.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"bitbucket.org/uniadq/requisitions_backend/models"
	"bitbucket.org/uniadq/requisitions_backend/utils"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Duplicates"

func main() {
	days := flag.Int("days", 90, "Scan requisitions created in the last N days")
	window := flag.Int("window", 0, "Duplicate window in days (0 = configured default)")
	out := flag.String("out", "duplicates.xlsx", "Output workbook path")
	flag.Parse()

	config.ConnectDatabaseWithRetry()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "duplicate-audit")
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipOwnerScopeInContext(ctx, true)

	since := time.Now().AddDate(0, 0, -*days)
	pairs, err := models.AuditDuplicates(ctx, since, *window)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit failed: %v\n", err)
		os.Exit(1)
	}

	if err := writeWorkbook(*out, pairs); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("%d duplicate pair(s) since %s written to %s\n", len(pairs), since.Format("2006-01-02"), *out)
}

func writeWorkbook(filename string, pairs []models.DuplicatePair) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	headers := []string{"Requisition", "Created", "User", "Reason", "Duplicate of", "Duplicate status", "Duplicate date", "Match count", "Match ratio", "Matching signatures"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	for i, p := range pairs {
		values := []interface{}{
			p.RequisitionId,
			p.CreatedAt.Format("2006-01-02 15:04"),
			p.UserId,
			p.Reason,
			p.Match.ID,
			string(p.Match.Status),
			p.Match.Date.Format("2006-01-02 15:04"),
			p.Match.MatchCount,
			p.Match.MatchRatio,
			strings.Join(p.Match.MatchingSignatures, ", "),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return f.SaveAs(filename)
}
