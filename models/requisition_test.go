package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/uniadq/requisitions_backend/duplicates"
	"bitbucket.org/uniadq/requisitions_backend/utils"
	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	return ve.Field
}

func TestResolveItemCatalogDescription(t *testing.T) {
	descriptions := map[int]*ItemDescription{
		7: {ID: 7, ProductId: 3, Text: "A4 paper, 80g", EstimatedUnitCost: dec("4.50")},
	}
	products := map[int]*Product{3: {ID: 3, Description: "Paper"}}

	input := NewRequisitionItem{
		DescriptionId:     intPtr(7),
		ManualDescription: "typed anyway",
		Quantity:          dec("10"),
	}
	item, err := input.resolve("items[0]", descriptions, products)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.ManualDescription != "" {
		t.Fatalf("manual description should be cleared, got %q", item.ManualDescription)
	}
	if item.ProductId == nil || *item.ProductId != 3 {
		t.Fatalf("product should come from the description, got %v", item.ProductId)
	}
	if !item.EstimatedTotal.Equal(dec("45.00")) {
		t.Fatalf("total = %v, want 45.00", item.EstimatedTotal)
	}
	if item.Label != "A4 paper, 80g" {
		t.Fatalf("label = %q", item.Label)
	}
}

func TestResolveItemRules(t *testing.T) {
	descriptions := map[int]*ItemDescription{7: {ID: 7, ProductId: 3, Text: "Toner", EstimatedUnitCost: dec("0")}}
	products := map[int]*Product{3: {ID: 3, Description: "Printer supplies"}}

	tests := []struct {
		name  string
		input NewRequisitionItem
		field string
	}{
		{"no description at all", NewRequisitionItem{Quantity: dec("1"), EstimatedUnitCost: decPtr("2")}, "items[0].manual_description"},
		{"manual without cost", NewRequisitionItem{ManualDescription: "chairs", Quantity: dec("1")}, "items[0].estimated_unit_cost"},
		{"zero quantity", NewRequisitionItem{ManualDescription: "chairs", Quantity: dec("0"), EstimatedUnitCost: decPtr("2")}, "items[0].quantity"},
		{"unknown description", NewRequisitionItem{DescriptionId: intPtr(99), Quantity: dec("1")}, "items[0].description_id"},
		{"product mismatch", NewRequisitionItem{DescriptionId: intPtr(7), ProductId: intPtr(4), Quantity: dec("1")}, "items[0].product_id"},
		{"catalog cost zero", NewRequisitionItem{DescriptionId: intPtr(7), Quantity: dec("1")}, "items[0].estimated_unit_cost"},
		{"unknown product", NewRequisitionItem{ProductId: intPtr(5), ManualDescription: "x", Quantity: dec("1"), EstimatedUnitCost: decPtr("1")}, "items[0].product_id"},
		{"rounds to zero", NewRequisitionItem{ManualDescription: "x", Quantity: dec("1"), EstimatedUnitCost: decPtr("0.004")}, "items[0].estimated_unit_cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.input.resolve("items[0]", descriptions, products)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got := fieldOf(t, err); got != tt.field {
				t.Fatalf("field = %q, want %q", got, tt.field)
			}
		})
	}
}

func TestResolveItemRoundsMoney(t *testing.T) {
	input := NewRequisitionItem{
		ManualDescription: "  Cables  ",
		Quantity:          dec("3"),
		EstimatedUnitCost: decPtr("1.005"),
	}
	item, err := input.resolve("items[0]", nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.ManualDescription != "Cables" {
		t.Fatalf("manual description = %q", item.ManualDescription)
	}
	if !item.EstimatedUnitCost.Equal(dec("1.01")) {
		t.Fatalf("unit cost = %v, want 1.01", item.EstimatedUnitCost)
	}
	if !item.EstimatedTotal.Equal(dec("3.02")) {
		t.Fatalf("total = %v, want 3.02", item.EstimatedTotal)
	}
}

func TestCheckReadyToSend(t *testing.T) {
	line := func(total string) *RequisitionItem { return &RequisitionItem{EstimatedTotal: dec(total)} }

	tests := []struct {
		name  string
		req   Requisition
		field string
	}{
		{"registered is never gated", Requisition{Status: RequisitionStatusRegistered}, ""},
		{"missing acknowledgement", Requisition{Status: RequisitionStatusSent, Items: []*RequisitionItem{line("5")}}, "ack_cost_realistic"},
		{"no items", Requisition{Status: RequisitionStatusSent, AckCostRealistic: true}, "items"},
		{"zero total", Requisition{Status: RequisitionStatusSent, AckCostRealistic: true, Items: []*RequisitionItem{line("5"), line("0")}}, "items[1].estimated_total"},
		{"ready", Requisition{Status: RequisitionStatusSent, AckCostRealistic: true, Items: []*RequisitionItem{line("5")}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.checkReadyToSend()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if got := fieldOf(t, err); got != tt.field {
				t.Fatalf("field = %q, want %q", got, tt.field)
			}
		})
	}
}

func TestRequisitionSubject(t *testing.T) {
	req := Requisition{
		ID:                     12,
		RequestingDepartmentId: intPtr(1),
		ProjectId:              intPtr(2),
		TenderId:               intPtr(9),
		Reason:                 "Lab supplies",
		Items: []*RequisitionItem{
			{ProductId: intPtr(3), DescriptionId: intPtr(7), EstimatedTotal: dec("10")},
			{ManualDescription: "Gloves", EstimatedTotal: dec("4")},
		},
	}
	subject := req.subject()
	if subject.CurrentID == nil || *subject.CurrentID != 12 {
		t.Fatalf("current id = %v", subject.CurrentID)
	}
	want := duplicates.HeaderIDs{RequestingDepartment: intPtr(1), Project: intPtr(2), Tender: intPtr(9)}
	if !subject.Header.Equal(want) {
		t.Fatalf("header = %+v", subject.Header)
	}
	set := duplicates.NewSignatureSet(subject.Items)
	if !set.Contains("p:3|d:7") || !set.Contains("t:gloves") {
		t.Fatalf("signatures = %v", set.Keys())
	}

	fresh := Requisition{}
	if fresh.subject().CurrentID != nil {
		t.Fatalf("unsaved requisition should have no current id")
	}
}

func TestNewRequisitionValidateStatus(t *testing.T) {
	user := utils.SetUserIdInContext(context.Background(), 5)
	admin := utils.SetIsAdminInContext(user, true)

	tests := []struct {
		name     string
		ctx      context.Context
		status   RequisitionStatus
		previous RequisitionStatus
		field    string
	}{
		{"default", user, "", "", ""},
		{"user sends", user, RequisitionStatusSent, RequisitionStatusRegistered, ""},
		{"user approves", user, RequisitionStatusApproved, RequisitionStatusSent, "status"},
		{"user keeps approved", user, RequisitionStatusApproved, RequisitionStatusApproved, ""},
		{"admin approves", admin, RequisitionStatusApproved, RequisitionStatusSent, ""},
		{"cancel through update", admin, RequisitionStatusCancelled, RequisitionStatusSent, "status"},
		{"unknown status", user, RequisitionStatus("archived"), "", "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := NewRequisition{Reason: "Office chairs", Status: tt.status}
			err := input.validate(tt.ctx, tt.previous)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if got := fieldOf(t, err); got != tt.field {
				t.Fatalf("field = %q, want %q", got, tt.field)
			}
		})
	}
}

func TestNewRequisitionValidateBlankReason(t *testing.T) {
	input := NewRequisition{Reason: "   "}
	if got := fieldOf(t, input.validate(context.Background(), "")); got != "reason" {
		t.Fatalf("field = %q", got)
	}

	missing := NewRequisition{}
	if err := missing.validate(context.Background(), ""); err == nil {
		t.Fatalf("expected validator error for an empty reason")
	}
}

func TestBuildCostAudit(t *testing.T) {
	req := &Requisition{
		ID:    4,
		Items: []*RequisitionItem{{EstimatedTotal: dec("10.50")}, {EstimatedTotal: dec("4.25")}},
	}
	audit := buildCostAudit(req, nil)
	if !audit.EstimatedTotal.Equal(dec("14.75")) {
		t.Fatalf("estimated = %v", audit.EstimatedTotal)
	}
	if audit.Difference != nil || audit.Logs == nil {
		t.Fatalf("no real amount: difference %v logs %v", audit.Difference, audit.Logs)
	}

	req.RealAmount = decPtr("16")
	audit = buildCostAudit(req, nil)
	if audit.Difference == nil || !audit.Difference.Equal(dec("1.25")) {
		t.Fatalf("difference = %v, want 1.25", audit.Difference)
	}
}

func TestCompositeCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 4, 10, 11, 12, 345000000, time.UTC)
	cursor := EncodeCompositeCursor(cursorTime(at), 42)
	value, id := DecodeCompositeCursor(&cursor)
	if value != "2026-03-04 10:11:12.345" || id != 42 {
		t.Fatalf("decoded %q %d", value, id)
	}

	bad := "not base64!"
	if v, id := DecodeCompositeCursor(&bad); v != "" || id != 0 {
		t.Fatalf("bad cursor decoded to %q %d", v, id)
	}
	if v, id := DecodeCompositeCursor(nil); v != "" || id != 0 {
		t.Fatalf("nil cursor decoded to %q %d", v, id)
	}
}

func TestClampPageSize(t *testing.T) {
	for in, want := range map[int]int{0: DefaultPageSize, -3: DefaultPageSize, 5: 5, 500: MaxPageSize} {
		if got := clampPageSize(in); got != want {
			t.Errorf("clampPageSize(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike = %q", got)
	}
}

func TestCodeLabel(t *testing.T) {
	tests := []struct{ code, name, want string }{
		{"ENG", "Engineering", "ENG - Engineering"},
		{"", "Engineering", "Engineering"},
		{"ENG", "", "ENG"},
	}
	for _, tt := range tests {
		if got := (Department{Code: tt.code, Name: tt.name}).DisplayLabel(); got != tt.want {
			t.Errorf("label(%q, %q) = %q, want %q", tt.code, tt.name, got, tt.want)
		}
	}
}

func TestItemDisplayLabelPrecedence(t *testing.T) {
	item := RequisitionItem{
		ManualDescription: "typed",
		Product:           &Product{Description: "Paper"},
	}
	if got := item.displayLabel(); got != "typed" {
		t.Fatalf("manual should beat product, got %q", got)
	}
	item.Description = &ItemDescription{Text: "A4 ream"}
	if got := item.displayLabel(); got != "A4 ream" {
		t.Fatalf("catalog should win, got %q", got)
	}
}
