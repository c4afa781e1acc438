package models

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm/schema"
)

func TestItemDescriptionKeyIgnoresCaseAndPadding(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Tóner HP 85A", "tóner hp 85a"},
		{"  TÓNER HP 85A ", "tóner hp 85a"},
		{"Resma A4", "resma a4"},
	}
	for _, tc := range cases {
		d := ItemDescription{Text: tc.in}
		if err := d.BeforeSave(nil); err != nil {
			t.Fatalf("BeforeSave error: %v", err)
		}
		if d.TextKey != tc.expected {
			t.Fatalf("text key for %q expected %q, got %q", tc.in, tc.expected, d.TextKey)
		}
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	dup := &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry '3-resma a4' for key 'idx_itemdesc_product_text'"}
	cases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"direct", dup, true},
		{"wrapped", fmt.Errorf("create: %w", dup), true},
		{"other mysql error", &mysqlDriver.MySQLError{Number: 1452}, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := isDuplicateKeyErr(tc.err); got != tc.expected {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}

var schemaCache sync.Map

func TestItemDescriptionUniqueIndex(t *testing.T) {
	s, err := schema.Parse(&ItemDescription{}, &schemaCache, schema.NamingStrategy{})
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	var found bool
	for _, idx := range s.ParseIndexes() {
		if idx.Name != "idx_itemdesc_product_text" {
			continue
		}
		found = true
		if idx.Class != "UNIQUE" {
			t.Fatalf("expected unique index, got class %q", idx.Class)
		}
		var columns []string
		for _, f := range idx.Fields {
			columns = append(columns, f.DBName)
		}
		if strings.Join(columns, ",") != "product_id,text_key" {
			t.Fatalf("unexpected index columns %v", columns)
		}
	}
	if !found {
		t.Fatalf("idx_itemdesc_product_text not declared")
	}
}
