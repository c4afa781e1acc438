package models

import (
	"fmt"
	"time"
)

type Department struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Project struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type FundingSource struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type BudgetUnit struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Agreement struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Code        string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Category struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Tender struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type ExternalService struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type UnitOfMeasurement struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func codeLabel(code, name string) string {
	if code == "" {
		return name
	}
	if name == "" {
		return code
	}
	return fmt.Sprintf("%s - %s", code, name)
}

func (d Department) GetId() int           { return d.ID }
func (d Department) DisplayLabel() string { return codeLabel(d.Code, d.Name) }

func (p Project) GetId() int           { return p.ID }
func (p Project) DisplayLabel() string { return codeLabel(p.Code, p.Name) }

func (f FundingSource) GetId() int           { return f.ID }
func (f FundingSource) DisplayLabel() string { return codeLabel(f.Code, f.Name) }

func (b BudgetUnit) GetId() int           { return b.ID }
func (b BudgetUnit) DisplayLabel() string { return codeLabel(b.Code, b.Name) }

func (a Agreement) GetId() int           { return a.ID }
func (a Agreement) DisplayLabel() string { return codeLabel(a.Code, a.Description) }

func (c Category) GetId() int           { return c.ID }
func (c Category) DisplayLabel() string { return c.Name }

func (t Tender) GetId() int           { return t.ID }
func (t Tender) DisplayLabel() string { return codeLabel(t.Code, t.Name) }

func (e ExternalService) GetId() int           { return e.ID }
func (e ExternalService) DisplayLabel() string { return codeLabel(e.Code, e.Name) }

func (u UnitOfMeasurement) GetId() int           { return u.ID }
func (u UnitOfMeasurement) DisplayLabel() string { return u.Name }
