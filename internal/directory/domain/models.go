// Package domain contains the people/project/client directory consumed by
// billing. Directory CRUD lives outside this core; billing reads names,
// currencies, budgets and per-person default rates from here.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Person is a billable staff member.
type Person struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`

	Name  string `gorm:"type:text;not null"`
	Email string `gorm:"type:text"`

	// Default rates are tier 3 of the rate cascade; nil means the person has
	// no default and resolution falls through to the system default.
	DefaultBillingRate *decimal.Decimal `gorm:"type:numeric(10,2)"`
	DefaultCostRate    *decimal.Decimal `gorm:"type:numeric(10,2)"`

	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Person) TableName() string { return "people" }

// Client is an invoiced customer.
type Client struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`

	Name     string `gorm:"type:text;not null"`
	Currency string `gorm:"type:text;not null;default:'USD'"`

	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Client) TableName() string { return "clients" }

// Project is a client engagement that work is tracked against.
type Project struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`
	ClientID snowflake.ID `gorm:"not null;index"`

	Name     string `gorm:"type:text;not null"`
	Code     string `gorm:"type:text"`
	Currency string `gorm:"type:text;not null;default:'USD'"`

	BudgetHours *decimal.Decimal `gorm:"type:numeric(10,2)"`

	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Project) TableName() string { return "projects" }
