package option

import (
	"fmt"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type operatorOption struct {
	cond Condition
}

func (o operatorOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf("%s %s ?", o.cond.Field, o.cond.Operator), o.cond.Value)
}

func ApplyOperator(cond Condition) QueryOption {
	return operatorOption{cond: cond}
}

type orderOption struct {
	order string
}

func (o orderOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(o.order)
}

func WithOrder(order string) QueryOption {
	return orderOption{order: order}
}

type limitOption struct {
	limit int
}

func (o limitOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(o.limit)
}

func WithLimit(limit int) QueryOption {
	return limitOption{limit: limit}
}
