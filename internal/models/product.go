package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Condition represents the physical condition of a listed item
type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like_new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionPoor    Condition = "poor"
)

// ProductStatus represents the listing state of a product
type ProductStatus string

const (
	ProductStatusAvailable ProductStatus = "available"
	ProductStatusReserved  ProductStatus = "reserved"
	ProductStatusSold      ProductStatus = "sold"
	ProductStatusRented    ProductStatus = "rented"
	ProductStatusRemoved   ProductStatus = "removed"
)

// Product represents a listed second-hand item
type Product struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	CategoryID      uuid.UUID     `json:"category_id"`
	SellPrice       *float64      `json:"sell_price,omitempty"`
	RentPricePerDay *float64      `json:"rent_price_per_day,omitempty"`
	Condition       Condition     `json:"condition"`
	SellerID        uuid.UUID     `json:"seller_id"`
	ViewsCount      int           `json:"views_count"`
	Status          ProductStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}

// HasSellPrice reports whether the product is listed for sale with a price
func (p *Product) HasSellPrice() bool {
	return p.SellPrice != nil
}

// ParseCondition converts a raw value into a Condition
func ParseCondition(value string) (Condition, error) {
	c := Condition(value)
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return c, nil
	default:
		return "", fmt.Errorf("invalid condition: %q", value)
	}
}

// ParseProductStatus converts a raw value into a ProductStatus
func ParseProductStatus(value string) (ProductStatus, error) {
	s := ProductStatus(value)
	switch s {
	case ProductStatusAvailable, ProductStatusReserved, ProductStatusSold, ProductStatusRented, ProductStatusRemoved:
		return s, nil
	default:
		return "", fmt.Errorf("invalid product status: %q", value)
	}
}
