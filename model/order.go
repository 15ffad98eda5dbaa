package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
)

// Valid reports whether m is one of the accepted payment methods.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCashOnDelivery || m == PaymentCard
}

// ShippingAddress is copied onto the order at checkout.
type ShippingAddress struct {
	FullName string `json:"fullName"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	PinCode  string `json:"pinCode"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

// MissingFields returns the json names of empty address fields.
func (a ShippingAddress) MissingFields() []string {
	var out []string
	for _, f := range []struct {
		name, value string
	}{
		{"fullName", a.FullName},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"pinCode", a.PinCode},
		{"country", a.Country},
		{"phone", a.Phone},
	} {
		if f.value == "" {
			out = append(out, f.name)
		}
	}
	return out
}

// OrderLine is a frozen snapshot of one purchased book. None of its fields
// are recomputed after the order is created.
type OrderLine struct {
	BookID    int64           `json:"bookId"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// NewOrderLine builds a line from the cart's captured price.
func NewOrderLine(bookID int64, title, author string, price decimal.Decimal, qty int) OrderLine {
	return OrderLine{
		BookID:    bookID,
		Title:     title,
		Author:    author,
		Price:     price,
		Quantity:  qty,
		LineTotal: price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

type Order struct {
	ID              int64           `json:"id"`
	UserID          string          `json:"userId"`
	OrderNumber     string          `json:"orderNumber"`
	Items           []OrderLine     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	Total           decimal.Decimal `json:"totalAmount"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Price sets subtotal from the lines. Tax and shipping are always zero.
func (o *Order) Price() {
	sub := decimal.Zero
	for _, it := range o.Items {
		sub = sub.Add(it.LineTotal)
	}
	o.Subtotal = sub
	o.Tax = decimal.Zero
	o.ShippingCost = decimal.Zero
	o.Total = sub.Add(o.Tax).Add(o.ShippingCost)
}
