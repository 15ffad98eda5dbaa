package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity caps the copies of one book a cart may hold.
const MaxLineQuantity = 10

// CartLine holds the title and price seen when the book was added.
type CartLine struct {
	BookID   int64           `json:"bookId"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"userId"`
	Items     []CartLine `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (c *Cart) Empty() bool { return c == nil || len(c.Items) == 0 }

// Line returns the line for bookID, if present.
func (c *Cart) Line(bookID int64) (CartLine, bool) {
	for _, it := range c.Items {
		if it.BookID == bookID {
			return it, true
		}
	}
	return CartLine{}, false
}

func (c *Cart) TotalQuantity() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}
