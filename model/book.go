package models

import "github.com/shopspring/decimal"

// UnknownAuthor is recorded on order lines whose book has no author row.
const UnknownAuthor = "Unknown Author"

// Book is the slice of the catalog record that checkout reads and writes.
type Book struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	AuthorID int64           `json:"authorId"`
	Author   string          `json:"author"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
}
