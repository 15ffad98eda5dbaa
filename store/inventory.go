package store

import (
	"context"
	"database/sql"
	"errors"

	models "github.com/sagrvma/bookstore/model"
)

const (
	getBookSQL = `SELECT b.id, b.title, COALESCE(b.author_id, 0), COALESCE(a.name, ''), b.price, b.stock
		FROM books b LEFT JOIN authors a ON a.id = b.author_id
		WHERE b.id = $1`
	decrementStockSQL = `UPDATE books SET stock = stock - $1, updated_at = now() WHERE id = $2 AND stock >= $1`
	incrementStockSQL = `UPDATE books SET stock = stock + $1, updated_at = now() WHERE id = $2`
)

// GetBook returns the book with its current stock. Inside a transaction the
// book row stays locked until commit or rollback.
func (t *pgTx) GetBook(ctx context.Context, bookID int64) (*models.Book, error) {
	var b models.Book
	err := t.q.QueryRowContext(ctx, t.forUpdate(getBookSQL, "FOR UPDATE OF b"), bookID).
		Scan(&b.ID, &b.Title, &b.AuthorID, &b.Author, &b.Price, &b.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return &b, nil
}

// DecrementStock removes qty copies only if at least qty remain.
func (t *pgTx) DecrementStock(ctx context.Context, bookID int64, qty int) error {
	if qty <= 0 {
		return errors.New("quantity must be > 0")
	}
	res, err := t.q.ExecContext(ctx, decrementStockSQL, qty, bookID)
	if err != nil {
		return classify(err)
	}
	if err := rowsAffected(res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrStockRefused
		}
		return err
	}
	return nil
}

// IncrementStock returns qty copies to the shelf.
func (t *pgTx) IncrementStock(ctx context.Context, bookID int64, qty int) error {
	if qty <= 0 {
		return errors.New("quantity must be > 0")
	}
	res, err := t.q.ExecContext(ctx, incrementStockSQL, qty, bookID)
	if err != nil {
		return classify(err)
	}
	return rowsAffected(res)
}
