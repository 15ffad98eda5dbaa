package store

import (
	"context"
	"database/sql"
	"errors"

	models "github.com/sagrvma/bookstore/model"
)

const (
	getCartSQL    = `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`
	createCartSQL = `INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, created_at, updated_at`
	// lines come back in book id order so checkouts lock books in a stable order
	cartItemsSQL   = `SELECT book_id, title, price, quantity FROM cart_items WHERE cart_id = $1 ORDER BY book_id`
	putCartLineSQL = `INSERT INTO cart_items (cart_id, book_id, title, price, quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, book_id)
		DO UPDATE SET title = EXCLUDED.title, price = EXCLUDED.price, quantity = EXCLUDED.quantity`
	deleteCartLineSQL = `DELETE FROM cart_items WHERE cart_id = $1 AND book_id = $2`
	clearCartSQL      = `DELETE FROM cart_items WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)`
	touchCartSQL      = `UPDATE carts SET updated_at = now() WHERE user_id = $1`
)

// GetCartByUser loads the cart and its lines. Inside a transaction the cart
// row is locked, which serialises concurrent checkouts by the same user.
func (t *pgTx) GetCartByUser(ctx context.Context, userID string) (*models.Cart, error) {
	var c models.Cart
	err := t.q.QueryRowContext(ctx, t.forUpdate(getCartSQL, "FOR UPDATE"), userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	if c.Items, err = t.cartItems(ctx, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *pgTx) CreateCart(ctx context.Context, userID string) (*models.Cart, error) {
	var c models.Cart
	if err := t.q.QueryRowContext(ctx, createCartSQL, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, classify(err)
	}
	items, err := t.cartItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return &c, nil
}

func (t *pgTx) cartItems(ctx context.Context, cartID int64) ([]models.CartLine, error) {
	rows, err := t.q.QueryContext(ctx, cartItemsSQL, cartID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := []models.CartLine{}
	for rows.Next() {
		var l models.CartLine
		if err := rows.Scan(&l.BookID, &l.Title, &l.Price, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, classify(rows.Err())
}

func (t *pgTx) PutCartLine(ctx context.Context, cartID int64, line models.CartLine) error {
	if line.Quantity < 1 || line.Quantity > models.MaxLineQuantity {
		return errors.New("quantity out of range")
	}
	_, err := t.q.ExecContext(ctx, putCartLineSQL, cartID, line.BookID, line.Title, line.Price, line.Quantity)
	return classify(err)
}

func (t *pgTx) DeleteCartLine(ctx context.Context, cartID, bookID int64) error {
	res, err := t.q.ExecContext(ctx, deleteCartLineSQL, cartID, bookID)
	if err != nil {
		return classify(err)
	}
	return rowsAffected(res)
}

// ClearCart empties the cart. The cart row itself is kept.
func (t *pgTx) ClearCart(ctx context.Context, userID string) error {
	if _, err := t.q.ExecContext(ctx, clearCartSQL, userID); err != nil {
		return classify(err)
	}
	_, err := t.q.ExecContext(ctx, touchCartSQL, userID)
	return classify(err)
}
