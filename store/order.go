package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	models "github.com/sagrvma/bookstore/model"
)

const (
	orderColumns = `id, user_id, order_number, subtotal, tax, shipping_cost, total,
		status, payment_status, payment_method, shipping_address, notes, created_at, updated_at`
	insertOrderSQL = `INSERT INTO orders (user_id, order_number, subtotal, tax, shipping_cost, total,
		status, payment_status, payment_method, shipping_address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	insertOrderItemSQL = `INSERT INTO order_items (order_id, position, book_id, title, author, price, quantity, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	getOrderSQL        = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderForUserSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`
	orderItemsSQL      = `SELECT order_id, book_id, title, author, price, quantity, line_total
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`
	countOrdersBetweenSQL = `SELECT count(*) FROM orders WHERE created_at >= $1 AND created_at <= $2`
	updateOrderStatusSQL  = `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`

	savepointSQL         = `SAVEPOINT create_order`
	rollbackSavepointSQL = `ROLLBACK TO SAVEPOINT create_order`
	releaseSavepointSQL  = `RELEASE SAVEPOINT create_order`
)

// CreateOrder inserts the order and its lines. A duplicate order number is
// rolled back to a savepoint so the caller can retry in the same transaction.
func (t *pgTx) CreateOrder(ctx context.Context, o *models.Order) error {
	if len(o.Items) == 0 {
		return errors.New("order has no items")
	}
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}

	if t.inTx {
		if _, err := t.q.ExecContext(ctx, savepointSQL); err != nil {
			return classify(err)
		}
	}
	err = t.q.QueryRowContext(ctx, insertOrderSQL,
		o.UserID, o.OrderNumber, o.Subtotal, o.Tax, o.ShippingCost, o.Total,
		string(o.Status), string(o.PaymentStatus), string(o.PaymentMethod), addr,
		nullString(o.Notes), o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		err = classify(err)
		if t.inTx {
			if _, rbErr := t.q.ExecContext(ctx, rollbackSavepointSQL); rbErr != nil {
				return classify(rbErr)
			}
		}
		return err
	}
	if t.inTx {
		if _, err := t.q.ExecContext(ctx, releaseSavepointSQL); err != nil {
			return classify(err)
		}
	}

	stmt, err := t.q.PrepareContext(ctx, insertOrderItemSQL)
	if err != nil {
		return classify(err)
	}
	defer stmt.Close()

	for i, it := range o.Items {
		if _, err := stmt.ExecContext(ctx, o.ID, i, it.BookID, it.Title, it.Author, it.Price, it.Quantity, it.LineTotal); err != nil {
			return classify(err)
		}
	}
	return nil
}

func (t *pgTx) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	row := t.q.QueryRowContext(ctx, t.forUpdate(getOrderSQL, "FOR UPDATE"), orderID)
	return t.loadOrder(ctx, row)
}

// GetOrderForUser treats an order owned by someone else as missing.
func (t *pgTx) GetOrderForUser(ctx context.Context, orderID int64, userID string) (*models.Order, error) {
	row := t.q.QueryRowContext(ctx, t.forUpdate(getOrderForUserSQL, "FOR UPDATE"), orderID, userID)
	return t.loadOrder(ctx, row)
}

func (t *pgTx) loadOrder(ctx context.Context, row *sql.Row) (*models.Order, error) {
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	if err := t.attachItems(ctx, []*models.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (t *pgTx) CountOrdersCreatedBetween(ctx context.Context, start, end time.Time) (int, error) {
	var n int
	if err := t.q.QueryRowContext(ctx, countOrdersBetweenSQL, start, end).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	res, err := t.q.ExecContext(ctx, updateOrderStatusSQL, string(status), orderID)
	if err != nil {
		return classify(err)
	}
	return rowsAffected(res)
}

// ListOrders returns one page, newest first, and the total matching count.
func (t *pgTx) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := t.q.QueryRowContext(ctx, `SELECT count(*) FROM orders`+cond, args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, cond, len(args)-1, len(args))
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, classify(err)
	}
	defer rows.Close()

	var page []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		page = append(page, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(err)
	}
	if err := t.attachItems(ctx, page); err != nil {
		return nil, 0, err
	}

	out := make([]models.Order, 0, len(page))
	for _, o := range page {
		out = append(out, *o)
	}
	return out, total, nil
}

// attachItems loads the lines of all given orders in one query.
func (t *pgTx) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	byID := make(map[int64]*models.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = o
		o.Items = []models.OrderLine{}
	}

	rows, err := t.q.QueryContext(ctx, orderItemsSQL, pq.Array(ids))
	if err != nil {
		return classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID int64
			it      models.OrderLine
		)
		if err := rows.Scan(&orderID, &it.BookID, &it.Title, &it.Author, &it.Price, &it.Quantity, &it.LineTotal); err != nil {
			return err
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return classify(rows.Err())
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (*models.Order, error) {
	var (
		o                              models.Order
		status, paymentStatus, payment string
		addr                           []byte
		notes                          sql.NullString
	)
	if err := s.Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.Subtotal, &o.Tax, &o.ShippingCost, &o.Total,
		&status, &paymentStatus, &payment, &addr, &notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("order %d: decode shipping address: %w", o.ID, err)
	}
	o.Status = models.OrderStatus(status)
	o.PaymentStatus = models.PaymentStatus(paymentStatus)
	o.PaymentMethod = models.PaymentMethod(payment)
	o.Notes = notes.String
	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
