package service

import (
	"context"
	"errors"

	models "github.com/sagrvma/bookstore/model"
	"github.com/sagrvma/bookstore/store"
)

// Cart checks against stock are advisory: they fail fast for the user, but
// only the re-check inside PlaceOrder protects the inventory.

func validQuantity(qty int) error {
	if qty < 1 || qty > models.MaxLineQuantity {
		return invalid("quantity", "must be between 1 and %d", models.MaxLineQuantity)
	}
	return nil
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *Service) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	var cart *models.Cart
	err := s.runRead(ctx, func(ctx context.Context) (err error) {
		cart, err = s.store.CreateCart(ctx, userID)
		return err
	})
	if err != nil {
		return nil, classify("get cart", err)
	}
	return cart, nil
}

// AddToCart adds qty copies, merging with an existing line for the same
// book. A merged line keeps the price captured when the book was first added.
func (s *Service) AddToCart(ctx context.Context, userID string, bookID int64, qty int) (*models.Cart, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	if err := validQuantity(qty); err != nil {
		return nil, err
	}
	book, err := s.lookupBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	var cart *models.Cart
	err = s.runTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.CreateCart(ctx, userID)
		if err != nil {
			return err
		}
		line := models.CartLine{BookID: book.ID, Title: book.Title, Price: book.Price, Quantity: qty}
		if existing, ok := c.Line(bookID); ok {
			line.Price = existing.Price
			line.Quantity += existing.Quantity
			if line.Quantity > models.MaxLineQuantity {
				return invalid("quantity", "can't exceed %d copies of one book, %d already in cart",
					models.MaxLineQuantity, existing.Quantity)
			}
		}
		if book.Stock < line.Quantity {
			return &InsufficientStockError{BookID: book.ID, Title: book.Title, Requested: line.Quantity, Available: book.Stock}
		}
		if err := tx.PutCartLine(ctx, c.ID, line); err != nil {
			return err
		}
		cart = withLine(c, line)
		return nil
	})
	if err != nil {
		return nil, classify("add to cart", err)
	}
	return cart, nil
}

// UpdateCartItem sets the quantity of an existing line.
func (s *Service) UpdateCartItem(ctx context.Context, userID string, bookID int64, qty int) (*models.Cart, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	if err := validQuantity(qty); err != nil {
		return nil, err
	}
	book, err := s.lookupBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.Stock < qty {
		return nil, &InsufficientStockError{BookID: book.ID, Title: book.Title, Requested: qty, Available: book.Stock}
	}

	var cart *models.Cart
	err = s.runTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetCartByUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Resource: "cart item", ID: bookID}
		}
		if err != nil {
			return err
		}
		line, ok := c.Line(bookID)
		if !ok {
			return &NotFoundError{Resource: "cart item", ID: bookID}
		}
		line.Quantity = qty
		if err := tx.PutCartLine(ctx, c.ID, line); err != nil {
			return err
		}
		cart = withLine(c, line)
		return nil
	})
	if err != nil {
		return nil, classify("update cart item", err)
	}
	return cart, nil
}

func (s *Service) RemoveFromCart(ctx context.Context, userID string, bookID int64) (*models.Cart, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	var cart *models.Cart
	err := s.runTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetCartByUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Resource: "cart item", ID: bookID}
		}
		if err != nil {
			return err
		}
		err = tx.DeleteCartLine(ctx, c.ID, bookID)
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Resource: "cart item", ID: bookID}
		}
		if err != nil {
			return err
		}
		cart = withoutLine(c, bookID)
		return nil
	})
	if err != nil {
		return nil, classify("remove from cart", err)
	}
	return cart, nil
}

// ClearCart empties the cart without deleting it.
func (s *Service) ClearCart(ctx context.Context, userID string) (*models.Cart, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	var cart *models.Cart
	err := s.runTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.ClearCart(ctx, userID); err != nil {
			return err
		}
		c, err := tx.CreateCart(ctx, userID)
		cart = c
		return err
	})
	if err != nil {
		return nil, classify("clear cart", err)
	}
	return cart, nil
}

// lookupBook reads the book outside any transaction, without locking it.
func (s *Service) lookupBook(ctx context.Context, bookID int64) (*models.Book, error) {
	var book *models.Book
	err := s.runRead(ctx, func(ctx context.Context) (err error) {
		book, err = s.store.GetBook(ctx, bookID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, &BookNotFoundError{BookID: bookID}
	}
	if err != nil {
		return nil, classify("get book", err)
	}
	return book, nil
}

func withLine(c *models.Cart, line models.CartLine) *models.Cart {
	for i, it := range c.Items {
		if it.BookID == line.BookID {
			c.Items[i] = line
			return c
		}
	}
	c.Items = append(c.Items, line)
	return c
}

func withoutLine(c *models.Cart, bookID int64) *models.Cart {
	items := make([]models.CartLine, 0, len(c.Items))
	for _, it := range c.Items {
		if it.BookID != bookID {
			items = append(items, it)
		}
	}
	c.Items = items
	return c
}
