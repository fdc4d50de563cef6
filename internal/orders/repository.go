// Package orders creates and reads orders on the sales side.
package orders

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateCheckout = errors.New("order for this checkout already exists")
	ErrUnavailable       = errors.New("sales backend unavailable")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type Repository interface {
	CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
}
