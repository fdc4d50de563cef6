package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(ctx context.Context, cred *Credentials) (*PostgresRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.PingContext(ctx); e2 != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "storefront_orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	checkoutID, err := checkoutUUID(draft.CheckoutID)
	if err != nil {
		return nil, err
	}
	draft.CheckoutID = checkoutID.String()

	itemsJSON, err := json.Marshal(draft.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}

	order := &domain.Order{ID: uuid.New().String(), OrderDraft: draft}

	query := `INSERT INTO orders (id, checkout_id, user_id, user_name, user_email, items, subtotal, discount,
	                              shipping_fee, total, currency, status, shipping_address, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	          RETURNING created_at`

	insertErr := r.db.QueryRowContext(ctx, query,
		order.ID,
		checkoutID,
		draft.UserID,
		draft.UserName,
		draft.UserEmail,
		itemsJSON,
		draft.Subtotal,
		draft.Discount,
		draft.ShippingFee,
		draft.Total,
		draft.Currency,
		draft.Status,
		draft.ShippingAddress,
	).Scan(&order.CreatedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateCheckout
		}
		return nil, fmt.Errorf("insert order: %w", insertErr)
	}
	return order, nil
}

const selectOrder = `SELECT id, checkout_id, user_id, user_name, user_email, items, subtotal, discount,
	                        shipping_fee, total, currency, status, shipping_address, created_at
	                 FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON []byte
	err := row.Scan(
		&order.ID,
		&order.CheckoutID,
		&order.UserID,
		&order.UserName,
		&order.UserEmail,
		&itemsJSON,
		&order.Subtotal,
		&order.Discount,
		&order.ShippingFee,
		&order.Total,
		&order.Currency,
		&order.Status,
		&order.ShippingAddress,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}

func (r *PostgresRepository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	order, err := scanOrder(r.db.QueryRowContext(ctx, selectOrder+` WHERE id = $1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, selectOrder+` WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func checkoutUUID(id string) (uuid.UUID, error) {
	if id == "" {
		return uuid.New(), nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid checkout id %q: %w", id, err)
	}
	return parsed, nil
}
