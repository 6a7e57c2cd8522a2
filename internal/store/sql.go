package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/plugmart/plugmart/internal/domain"
)

// SQLStore is the durable backend, implemented with bun over database/sql.
// It supports SQLite (default) and PostgreSQL behind the same Store contract.
type SQLStore struct {
	bun          *bun.DB
	dbType       string
	queryTimeout time.Duration
}

// openSQL opens a database connection for the given type and DSN with a
// bounded connection pool. Schema migrations are run by the backend selector
// before the store is handed out.
func openSQL(dbType, dsn string, maxConns int, queryTimeout time.Duration) (*SQLStore, error) {
	var driverName string
	switch dbType {
	case "sqlite":
		driverName = "sqlite"
	case "postgres":
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Bounded pool: exhaustion blocks callers until the query timeout fires.
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if dbType == "sqlite" {
		// busy_timeout waits up to 5 seconds for locks to clear
		if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
		}

		// WAL mode allows concurrent reads while writing
		if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	var bunDB *bun.DB
	switch dbType {
	case "sqlite":
		bunDB = bun.NewDB(conn, sqlitedialect.New())
	case "postgres":
		bunDB = bun.NewDB(conn, pgdialect.New())
	}

	return &SQLStore{bun: bunDB, dbType: dbType, queryTimeout: queryTimeout}, nil
}

// opCtx derives a per-operation context so no store call blocks past the
// configured query timeout.
func (s *SQLStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *SQLStore) ListActivePlugins(ctx context.Context) ([]Plugin, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var plugins []Plugin
	err := s.bun.NewSelect().Model(&plugins).
		Where("is_active = ?", true).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}
	if plugins == nil {
		// Empty results must serialize as [] on both backends.
		plugins = []Plugin{}
	}
	return plugins, nil
}

func (s *SQLStore) CreatePlugin(ctx context.Context, p NewPlugin) (*Plugin, error) {
	if err := domain.ValidateNewPlugin(p.Name, p.Price, p.Description); err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	plugin := Plugin{
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Image:       p.Image,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.bun.NewInsert().Model(&plugin).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create plugin: %w", err)
	}
	return &plugin, nil
}

func (s *SQLStore) DeactivatePlugin(ctx context.Context, id int64) (*Plugin, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var plugin Plugin
	err := s.bun.NewSelect().Model(&plugin).Where("id = ?", id).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "plugin", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plugin: %w", err)
	}

	if _, err := s.bun.NewUpdate().Model((*Plugin)(nil)).
		Set("is_active = ?", false).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to deactivate plugin: %w", err)
	}

	plugin.IsActive = false
	return &plugin, nil
}

func (s *SQLStore) CreateOrder(ctx context.Context, o NewOrder) (*Order, error) {
	if err := domain.ValidateNewOrder(o.CustomerEmail); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(o.CustomerName)
	if name == "" {
		name = AnonymousCustomer
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	order := Order{
		PluginID:      o.PluginID,
		CustomerEmail: o.CustomerEmail,
		CustomerName:  name,
		Status:        domain.OrderStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := s.bun.NewInsert().Model(&order).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return &order, nil
}

func (s *SQLStore) ListOrders(ctx context.Context) ([]OrderLine, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var lines []OrderLine
	err := s.bun.NewRaw(`
		SELECT o.id, o.plugin_id, o.customer_email, o.customer_name, o.status, o.created_at,
		       p.name AS plugin_name, p.price AS plugin_price
		FROM orders o
		LEFT JOIN plugins p ON o.plugin_id = p.id
		ORDER BY o.created_at DESC, o.id DESC
	`).Scan(ctx, &lines)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if lines == nil {
		lines = []OrderLine{}
	}
	return lines, nil
}

func (s *SQLStore) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (*Order, error) {
	if err := domain.ValidateStatus(status); err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var order Order
	err := s.bun.NewSelect().Model(&order).Where("id = ?", id).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if _, err := s.bun.NewUpdate().Model((*Order)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	order.Status = status
	return &order, nil
}

func (s *SQLStore) CreateFeedback(ctx context.Context, message string, email *string) (*Feedback, error) {
	if err := domain.ValidateFeedback(message); err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	fb := Feedback{
		Message:   message,
		UserEmail: email,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.bun.NewInsert().Model(&fb).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}
	return &fb, nil
}

func (s *SQLStore) ListFeedback(ctx context.Context) ([]Feedback, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var feedback []Feedback
	err := s.bun.NewSelect().Model(&feedback).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	if feedback == nil {
		feedback = []Feedback{}
	}
	return feedback, nil
}

func (s *SQLStore) FindAdminByUsername(ctx context.Context, username string) (*AdminAccount, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var admin AdminAccount
	err := s.bun.NewSelect().Model(&admin).Where("username = ?", username).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}
	return &admin, nil
}

func (s *SQLStore) FindCustomerByEmail(ctx context.Context, email string) (*CustomerAccount, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var customer CustomerAccount
	err := s.bun.NewSelect().Model(&customer).Where("email = ?", email).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}
	return &customer, nil
}

func (s *SQLStore) CreateAdmin(ctx context.Context, username, passwordHash string) (*AdminAccount, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	existing, err := s.FindAdminByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &ConflictError{Field: "username", Value: username}
	}

	admin := AdminAccount{
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.bun.NewInsert().Model(&admin).Exec(ctx); err != nil {
		// Concurrent creation can slip past the pre-check; the unique
		// constraint is the authority.
		if isUniqueViolation(err) {
			return nil, &ConflictError{Field: "username", Value: username}
		}
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	return &admin, nil
}

func (s *SQLStore) CreateCustomer(ctx context.Context, name, email, passwordHash string) (*CustomerAccount, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	existing, err := s.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &ConflictError{Field: "email", Value: email}
	}

	customer := CustomerAccount{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.bun.NewInsert().Model(&customer).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, &ConflictError{Field: "email", Value: email}
		}
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return &customer, nil
}

func (s *SQLStore) ListCustomers(ctx context.Context) ([]CustomerAccount, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var customers []CustomerAccount
	err := s.bun.NewSelect().Model(&customers).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	if customers == nil {
		customers = []CustomerAccount{}
	}
	return customers, nil
}

func (s *SQLStore) Counts(ctx context.Context) (*Counts, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	plugins, err := s.bun.NewSelect().Model((*Plugin)(nil)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count plugins: %w", err)
	}
	orders, err := s.bun.NewSelect().Model((*Order)(nil)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	feedback, err := s.bun.NewSelect().Model((*Feedback)(nil)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count feedback: %w", err)
	}
	admins, err := s.bun.NewSelect().Model((*AdminAccount)(nil)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count admin accounts: %w", err)
	}
	customers, err := s.bun.NewSelect().Model((*CustomerAccount)(nil)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count customer accounts: %w", err)
	}

	return &Counts{
		Plugins:  plugins,
		Orders:   orders,
		Feedback: feedback,
		Accounts: admins + customers,
	}, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.bun.PingContext(ctx)
}

func (s *SQLStore) Kind() string { return s.dbType }

func (s *SQLStore) Close() error { return s.bun.Close() }

// isUniqueViolation matches unique-constraint failures from both drivers:
// modernc sqlite reports "UNIQUE constraint failed", lib/pq "duplicate key".
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}

// Verify interface compliance
var _ Store = (*SQLStore)(nil)
