// Package store provides the persistence contract for Plugmart and its two
// interchangeable backends: a durable SQL store (SQLite or PostgreSQL via bun)
// and an in-memory fallback used when the durable store is unreachable at
// startup. Both backends return the same entity shapes so the rest of the
// system is backend-agnostic.
package store

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/plugmart/plugmart/internal/domain"
)

// Plugin represents a catalog entry. Inactive plugins are excluded from
// listings but remain referenceable by historical orders.
type Plugin struct {
	bun.BaseModel `bun:"table:plugins"`

	ID          int64     `json:"id" bun:"id,pk,autoincrement"`
	Name        string    `json:"name" bun:"name,notnull"`
	Price       float64   `json:"price" bun:"price,notnull"`
	Description string    `json:"description" bun:"description"`
	Image       string    `json:"image,omitempty" bun:"image"`
	IsActive    bool      `json:"is_active" bun:"is_active,notnull"`
	CreatedAt   time.Time `json:"created_at" bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Order records purchase intent. The plugin reference may be nil when the
// plugin was later removed; that is tolerated, not prevented.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID            int64              `json:"id" bun:"id,pk,autoincrement"`
	PluginID      *int64             `json:"plugin_id" bun:"plugin_id"`
	CustomerEmail string             `json:"customer_email" bun:"customer_email,notnull"`
	CustomerName  string             `json:"customer_name" bun:"customer_name"`
	Status        domain.OrderStatus `json:"status" bun:"status,notnull"`
	CreatedAt     time.Time          `json:"created_at" bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// OrderLine is an order joined with its plugin's current name and price at
// read time. The join is live: a later plugin edit changes how past orders
// display.
type OrderLine struct {
	ID            int64              `json:"id" bun:"id"`
	PluginID      *int64             `json:"plugin_id" bun:"plugin_id"`
	CustomerEmail string             `json:"customer_email" bun:"customer_email"`
	CustomerName  string             `json:"customer_name" bun:"customer_name"`
	Status        domain.OrderStatus `json:"status" bun:"status"`
	CreatedAt     time.Time          `json:"created_at" bun:"created_at"`
	PluginName    *string            `json:"plugin_name" bun:"plugin_name"`
	PluginPrice   *float64           `json:"price" bun:"plugin_price"`
}

// Feedback is a customer message. Immutable once created.
type Feedback struct {
	bun.BaseModel `bun:"table:feedback"`

	ID        int64     `json:"id" bun:"id,pk,autoincrement"`
	Message   string    `json:"message" bun:"message,notnull"`
	UserEmail *string   `json:"user_email" bun:"user_email"`
	CreatedAt time.Time `json:"created_at" bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// AdminAccount is a privileged account keyed by unique username.
type AdminAccount struct {
	bun.BaseModel `bun:"table:admin_accounts"`

	ID           int64     `json:"id" bun:"id,pk,autoincrement"`
	Username     string    `json:"username" bun:"username,unique,notnull"`
	PasswordHash string    `json:"-" bun:"password_hash,notnull"`
	CreatedAt    time.Time `json:"created_at" bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// CustomerAccount is a storefront account keyed by unique email.
type CustomerAccount struct {
	bun.BaseModel `bun:"table:customer_accounts"`

	ID           int64     `json:"id" bun:"id,pk,autoincrement"`
	Name         string    `json:"name" bun:"name,notnull"`
	Email        string    `json:"email" bun:"email,unique,notnull"`
	PasswordHash string    `json:"-" bun:"password_hash,notnull"`
	CreatedAt    time.Time `json:"created_at" bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Counts is a snapshot of entity counts for reporting. Accounts covers both
// admin and customer accounts.
type Counts struct {
	Plugins  int `json:"plugins"`
	Orders   int `json:"orders"`
	Feedback int `json:"feedback"`
	Accounts int `json:"accounts"`
}

// NewPlugin holds the caller-supplied fields for plugin creation.
type NewPlugin struct {
	Name        string
	Price       float64
	Description string
	Image       string
}

// NewOrder holds the caller-supplied fields for order creation.
type NewOrder struct {
	PluginID      *int64
	CustomerEmail string
	CustomerName  string
}

// AnonymousCustomer is the display name recorded when an order carries none.
const AnonymousCustomer = "Anonymous"

// Store is the persistence contract shared by the durable and fallback
// backends. Implementations validate input with the domain package so
// validation behavior is identical regardless of the active backend.
type Store interface {
	// Plugins
	ListActivePlugins(ctx context.Context) ([]Plugin, error)
	CreatePlugin(ctx context.Context, p NewPlugin) (*Plugin, error)
	// DeactivatePlugin soft-deletes a plugin: it disappears from catalog
	// listings but stays referenceable by historical orders.
	DeactivatePlugin(ctx context.Context, id int64) (*Plugin, error)

	// Orders
	CreateOrder(ctx context.Context, o NewOrder) (*Order, error)
	ListOrders(ctx context.Context) ([]OrderLine, error)
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (*Order, error)

	// Feedback
	CreateFeedback(ctx context.Context, message string, email *string) (*Feedback, error)
	ListFeedback(ctx context.Context) ([]Feedback, error)

	// Accounts
	FindAdminByUsername(ctx context.Context, username string) (*AdminAccount, error)
	FindCustomerByEmail(ctx context.Context, email string) (*CustomerAccount, error)
	CreateAdmin(ctx context.Context, username, passwordHash string) (*AdminAccount, error)
	CreateCustomer(ctx context.Context, name, email, passwordHash string) (*CustomerAccount, error)
	ListCustomers(ctx context.Context) ([]CustomerAccount, error)

	// Reporting
	Counts(ctx context.Context) (*Counts, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Kind reports the active backend ("sqlite", "postgres" or "memory")
	// for health reporting.
	Kind() string
	Close() error
}
