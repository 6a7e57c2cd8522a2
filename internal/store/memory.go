package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/plugmart/plugmart/internal/domain"
)

// MemoryStore is the in-memory fallback backend, active only when the
// durable backend is unreachable at startup. It trades durability for
// availability: all state is lost on process exit.
//
// A single RWMutex guards every container. Contention is irrelevant at
// fallback scale and one lock keeps the ownership discipline obvious.
// Entities are cloned on return so callers never hold a mutable reference
// into the store.
type MemoryStore struct {
	mu        sync.RWMutex
	plugins   []*Plugin
	orders    []*Order
	feedback  []*Feedback
	admins    []*AdminAccount
	customers []*CustomerAccount

	nextPluginID   int64
	nextOrderID    int64
	nextFeedbackID int64
	nextAdminID    int64
	nextCustomerID int64
}

// NewMemoryStore creates an empty in-memory store. Seeding is done by the
// backend selector through the same CreatePlugin/CreateAdmin calls the
// durable backend uses.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) ListActivePlugins(ctx context.Context) ([]Plugin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest first: IDs are assigned monotonically, so walk backwards.
	out := make([]Plugin, 0, len(s.plugins))
	for i := len(s.plugins) - 1; i >= 0; i-- {
		if s.plugins[i].IsActive {
			out = append(out, *s.plugins[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) CreatePlugin(ctx context.Context, p NewPlugin) (*Plugin, error) {
	if err := domain.ValidateNewPlugin(p.Name, p.Price, p.Description); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPluginID++
	plugin := &Plugin{
		ID:          s.nextPluginID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Image:       p.Image,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	s.plugins = append(s.plugins, plugin)

	clone := *plugin
	return &clone, nil
}

func (s *MemoryStore) DeactivatePlugin(ctx context.Context, id int64) (*Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, plugin := range s.plugins {
		if plugin.ID == id {
			plugin.IsActive = false
			clone := *plugin
			return &clone, nil
		}
	}
	return nil, &NotFoundError{Entity: "plugin", ID: id}
}

func (s *MemoryStore) CreateOrder(ctx context.Context, o NewOrder) (*Order, error) {
	if err := domain.ValidateNewOrder(o.CustomerEmail); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(o.CustomerName)
	if name == "" {
		name = AnonymousCustomer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOrderID++
	order := &Order{
		ID:            s.nextOrderID,
		PluginID:      o.PluginID,
		CustomerEmail: o.CustomerEmail,
		CustomerName:  name,
		Status:        domain.OrderStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	s.orders = append(s.orders, order)

	clone := *order
	return &clone, nil
}

func (s *MemoryStore) ListOrders(ctx context.Context) ([]OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OrderLine, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0; i-- {
		o := s.orders[i]
		line := OrderLine{
			ID:            o.ID,
			PluginID:      o.PluginID,
			CustomerEmail: o.CustomerEmail,
			CustomerName:  o.CustomerName,
			Status:        o.Status,
			CreatedAt:     o.CreatedAt,
		}
		// Live join: inactive plugins still resolve for historical orders.
		if o.PluginID != nil {
			for _, p := range s.plugins {
				if p.ID == *o.PluginID {
					name := p.Name
					price := p.Price
					line.PluginName = &name
					line.PluginPrice = &price
					break
				}
			}
		}
		out = append(out, line)
	}
	return out, nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (*Order, error) {
	if err := domain.ValidateStatus(status); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.orders {
		if order.ID == id {
			order.Status = status
			clone := *order
			return &clone, nil
		}
	}
	return nil, &NotFoundError{Entity: "order", ID: id}
}

func (s *MemoryStore) CreateFeedback(ctx context.Context, message string, email *string) (*Feedback, error) {
	if err := domain.ValidateFeedback(message); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextFeedbackID++
	fb := &Feedback{
		ID:        s.nextFeedbackID,
		Message:   message,
		UserEmail: cloneEmail(email),
		CreatedAt: time.Now().UTC(),
	}
	s.feedback = append(s.feedback, fb)

	clone := *fb
	clone.UserEmail = cloneEmail(fb.UserEmail)
	return &clone, nil
}

func (s *MemoryStore) ListFeedback(ctx context.Context) ([]Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Feedback, 0, len(s.feedback))
	for i := len(s.feedback) - 1; i >= 0; i-- {
		clone := *s.feedback[i]
		clone.UserEmail = cloneEmail(clone.UserEmail)
		out = append(out, clone)
	}
	return out, nil
}

func (s *MemoryStore) FindAdminByUsername(ctx context.Context, username string) (*AdminAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.admins {
		if a.Username == username {
			clone := *a
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindCustomerByEmail(ctx context.Context, email string) (*CustomerAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if c.Email == email {
			clone := *c
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreateAdmin(ctx context.Context, username, passwordHash string) (*AdminAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.admins {
		if a.Username == username {
			return nil, &ConflictError{Field: "username", Value: username}
		}
	}

	s.nextAdminID++
	admin := &AdminAccount{
		ID:           s.nextAdminID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.admins = append(s.admins, admin)

	clone := *admin
	return &clone, nil
}

func (s *MemoryStore) CreateCustomer(ctx context.Context, name, email, passwordHash string) (*CustomerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.customers {
		if c.Email == email {
			return nil, &ConflictError{Field: "email", Value: email}
		}
	}

	s.nextCustomerID++
	customer := &CustomerAccount{
		ID:           s.nextCustomerID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.customers = append(s.customers, customer)

	clone := *customer
	return &clone, nil
}

func (s *MemoryStore) ListCustomers(ctx context.Context) ([]CustomerAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CustomerAccount, 0, len(s.customers))
	for i := len(s.customers) - 1; i >= 0; i-- {
		out = append(out, *s.customers[i])
	}
	return out, nil
}

func (s *MemoryStore) Counts(ctx context.Context) (*Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &Counts{
		Plugins:  len(s.plugins),
		Orders:   len(s.orders),
		Feedback: len(s.feedback),
		Accounts: len(s.admins) + len(s.customers),
	}, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Kind() string { return "memory" }

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plugins = nil
	s.orders = nil
	s.feedback = nil
	s.admins = nil
	s.customers = nil
	return nil
}

func cloneEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := *email
	return &v
}

// Verify interface compliance
var _ Store = (*MemoryStore)(nil)
