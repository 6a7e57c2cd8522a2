package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/plugmart/plugmart/internal/auth"
	"github.com/plugmart/plugmart/internal/domain"
	"github.com/plugmart/plugmart/internal/middleware"
	"github.com/plugmart/plugmart/internal/store"
)

// handlers binds HTTP handler methods to an App's dependencies.
type handlers struct {
	app *App
}

// writeJSON serializes v with the given status. Every success path goes
// through here so both backends produce identical response bytes.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError emits the standard JSON failure shape. No failure path returns
// an empty body or a raw stack trace.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeBody reads and unmarshals a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// writeStoreError maps the typed store/domain failures onto HTTP statuses.
// Anything unexpected is logged and reported as a generic 500.
func (h *handlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Error())
		return
	}
	var nf *store.NotFoundError
	if errors.As(err, &nf) {
		writeError(w, http.StatusNotFound, nf.Error())
		return
	}
	var ce *store.ConflictError
	if errors.As(err, &ce) {
		writeError(w, http.StatusConflict, ce.Error())
		return
	}

	slog.Error(op+" failed", "error", err, "request_id", middleware.GetRequestID(r.Context()))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// --- Health ---

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"message":   "Plugmart API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  h.app.Store.Kind(),
	})
}

// --- Auth endpoints ---

func (h *handlers) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := domain.ValidateAdminCredentials(req.Username, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	admin, err := h.app.Store.FindAdminByUsername(r.Context(), req.Username)
	if err != nil {
		h.writeStoreError(w, r, err, "admin lookup")
		return
	}
	if admin == nil || !h.app.Hasher.Verify(req.Password, admin.PasswordHash) {
		slog.Warn("admin login failed", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.app.Tokens.Issue(admin.ID, admin.Username, "", auth.AccountKindAdmin)
	if err != nil {
		slog.Error("token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user": map[string]any{
			"id":       admin.ID,
			"username": admin.Username,
		},
	})
}

func (h *handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := domain.ValidateRegistration(req.Name, req.Email, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := h.app.Hasher.Hash(req.Password)
	if err != nil {
		slog.Error("password hash failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	customer, err := h.app.Store.CreateCustomer(r.Context(), req.Name, req.Email, hash)
	if err != nil {
		h.writeStoreError(w, r, err, "customer registration")
		return
	}

	token, err := h.app.Tokens.Issue(customer.ID, "", customer.Email, auth.AccountKindCustomer)
	if err != nil {
		slog.Error("token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful",
		"token":   token,
		"user":    customer,
	})
}

func (h *handlers) handleCustomerLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	customer, err := h.app.Store.FindCustomerByEmail(r.Context(), req.Email)
	if err != nil {
		h.writeStoreError(w, r, err, "customer lookup")
		return
	}
	if customer == nil || !h.app.Hasher.Verify(req.Password, customer.PasswordHash) {
		slog.Warn("customer login failed", "email", req.Email)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.app.Tokens.Issue(customer.ID, "", customer.Email, auth.AccountKindCustomer)
	if err != nil {
		slog.Error("token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user":    customer,
	})
}

// --- Catalog endpoints ---

func (h *handlers) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	plugins, err := h.app.Store.ListActivePlugins(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err, "plugin listing")
		return
	}
	writeJSON(w, http.StatusOK, plugins)
}

func (h *handlers) handleCreatePlugin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		Price       float64 `json:"price"`
		Description string  `json:"description"`
		Image       string  `json:"image"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	plugin, err := h.app.Store.CreatePlugin(r.Context(), store.NewPlugin{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Image:       req.Image,
	})
	if err != nil {
		h.writeStoreError(w, r, err, "plugin creation")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Plugin added successfully",
		"plugin":  plugin,
	})
}

func (h *handlers) handleDeletePlugin(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plugin id")
		return
	}

	plugin, err := h.app.Store.DeactivatePlugin(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err, "plugin removal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Plugin removed successfully",
		"plugin":  plugin,
	})
}

// --- Feedback endpoints ---

func (h *handlers) handleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
		Email   string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var email *string
	if strings.TrimSpace(req.Email) != "" {
		email = &req.Email
	}

	fb, err := h.app.Store.CreateFeedback(r.Context(), req.Message, email)
	if err != nil {
		h.writeStoreError(w, r, err, "feedback creation")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Feedback submitted successfully",
		"id":      fb.ID,
	})
}

func (h *handlers) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	feedback, err := h.app.Store.ListFeedback(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err, "feedback listing")
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}

// --- Order endpoints ---

func (h *handlers) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PluginID      *int64 `json:"plugin_id"`
		CustomerEmail string `json:"customer_email"`
		CustomerName  string `json:"customer_name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	order, err := h.app.Store.CreateOrder(r.Context(), store.NewOrder{
		PluginID:      req.PluginID,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
	})
	if err != nil {
		h.writeStoreError(w, r, err, "order creation")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Order created successfully",
		"order":   order,
	})
}

func (h *handlers) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.app.Store.ListOrders(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err, "order listing")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *handlers) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	order, err := h.app.Store.UpdateOrderStatus(r.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		h.writeStoreError(w, r, err, "order status update")
		return
	}

	identity := middleware.IdentityFromContext(r.Context())
	slog.Info("order status updated", "order_id", order.ID, "status", order.Status,
		"actor", identity.Subject)

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Order updated successfully",
		"order":   order,
	})
}

// --- Account and reporting endpoints ---

func (h *handlers) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.app.Store.ListCustomers(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err, "customer listing")
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

func (h *handlers) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	// Only an admin identity may mint further admin accounts.
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil || identity.Kind != auth.AccountKindAdmin {
		writeError(w, http.StatusForbidden, "Admin access required")
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := domain.ValidateAdminCredentials(req.Username, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := h.app.Hasher.Hash(req.Password)
	if err != nil {
		slog.Error("password hash failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	admin, err := h.app.Store.CreateAdmin(r.Context(), req.Username, hash)
	if err != nil {
		h.writeStoreError(w, r, err, "admin creation")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Admin account created successfully",
		"user":    admin,
	})
}

func (h *handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.app.Store.Counts(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err, "stats")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// --- Fallthrough ---

func (h *handlers) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not found")
}
