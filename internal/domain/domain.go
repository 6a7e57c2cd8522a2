// Package domain holds the validation and lifecycle rules applied before any
// persistence call. All checks are pure functions: they take decoded input,
// return a typed error or nil, and never touch storage.
package domain

import (
	"fmt"
	"net/mail"
	"strings"
)

// OrderStatus enumerates the order lifecycle states. Any status is reachable
// from any other, but only through an authenticated actor.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ValidationError reports malformed or missing input. It maps to HTTP 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidateNewPlugin checks catalog entry fields: non-empty name and
// description, strictly positive price.
func ValidateNewPlugin(name string, price float64, description string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", "is required")
	}
	if strings.TrimSpace(description) == "" {
		return invalid("description", "is required")
	}
	if price <= 0 {
		return invalid("price", "must be a positive number")
	}
	return nil
}

// ValidateNewOrder checks order creation input. Only the customer email is
// required; the plugin reference and display name are optional.
func ValidateNewOrder(customerEmail string) error {
	if strings.TrimSpace(customerEmail) == "" {
		return invalid("customer_email", "is required")
	}
	return nil
}

// ValidateStatus checks that s is one of the three order statuses.
func ValidateStatus(s OrderStatus) error {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return nil
	}
	return invalid("status", fmt.Sprintf("must be one of %q, %q, %q",
		OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled))
}

// ValidateFeedback checks that the message is non-empty after trimming.
func ValidateFeedback(message string) error {
	if strings.TrimSpace(message) == "" {
		return invalid("message", "is required")
	}
	return nil
}

// ValidateRegistration checks customer registration input: all of name,
// email and password are required, and the email must parse.
func ValidateRegistration(name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", "is required")
	}
	if strings.TrimSpace(email) == "" {
		return invalid("email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return invalid("email", "is not a valid address")
	}
	if password == "" {
		return invalid("password", "is required")
	}
	return nil
}

// ValidateAdminCredentials checks admin account input: username and password
// are both required.
func ValidateAdminCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return invalid("username", "is required")
	}
	if password == "" {
		return invalid("password", "is required")
	}
	return nil
}
