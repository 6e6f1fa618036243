package api

import (
	"context"

	"poshub-api/domain"
)

const createOrderMaxSize = 64 * 1024 // 64 KiB

// OrderService exposes the order lifecycle to handlers.
type OrderService interface {
	Create(ctx context.Context, in domain.OrderInput, claims *domain.Claims) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

// Authenticator is implemented by types able to verify bearer credentials.
type Authenticator interface {
	ClaimsFromAuthHeader(string) (domain.Claims, error)
}

// errorResponse is the body of every client-facing failure.
type errorResponse struct {
	Detail string `json:"detail"`
}

// GET /orders response body
type ordersResponse struct {
	Orders []domain.Order `json:"orders"`
}
