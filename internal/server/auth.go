package server

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/tdnguyen/go-deliveryhub/internal/database"
	"github.com/tdnguyen/go-deliveryhub/internal/types"
)

// authGate decides whether an identity may take part in an order's
// conversation by consulting the order store on every call. Decisions
// are not cached: an order's shipper assignment can change between
// checks, but a join that was granted stays granted for the life of
// the connection unless the client re-joins.
type authGate struct {
	repo database.DeliveryRepository
}

// CanJoin permits the order's customer and its assigned shipper.
// Unknown orders are denied rather than reported as errors.
func (g *authGate) CanJoin(identity types.Identity, orderId string) (bool, error) {
	order, err := g.repo.GetOrderById(orderId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("fetch order %q: %w", orderId, err)
	}

	switch identity.Kind {
	case types.KindCustomer:
		return order.CustomerId == identity.Id, nil
	case types.KindShipper:
		return order.ShipperId.Valid && order.ShipperId.String == identity.Id, nil
	}

	return false, nil
}

// CanUpdateLocation permits only the shipper currently assigned to
// the order.
func (g *authGate) CanUpdateLocation(identity types.Identity, orderId string) (bool, error) {
	if identity.Kind != types.KindShipper {
		return false, nil
	}

	order, err := g.repo.GetOrderById(orderId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("fetch order %q: %w", orderId, err)
	}

	return order.ShipperId.Valid && order.ShipperId.String == identity.Id, nil
}
