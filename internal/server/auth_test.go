package server

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tdnguyen/go-deliveryhub/internal/database"
	"github.com/tdnguyen/go-deliveryhub/internal/types"
)

func Test_authGate_CanJoin(t *testing.T) {
	order := database.Order{
		Id:         "o1",
		CustomerId: "c1",
		ShipperId:  sql.NullString{String: "s1", Valid: true},
	}

	tests := []struct {
		name     string
		identity types.Identity
		order    database.Order
		orderErr error
		allowed  bool
		wantErr  bool
	}{
		{
			name:     "matching customer is permitted",
			identity: types.Identity{Id: "c1", Kind: types.KindCustomer},
			order:    order,
			allowed:  true,
		},
		{
			name:     "assigned shipper is permitted",
			identity: types.Identity{Id: "s1", Kind: types.KindShipper},
			order:    order,
			allowed:  true,
		},
		{
			name:     "other customer is denied",
			identity: types.Identity{Id: "c2", Kind: types.KindCustomer},
			order:    order,
		},
		{
			name:     "unassigned shipper is denied",
			identity: types.Identity{Id: "s2", Kind: types.KindShipper},
			order:    order,
		},
		{
			name:     "shipper denied when order has no shipper",
			identity: types.Identity{Id: "s1", Kind: types.KindShipper},
			order:    database.Order{Id: "o1", CustomerId: "c1"},
		},
		{
			name:     "admin is denied room join",
			identity: types.Identity{Id: "a1", Kind: types.KindAdmin},
			order:    order,
		},
		{
			name:     "unknown order is denied without error",
			identity: types.Identity{Id: "c1", Kind: types.KindCustomer},
			orderErr: sql.ErrNoRows,
		},
		{
			name:     "store failure surfaces as error",
			identity: types.Identity{Id: "c1", Kind: types.KindCustomer},
			orderErr: errors.New("connection refused"),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &database.MockDeliveryRepository{}
			repo.On("GetOrderById", "o1").Return(tt.order, tt.orderErr)

			gate := &authGate{repo: repo}
			allowed, err := gate.CanJoin(tt.identity, "o1")

			if tt.wantErr {
				assert.Error(t, err, "expected store failure to propagate")
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func Test_authGate_CanUpdateLocation(t *testing.T) {
	order := database.Order{
		Id:         "o1",
		CustomerId: "c1",
		ShipperId:  sql.NullString{String: "s1", Valid: true},
	}

	t.Run("assigned shipper is permitted", func(t *testing.T) {
		repo := &database.MockDeliveryRepository{}
		repo.On("GetOrderById", "o1").Return(order, nil)

		gate := &authGate{repo: repo}
		allowed, err := gate.CanUpdateLocation(types.Identity{Id: "s1", Kind: types.KindShipper}, "o1")
		assert.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("non-shipper is denied without a store call", func(t *testing.T) {
		repo := &database.MockDeliveryRepository{}

		gate := &authGate{repo: repo}
		allowed, err := gate.CanUpdateLocation(types.Identity{Id: "c1", Kind: types.KindCustomer}, "o1")
		assert.NoError(t, err)
		assert.False(t, allowed)
		repo.AssertNotCalled(t, "GetOrderById")
	})

	t.Run("unassigned shipper is denied", func(t *testing.T) {
		repo := &database.MockDeliveryRepository{}
		repo.On("GetOrderById", "o1").Return(order, nil)

		gate := &authGate{repo: repo}
		allowed, err := gate.CanUpdateLocation(types.Identity{Id: "s2", Kind: types.KindShipper}, "o1")
		assert.NoError(t, err)
		assert.False(t, allowed)
	})
}
