package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/shopdesk/workorder-cli/internal/model"
)

// ErrNotFound reports that a requested record does not exist. Lookup-by-
// attribute methods (phone, email, VIN) return (nil, nil) instead, since
// absence is an expected branch of entity resolution.
var ErrNotFound = errors.New("store: not found")

// IsNotFound reports whether err signals a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// WorkOrderFilter specifies criteria for listing work orders.
type WorkOrderFilter struct {
	Status     model.WorkOrderStatus `json:"status,omitempty"`
	CustomerID string                `json:"customer_id,omitempty"`
	Limit      int                   `json:"limit,omitempty"`
	Offset     int                   `json:"offset,omitempty"`
}

// Store defines the persistence interface for the intake pipeline and the
// CRUD surface around it. Every call is an atomic operation; no
// transaction spans a pipeline run. Updates stamp updated_at and return
// the full updated record, or ErrNotFound.
type Store interface {
	// Work orders
	CreateWorkOrder(ctx context.Context, wo *model.WorkOrder) error
	GetWorkOrder(ctx context.Context, id string) (*model.WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, id string, upd model.WorkOrderUpdate) (*model.WorkOrder, error)
	DeleteWorkOrder(ctx context.Context, id string) error
	ListWorkOrders(ctx context.Context, filter WorkOrderFilter) ([]model.WorkOrder, error)

	// Customers
	CreateCustomer(ctx context.Context, c *model.Customer) error
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*model.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, id string, upd model.CustomerUpdate) (*model.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	ListCustomers(ctx context.Context) ([]model.Customer, error)

	// Vehicles
	CreateVehicle(ctx context.Context, v *model.Vehicle) error
	GetVehicle(ctx context.Context, id string) (*model.Vehicle, error)
	GetVehicleByVIN(ctx context.Context, vin string) (*model.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, upd model.VehicleUpdate) (*model.Vehicle, error)
	DeleteVehicle(ctx context.Context, id string) error
	ListVehiclesByCustomer(ctx context.Context, customerID string) ([]model.Vehicle, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// notFound wraps ErrNotFound with entity context while keeping the
// sentinel matchable via errors.Is.
func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}
