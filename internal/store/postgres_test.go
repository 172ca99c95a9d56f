package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopdesk/workorder-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func workOrderRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "customer_id", "vehicle_id", "vehicle_info", "work_summary", "line_items",
		"total_parts", "total_labor", "total", "status", "processing_notes", "created_at", "updated_at",
	})
}

func TestPostgresStore_GetWorkOrder_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM work_orders WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetWorkOrder(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetWorkOrder(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM work_orders WHERE id = \$1`).
		WithArgs("wo-1").
		WillReturnRows(workOrderRows().AddRow(
			"wo-1", "cust-1", "veh-1", []byte(`{"vin":"1HGCM82633A004352"}`), "Brakes", []byte(`[]`),
			0.0, 0.0, 0.0, "processed", []byte(`["done"]`), now, now,
		))

	wo, err := s.GetWorkOrder(context.Background(), "wo-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, wo.Status)
	assert.Equal(t, "1HGCM82633A004352", wo.VehicleInfo[model.InfoVIN])
	assert.Equal(t, []string{"done"}, wo.ProcessingNotes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateWorkOrder(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO work_orders`).
		WithArgs(pgxmock.AnyArg(), "", "", pgxmock.AnyArg(), "", pgxmock.AnyArg(),
			0.0, 0.0, 0.0, "pending", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	wo := &model.WorkOrder{}
	require.NoError(t, s.CreateWorkOrder(context.Background(), wo))
	assert.NotEmpty(t, wo.ID)
	assert.Equal(t, model.StatusPending, wo.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateWorkOrder_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE work_orders SET`).
		WithArgs(pgxmock.AnyArg(), "processed", "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	status := model.StatusProcessed
	_, err := s.UpdateWorkOrder(context.Background(), "nope", model.WorkOrderUpdate{Status: &status})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteWorkOrder(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM work_orders WHERE id = \$1`).
		WithArgs("wo-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.DeleteWorkOrder(context.Background(), "wo-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCustomer(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM customers WHERE id = \$1`).
		WithArgs("cust-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.DeleteCustomer(context.Background(), "cust-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteVehicle_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM vehicles WHERE id = \$1`).
		WithArgs("nope").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteVehicle(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCustomerByPhone_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM customers WHERE phone = \$1`).
		WithArgs("555-0199").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCustomerByPhone(context.Background(), "555-0199")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCustomerByPhone_EmptyShortCircuits(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	c, err := s.GetCustomerByPhone(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetVehicleByVIN(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM vehicles WHERE vin = \$1`).
		WithArgs("1HGCM82633A004352").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "customer_id", "vin", "plate", "year", "make", "model", "engine", "mileage", "created_at", "updated_at",
		}).AddRow("veh-1", "cust-1", "1HGCM82633A004352", "", "2003", "Honda", "Accord", "", 88000, now, now))

	v, err := s.GetVehicleByVIN(context.Background(), "1HGCM82633A004352")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "Honda", v.Make)
	assert.Equal(t, 88000, v.Mileage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS customers`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
