package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/shopdesk/workorder-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS customers (
	id         TEXT PRIMARY KEY,
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	address    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS vehicles (
	id          TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	vin         TEXT NOT NULL DEFAULT '',
	plate       TEXT NOT NULL DEFAULT '',
	year        TEXT NOT NULL DEFAULT '',
	make        TEXT NOT NULL DEFAULT '',
	model       TEXT NOT NULL DEFAULT '',
	engine      TEXT NOT NULL DEFAULT '',
	mileage     INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS work_orders (
	id               TEXT PRIMARY KEY,
	customer_id      TEXT NOT NULL DEFAULT '',
	vehicle_id       TEXT NOT NULL DEFAULT '',
	vehicle_info     JSONB NOT NULL DEFAULT '{}',
	work_summary     TEXT NOT NULL DEFAULT '',
	line_items       JSONB NOT NULL DEFAULT '[]',
	total_parts      DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_labor      DOUBLE PRECISION NOT NULL DEFAULT 0,
	total            DOUBLE PRECISION NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'pending',
	processing_notes JSONB NOT NULL DEFAULT '[]',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_customers_phone ON customers(phone);
CREATE INDEX IF NOT EXISTS idx_customers_email ON customers(email);
CREATE INDEX IF NOT EXISTS idx_vehicles_vin ON vehicles(vin);
CREATE INDEX IF NOT EXISTS idx_vehicles_customer_id ON vehicles(customer_id);
CREATE INDEX IF NOT EXISTS idx_work_orders_status ON work_orders(status);
CREATE INDEX IF NOT EXISTS idx_work_orders_customer_id ON work_orders(customer_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// --- work orders ---

func (s *PostgresStore) CreateWorkOrder(ctx context.Context, wo *model.WorkOrder) error {
	if wo.ID == "" {
		wo.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	wo.CreatedAt = now
	wo.UpdatedAt = now
	if wo.Status == "" {
		wo.Status = model.StatusPending
	}
	if wo.VehicleInfo == nil {
		wo.VehicleInfo = map[string]string{}
	}

	infoJSON, itemsJSON, notesJSON, err := marshalWorkOrderJSON(wo.VehicleInfo, wo.LineItems, wo.ProcessingNotes)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO work_orders (`+workOrderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		wo.ID, wo.CustomerID, wo.VehicleID, infoJSON, wo.WorkSummary, itemsJSON,
		wo.TotalParts, wo.TotalLabor, wo.Total, string(wo.Status), notesJSON, now, now,
	)
	return eris.Wrap(err, "postgres: insert work order")
}

func (s *PostgresStore) GetWorkOrder(ctx context.Context, id string) (*model.WorkOrder, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE id = $1`, id)
	wo, err := scanPgWorkOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("work order", id)
	}
	return wo, err
}

func (s *PostgresStore) UpdateWorkOrder(ctx context.Context, id string, upd model.WorkOrderUpdate) (*model.WorkOrder, error) {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}

	appendSet := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.CustomerID != nil {
		appendSet("customer_id", *upd.CustomerID)
	}
	if upd.VehicleID != nil {
		appendSet("vehicle_id", *upd.VehicleID)
	}
	if upd.VehicleInfo != nil {
		j, err := json.Marshal(upd.VehicleInfo)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal vehicle info")
		}
		appendSet("vehicle_info", string(j))
	}
	if upd.WorkSummary != nil {
		appendSet("work_summary", *upd.WorkSummary)
	}
	if upd.LineItems != nil {
		j, err := json.Marshal(upd.LineItems)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal line items")
		}
		appendSet("line_items", string(j))
	}
	if upd.TotalParts != nil {
		appendSet("total_parts", *upd.TotalParts)
	}
	if upd.TotalLabor != nil {
		appendSet("total_labor", *upd.TotalLabor)
	}
	if upd.Total != nil {
		appendSet("total", *upd.Total)
	}
	if upd.Status != nil {
		appendSet("status", string(*upd.Status))
	}
	if upd.ProcessingNotes != nil {
		j, err := json.Marshal(upd.ProcessingNotes)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal processing notes")
		}
		appendSet("processing_notes", string(j))
	}

	args = append(args, id)
	tag, err := s.pool.Exec(ctx,
		`UPDATE work_orders SET `+strings.Join(sets, ", ")+fmt.Sprintf(` WHERE id = $%d`, len(args)),
		args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update work order %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound("work order", id)
	}
	return s.GetWorkOrder(ctx, id)
}

func (s *PostgresStore) DeleteWorkOrder(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM work_orders WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete work order %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("work order", id)
	}
	return nil
}

func (s *PostgresStore) ListWorkOrders(ctx context.Context, filter WorkOrderFilter) ([]model.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(` AND customer_id = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list work orders")
	}
	defer rows.Close()

	var orders []model.WorkOrder
	for rows.Next() {
		wo, err := scanPgWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *wo)
	}
	return orders, eris.Wrap(rows.Err(), "postgres: list work orders iterate")
}

// --- customers ---

func (s *PostgresStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO customers (`+customerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Address, now, now,
	)
	return eris.Wrap(err, "postgres: insert customer")
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	c, err := scanPgCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("customer", id)
	}
	if err != nil {
		return nil, err
	}
	if c.VehicleIDs, err = s.vehicleIDs(ctx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) GetCustomerByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	return s.customerByAttr(ctx, "phone", phone)
}

func (s *PostgresStore) GetCustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return s.customerByAttr(ctx, "email", email)
}

func (s *PostgresStore) customerByAttr(ctx context.Context, col, val string) (*model.Customer, error) {
	if val == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE `+col+` = $1 ORDER BY created_at LIMIT 1`, val)
	c, err := scanPgCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if c.VehicleIDs, err = s.vehicleIDs(ctx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) vehicleIDs(ctx context.Context, customerID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM vehicles WHERE customer_id = $1 ORDER BY created_at`, customerID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vehicle ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vehicle id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list vehicle ids iterate")
}

func (s *PostgresStore) UpdateCustomer(ctx context.Context, id string, upd model.CustomerUpdate) (*model.Customer, error) {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}

	for _, f := range []struct {
		col string
		val *string
	}{
		{"first_name", upd.FirstName},
		{"last_name", upd.LastName},
		{"email", upd.Email},
		{"phone", upd.Phone},
		{"address", upd.Address},
	} {
		if f.val != nil {
			args = append(args, *f.val)
			sets = append(sets, fmt.Sprintf("%s = $%d", f.col, len(args)))
		}
	}

	args = append(args, id)
	tag, err := s.pool.Exec(ctx,
		`UPDATE customers SET `+strings.Join(sets, ", ")+fmt.Sprintf(` WHERE id = $%d`, len(args)),
		args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update customer %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound("customer", id)
	}
	return s.GetCustomer(ctx, id)
}

func (s *PostgresStore) DeleteCustomer(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete customer %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("customer", id)
	}
	return nil
}

func (s *PostgresStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list customers")
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		c, err := scanPgCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, eris.Wrap(rows.Err(), "postgres: list customers iterate")
}

// --- vehicles ---

func (s *PostgresStore) CreateVehicle(ctx context.Context, v *model.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO vehicles (`+vehicleColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		v.ID, v.CustomerID, v.VIN, v.Plate, v.Year, v.Make, v.Model, v.Engine, v.Mileage, now, now,
	)
	return eris.Wrap(err, "postgres: insert vehicle")
}

func (s *PostgresStore) GetVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
	v, err := scanPgVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("vehicle", id)
	}
	return v, err
}

func (s *PostgresStore) GetVehicleByVIN(ctx context.Context, vin string) (*model.Vehicle, error) {
	if vin == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE vin = $1 ORDER BY created_at LIMIT 1`, vin)
	v, err := scanPgVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (s *PostgresStore) UpdateVehicle(ctx context.Context, id string, upd model.VehicleUpdate) (*model.Vehicle, error) {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}

	if upd.Plate != nil {
		args = append(args, *upd.Plate)
		sets = append(sets, fmt.Sprintf("plate = $%d", len(args)))
	}
	if upd.Mileage != nil {
		args = append(args, *upd.Mileage)
		sets = append(sets, fmt.Sprintf("mileage = $%d", len(args)))
	}

	args = append(args, id)
	tag, err := s.pool.Exec(ctx,
		`UPDATE vehicles SET `+strings.Join(sets, ", ")+fmt.Sprintf(` WHERE id = $%d`, len(args)),
		args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update vehicle %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound("vehicle", id)
	}
	return s.GetVehicle(ctx, id)
}

func (s *PostgresStore) DeleteVehicle(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete vehicle %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("vehicle", id)
	}
	return nil
}

func (s *PostgresStore) ListVehiclesByCustomer(ctx context.Context, customerID string) ([]model.Vehicle, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE customer_id = $1 ORDER BY created_at`, customerID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vehicles by customer")
	}
	defer rows.Close()

	var vehicles []model.Vehicle
	for rows.Next() {
		v, err := scanPgVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, eris.Wrap(rows.Err(), "postgres: list vehicles iterate")
}

// --- scan helpers ---

func scanPgWorkOrder(row pgx.Row) (*model.WorkOrder, error) {
	var wo model.WorkOrder
	var infoJSON, itemsJSON, notesJSON []byte
	var status string

	err := row.Scan(&wo.ID, &wo.CustomerID, &wo.VehicleID, &infoJSON, &wo.WorkSummary, &itemsJSON,
		&wo.TotalParts, &wo.TotalLabor, &wo.Total, &status, &notesJSON, &wo.CreatedAt, &wo.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan work order")
	}
	wo.Status = model.WorkOrderStatus(status)

	if err := json.Unmarshal(infoJSON, &wo.VehicleInfo); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal vehicle info")
	}
	if err := json.Unmarshal(itemsJSON, &wo.LineItems); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal line items")
	}
	if err := json.Unmarshal(notesJSON, &wo.ProcessingNotes); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal processing notes")
	}
	return &wo, nil
}

func scanPgCustomer(row pgx.Row) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan customer")
	}
	return &c, nil
}

func scanPgVehicle(row pgx.Row) (*model.Vehicle, error) {
	var v model.Vehicle
	err := row.Scan(&v.ID, &v.CustomerID, &v.VIN, &v.Plate, &v.Year, &v.Make, &v.Model, &v.Engine, &v.Mileage, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan vehicle")
	}
	return &v, nil
}
