package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/shopdesk/workorder-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS customers (
	id         TEXT PRIMARY KEY,
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	address    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
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
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS work_orders (
	id               TEXT PRIMARY KEY,
	customer_id      TEXT NOT NULL DEFAULT '',
	vehicle_id       TEXT NOT NULL DEFAULT '',
	vehicle_info     TEXT NOT NULL DEFAULT '{}',
	work_summary     TEXT NOT NULL DEFAULT '',
	line_items       TEXT NOT NULL DEFAULT '[]',
	total_parts      REAL NOT NULL DEFAULT 0,
	total_labor      REAL NOT NULL DEFAULT 0,
	total            REAL NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'pending',
	processing_notes TEXT NOT NULL DEFAULT '[]',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_customers_phone ON customers(phone);
CREATE INDEX IF NOT EXISTS idx_customers_email ON customers(email);
CREATE INDEX IF NOT EXISTS idx_vehicles_vin ON vehicles(vin);
CREATE INDEX IF NOT EXISTS idx_vehicles_customer_id ON vehicles(customer_id);
CREATE INDEX IF NOT EXISTS idx_work_orders_status ON work_orders(status);
CREATE INDEX IF NOT EXISTS idx_work_orders_customer_id ON work_orders(customer_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- work orders ---

const workOrderColumns = `id, customer_id, vehicle_id, vehicle_info, work_summary, line_items,
	total_parts, total_labor, total, status, processing_notes, created_at, updated_at`

func (s *SQLiteStore) CreateWorkOrder(ctx context.Context, wo *model.WorkOrder) error {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO work_orders (`+workOrderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wo.ID, wo.CustomerID, wo.VehicleID, infoJSON, wo.WorkSummary, itemsJSON,
		wo.TotalParts, wo.TotalLabor, wo.Total, string(wo.Status), notesJSON, now, now,
	)
	return eris.Wrap(err, "sqlite: insert work order")
}

func (s *SQLiteStore) GetWorkOrder(ctx context.Context, id string) (*model.WorkOrder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE id = ?`, id)
	wo, err := scanWorkOrder(row)
	if err == sql.ErrNoRows {
		return nil, notFound("work order", id)
	}
	return wo, err
}

func (s *SQLiteStore) UpdateWorkOrder(ctx context.Context, id string, upd model.WorkOrderUpdate) (*model.WorkOrder, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	appendSet := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = ?", col))
		args = append(args, v)
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
			return nil, eris.Wrap(err, "sqlite: marshal vehicle info")
		}
		appendSet("vehicle_info", string(j))
	}
	if upd.WorkSummary != nil {
		appendSet("work_summary", *upd.WorkSummary)
	}
	if upd.LineItems != nil {
		j, err := json.Marshal(upd.LineItems)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal line items")
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
			return nil, eris.Wrap(err, "sqlite: marshal processing notes")
		}
		appendSet("processing_notes", string(j))
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE work_orders SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update work order %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound("work order", id)
	}
	return s.GetWorkOrder(ctx, id)
}

func (s *SQLiteStore) DeleteWorkOrder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM work_orders WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete work order %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("work order", id)
	}
	return nil
}

func (s *SQLiteStore) ListWorkOrders(ctx context.Context, filter WorkOrderFilter) ([]model.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.CustomerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, filter.CustomerID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list work orders")
	}
	defer rows.Close()

	var orders []model.WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *wo)
	}
	return orders, eris.Wrap(rows.Err(), "sqlite: list work orders iterate")
}

// --- customers ---

const customerColumns = `id, first_name, last_name, email, phone, address, created_at, updated_at`

func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Address, now, now,
	)
	return eris.Wrap(err, "sqlite: insert customer")
}

func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
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

func (s *SQLiteStore) GetCustomerByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	return s.customerByAttr(ctx, "phone", phone)
}

func (s *SQLiteStore) GetCustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return s.customerByAttr(ctx, "email", email)
}

func (s *SQLiteStore) customerByAttr(ctx context.Context, col, val string) (*model.Customer, error) {
	if val == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE `+col+` = ? ORDER BY created_at LIMIT 1`, val)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
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

func (s *SQLiteStore) vehicleIDs(ctx context.Context, customerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM vehicles WHERE customer_id = ? ORDER BY created_at`, customerID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vehicle ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vehicle id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list vehicle ids iterate")
}

func (s *SQLiteStore) UpdateCustomer(ctx context.Context, id string, upd model.CustomerUpdate) (*model.Customer, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	for col, v := range map[string]*string{
		"first_name": upd.FirstName,
		"last_name":  upd.LastName,
		"email":      upd.Email,
		"phone":      upd.Phone,
		"address":    upd.Address,
	} {
		if v != nil {
			sets = append(sets, fmt.Sprintf("%s = ?", col))
			args = append(args, *v)
		}
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update customer %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound("customer", id)
	}
	return s.GetCustomer(ctx, id)
}

func (s *SQLiteStore) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete customer %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("customer", id)
	}
	return nil
}

func (s *SQLiteStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list customers")
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, eris.Wrap(rows.Err(), "sqlite: list customers iterate")
}

// --- vehicles ---

const vehicleColumns = `id, customer_id, vin, plate, year, make, model, engine, mileage, created_at, updated_at`

func (s *SQLiteStore) CreateVehicle(ctx context.Context, v *model.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vehicles (`+vehicleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.CustomerID, v.VIN, v.Plate, v.Year, v.Make, v.Model, v.Engine, v.Mileage, now, now,
	)
	return eris.Wrap(err, "sqlite: insert vehicle")
}

func (s *SQLiteStore) GetVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)
	v, err := scanVehicle(row)
	if err == sql.ErrNoRows {
		return nil, notFound("vehicle", id)
	}
	return v, err
}

func (s *SQLiteStore) GetVehicleByVIN(ctx context.Context, vin string) (*model.Vehicle, error) {
	if vin == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE vin = ? ORDER BY created_at LIMIT 1`, vin)
	v, err := scanVehicle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (s *SQLiteStore) UpdateVehicle(ctx context.Context, id string, upd model.VehicleUpdate) (*model.Vehicle, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.Plate != nil {
		sets = append(sets, "plate = ?")
		args = append(args, *upd.Plate)
	}
	if upd.Mileage != nil {
		sets = append(sets, "mileage = ?")
		args = append(args, *upd.Mileage)
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE vehicles SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update vehicle %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound("vehicle", id)
	}
	return s.GetVehicle(ctx, id)
}

func (s *SQLiteStore) DeleteVehicle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete vehicle %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("vehicle", id)
	}
	return nil
}

func (s *SQLiteStore) ListVehiclesByCustomer(ctx context.Context, customerID string) ([]model.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE customer_id = ? ORDER BY created_at`, customerID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vehicles by customer")
	}
	defer rows.Close()

	var vehicles []model.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, eris.Wrap(rows.Err(), "sqlite: list vehicles iterate")
}

// --- helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func marshalWorkOrderJSON(info map[string]string, items []model.LineItem, notes []string) (string, string, string, error) {
	if items == nil {
		items = []model.LineItem{}
	}
	if notes == nil {
		notes = []string{}
	}
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return "", "", "", eris.Wrap(err, "sqlite: marshal vehicle info")
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", "", "", eris.Wrap(err, "sqlite: marshal line items")
	}
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return "", "", "", eris.Wrap(err, "sqlite: marshal processing notes")
	}
	return string(infoJSON), string(itemsJSON), string(notesJSON), nil
}

func scanWorkOrder(row scannable) (*model.WorkOrder, error) {
	var wo model.WorkOrder
	var infoJSON, itemsJSON, notesJSON, status string

	err := row.Scan(&wo.ID, &wo.CustomerID, &wo.VehicleID, &infoJSON, &wo.WorkSummary, &itemsJSON,
		&wo.TotalParts, &wo.TotalLabor, &wo.Total, &status, &notesJSON, &wo.CreatedAt, &wo.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan work order")
	}
	wo.Status = model.WorkOrderStatus(status)

	if err := json.Unmarshal([]byte(infoJSON), &wo.VehicleInfo); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal vehicle info")
	}
	if err := json.Unmarshal([]byte(itemsJSON), &wo.LineItems); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal line items")
	}
	if err := json.Unmarshal([]byte(notesJSON), &wo.ProcessingNotes); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal processing notes")
	}
	return &wo, nil
}

func scanCustomer(row scannable) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan customer")
	}
	return &c, nil
}

func scanVehicle(row scannable) (*model.Vehicle, error) {
	var v model.Vehicle
	err := row.Scan(&v.ID, &v.CustomerID, &v.VIN, &v.Plate, &v.Year, &v.Make, &v.Model, &v.Engine, &v.Mileage, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan vehicle")
	}
	return &v, nil
}
