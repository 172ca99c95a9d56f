package pipeline

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shopdesk/workorder-cli/internal/model"
	"github.com/shopdesk/workorder-cli/internal/store"
)

// CustomerHints carries whatever identifying fields the submitter supplied.
type CustomerHints struct {
	ID    string
	Name  string
	Phone string
	Email string
}

// Resolver deduplicates-or-creates Customer and Vehicle records from partial
// identifying data. Every lookup or creation failure degrades to a note;
// resolution never aborts the run. A Resolver holds no per-run state, so one
// instance serves concurrent runs.
type Resolver struct {
	store store.Store
}

// NewResolver creates a Resolver over the given store.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// ResolveCustomer returns the customer id to link, or "" if none could be
// resolved. Precedence: supplied id, phone lookup, email lookup, create from
// name. Inside a background run a missing supplied id is a soft failure.
func (r *Resolver) ResolveCustomer(ctx context.Context, hints CustomerHints) (string, []string) {
	var notes []string

	if hints.ID != "" {
		c, err := r.store.GetCustomer(ctx, hints.ID)
		if err != nil {
			zap.L().Warn("pipeline: supplied customer id not found",
				zap.String("customer_id", hints.ID), zap.Error(err))
			notes = append(notes, "Supplied customer not found - continuing without customer")
			return "", notes
		}
		return c.ID, notes
	}

	if hints.Phone != "" {
		c, err := r.store.GetCustomerByPhone(ctx, hints.Phone)
		if err != nil {
			zap.L().Warn("pipeline: customer phone lookup failed", zap.Error(err))
			notes = append(notes, "Customer lookup error: "+truncateNote(err.Error()))
		} else if c != nil {
			notes = append(notes, "Found existing customer by phone")
			return c.ID, notes
		}
	}

	if hints.Email != "" {
		c, err := r.store.GetCustomerByEmail(ctx, hints.Email)
		if err != nil {
			zap.L().Warn("pipeline: customer email lookup failed", zap.Error(err))
			notes = append(notes, "Customer lookup error: "+truncateNote(err.Error()))
		} else if c != nil {
			notes = append(notes, "Found existing customer by email")
			return c.ID, notes
		}
	}

	if hints.Name == "" {
		return "", notes
	}

	// Names are stored exactly as typed; "McDonald" must not come back
	// as "Mcdonald".
	first, last := splitName(hints.Name)
	c := &model.Customer{
		FirstName: first,
		LastName:  last,
		Email:     hints.Email,
		Phone:     hints.Phone,
		Address:   "",
	}
	if err := r.store.CreateCustomer(ctx, c); err != nil {
		zap.L().Warn("pipeline: customer creation failed", zap.Error(err))
		notes = append(notes, "Customer creation error: "+truncateNote(err.Error()))
		return "", notes
	}
	notes = append(notes, "Created new customer "+c.FullName())
	return c.ID, notes
}

// splitName splits a free-form name into first token and remainder.
func splitName(name string) (first, last string) {
	parts := strings.SplitN(strings.TrimSpace(name), " ", 2)
	first = parts[0]
	if len(parts) > 1 {
		last = strings.TrimSpace(parts[1])
	}
	return first, last
}

// ResolveVehicle returns the vehicle id to link, or "" if none could be
// resolved. A resolved customer id is required for any creation path. When a
// VIN is present the vehicle is found-or-created by VIN, merging newly
// observed plate and mileage; mileage only ever moves forward. Without a VIN
// a placeholder vehicle is created when make or model is known.
func (r *Resolver) ResolveVehicle(ctx context.Context, customerID string, vehicleInfo map[string]string) (string, []string) {
	var notes []string

	if customerID == "" {
		return "", notes
	}

	vin := vehicleInfo[model.InfoVIN]
	plate := vehicleInfo[model.InfoPlate]
	mileage := parseMileage(vehicleInfo[model.InfoMileage])

	if vin != "" {
		existing, err := r.store.GetVehicleByVIN(ctx, vin)
		if err != nil {
			zap.L().Warn("pipeline: vehicle vin lookup failed", zap.Error(err))
			notes = append(notes, "Vehicle lookup error: "+truncateNote(err.Error()))
			return "", notes
		}

		if existing != nil {
			notes = append(notes, "Found existing vehicle")

			upd := model.VehicleUpdate{}
			if plate != "" {
				upd.Plate = &plate
			}
			if mileage > existing.Mileage {
				upd.Mileage = &mileage
			}
			if upd.Plate != nil || upd.Mileage != nil {
				if _, err := r.store.UpdateVehicle(ctx, existing.ID, upd); err != nil {
					zap.L().Warn("pipeline: vehicle update failed",
						zap.String("vehicle_id", existing.ID), zap.Error(err))
					notes = append(notes, "Vehicle update error: "+truncateNote(err.Error()))
				}
			}
			return existing.ID, notes
		}

		v := &model.Vehicle{
			CustomerID: customerID,
			VIN:        vin,
			Plate:      plate,
			Year:       vehicleInfo[model.InfoYear],
			Make:       vehicleInfo[model.InfoMake],
			Model:      vehicleInfo[model.InfoModel],
			Mileage:    mileage,
		}
		if err := r.store.CreateVehicle(ctx, v); err != nil {
			zap.L().Warn("pipeline: vehicle creation failed", zap.Error(err))
			notes = append(notes, "Vehicle creation error: "+truncateNote(err.Error()))
			return "", notes
		}
		notes = append(notes, "Created new vehicle")
		return v.ID, notes
	}

	if vehicleInfo[model.InfoMake] == "" && vehicleInfo[model.InfoModel] == "" {
		return "", notes
	}

	v := &model.Vehicle{
		CustomerID: customerID,
		Plate:      plate,
		Year:       vehicleInfo[model.InfoYear],
		Make:       vehicleInfo[model.InfoMake],
		Model:      vehicleInfo[model.InfoModel],
		Mileage:    mileage,
	}
	if err := r.store.CreateVehicle(ctx, v); err != nil {
		zap.L().Warn("pipeline: placeholder vehicle creation failed", zap.Error(err))
		notes = append(notes, "Vehicle creation error: "+truncateNote(err.Error()))
		return "", notes
	}
	notes = append(notes, "Created new vehicle with partial info")
	return v.ID, notes
}

func parseMileage(s string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
