package model

import "time"

// Vehicle is a customer's car. VIN is the primary dedup key when present;
// placeholder vehicles created from partial extraction may have none.
// Year stays a string because registry decodes return free-form values.
type Vehicle struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	VIN        string    `json:"vin,omitempty"`
	Plate      string    `json:"plate,omitempty"`
	Year       string    `json:"year,omitempty"`
	Make       string    `json:"make,omitempty"`
	Model      string    `json:"model,omitempty"`
	Engine     string    `json:"engine,omitempty"`
	Mileage    int       `json:"mileage,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// VehicleUpdate is a partial update applied by Store.UpdateVehicle.
// Mileage merges follow the monotonic policy in the resolver, not here.
type VehicleUpdate struct {
	Plate   *string `json:"plate,omitempty"`
	Mileage *int    `json:"mileage,omitempty"`
}
