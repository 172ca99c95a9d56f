package model

import "time"

// WorkOrderStatus represents the lifecycle state of a work order.
type WorkOrderStatus string

const (
	StatusPending     WorkOrderStatus = "pending"
	StatusProcessing  WorkOrderStatus = "processing"
	StatusProcessed   WorkOrderStatus = "processed"
	StatusNeedsReview WorkOrderStatus = "needs_review"
	// StatusError is accepted on reads for backward compatibility; the
	// pipeline itself never assigns it and downgrades failures to
	// needs_review so a reviewer can still act on the record.
	StatusError WorkOrderStatus = "error"
)

// Valid reports whether s is a known work-order status.
func (s WorkOrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusProcessed, StatusNeedsReview, StatusError:
		return true
	}
	return false
}

// Terminal reports whether s is terminal for a single pipeline run.
func (s WorkOrderStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusNeedsReview || s == StatusError
}

// LineItemType distinguishes billable parts from labor.
type LineItemType string

const (
	LineItemPart  LineItemType = "part"
	LineItemLabor LineItemType = "labor"
)

// LineItem is a single billable entry on a work order. Line items are
// produced by summary synthesis and are immutable once attached.
type LineItem struct {
	Description string       `json:"description"`
	Type        LineItemType `json:"type"`
	Quantity    float64      `json:"quantity"`
	UnitPrice   float64      `json:"unit_price"`
	Total       float64      `json:"total"`
}

// Vehicle-info map keys populated by the extraction stages.
const (
	InfoVIN     = "vin"
	InfoYear    = "year"
	InfoMake    = "make"
	InfoModel   = "model"
	InfoMileage = "mileage"
	InfoPlate   = "plate"
)

// WorkOrder is the unit of work produced by intake and mutated by exactly
// one background pipeline run. The processing-notes trail is append-only.
type WorkOrder struct {
	ID              string            `json:"id"`
	CustomerID      string            `json:"customer_id,omitempty"`
	VehicleID       string            `json:"vehicle_id,omitempty"`
	VehicleInfo     map[string]string `json:"vehicle_info"`
	WorkSummary     string            `json:"work_summary"`
	LineItems       []LineItem        `json:"line_items"`
	TotalParts      float64           `json:"total_parts"`
	TotalLabor      float64           `json:"total_labor"`
	Total           float64           `json:"total"`
	Status          WorkOrderStatus   `json:"status"`
	ProcessingNotes []string          `json:"processing_notes"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// WorkOrderUpdate is a partial update applied by Store.UpdateWorkOrder.
// Nil pointers and nil slices/maps leave the stored value untouched;
// ProcessingNotes replaces the whole trail (callers append before writing).
type WorkOrderUpdate struct {
	CustomerID      *string            `json:"customer_id,omitempty"`
	VehicleID       *string            `json:"vehicle_id,omitempty"`
	VehicleInfo     map[string]string  `json:"vehicle_info,omitempty"`
	WorkSummary     *string            `json:"work_summary,omitempty"`
	LineItems       []LineItem         `json:"line_items,omitempty"`
	TotalParts      *float64           `json:"total_parts,omitempty"`
	TotalLabor      *float64           `json:"total_labor,omitempty"`
	Total           *float64           `json:"total,omitempty"`
	Status          *WorkOrderStatus   `json:"status,omitempty"`
	ProcessingNotes []string           `json:"processing_notes,omitempty"`
}
