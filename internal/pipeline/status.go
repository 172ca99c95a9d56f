package pipeline

import "github.com/shopdesk/workorder-cli/internal/model"

// runOutcome is the structured record a pipeline run accumulates. Status is
// derived from it exactly once, at the end of the run, instead of being
// reassigned by each stage along the way.
type runOutcome struct {
	runErr      error
	vinResolved bool
	vehicleID   string
}

// reconcileStatus derives the terminal status for one run. Precedence,
// highest first: a run-level failure parks the order for review; an order
// whose vehicle could not be pinned down (no VIN in the attributes map, or
// no linked vehicle) needs review even if a full summary was generated;
// everything else is processed. The error status is never assigned here so a
// reviewer can always act on the record.
func reconcileStatus(o runOutcome) model.WorkOrderStatus {
	if o.runErr != nil {
		return model.StatusNeedsReview
	}
	if !o.vinResolved || o.vehicleID == "" {
		return model.StatusNeedsReview
	}
	return model.StatusProcessed
}
