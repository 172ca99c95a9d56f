package model

// SummaryResult is the structured payload produced by summary synthesis
// from the full voice-memo transcript. A malformed upstream response is
// substituted with ZeroSummary rather than surfaced as an error.
type SummaryResult struct {
	WorkSummary string     `json:"work_summary"`
	LineItems   []LineItem `json:"line_items"`
	TotalParts  float64    `json:"total_parts"`
	TotalLabor  float64    `json:"total_labor"`
	Total       float64    `json:"total"`
}

// ZeroSummary returns the explicit error payload for failed synthesis:
// empty summary, no line items, zero totals.
func ZeroSummary() *SummaryResult {
	return &SummaryResult{LineItems: []LineItem{}}
}

// ConsistentTotals reports whether total equals parts plus labor within a
// cent. Only synthesis-produced totals are expected to satisfy this.
func (s *SummaryResult) ConsistentTotals() bool {
	diff := s.Total - (s.TotalParts + s.TotalLabor)
	return diff < 0.01 && diff > -0.01
}
