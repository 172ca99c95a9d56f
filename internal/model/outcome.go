package model

// Outcome is the tagged result of one best-effort extraction call. It
// distinguishes "call failed" (Err set) from "call succeeded but found
// nothing" (empty Value, nil Err), which sentinel empty strings cannot.
type Outcome struct {
	Value string
	Err   error
}

// OutcomeValue wraps a successfully extracted value.
func OutcomeValue(v string) Outcome {
	return Outcome{Value: v}
}

// OutcomeErr wraps a soft extraction failure.
func OutcomeErr(err error) Outcome {
	return Outcome{Err: err}
}

// OK reports whether the call succeeded and produced a non-empty value.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Value != ""
}

// Failed reports whether the call itself failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}
