package validation

import (
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// register struct-level validation for ListOrdersQuery so a reversed
	// date range is rejected before it reaches the warehouse query.
	v.RegisterStructValidation(listOrdersStructValidation, ListOrdersQuery{})

	return v
}

// listOrdersStructValidation rejects ranges where start is after end. Field
// formats are already covered by the datetime tag.
func listOrdersStructValidation(sl validatorv10.StructLevel) {
	q := sl.Current().Interface().(ListOrdersQuery)
	if q.Start == "" || q.End == "" {
		return
	}
	start, err1 := time.Parse(DateLayout, q.Start)
	end, err2 := time.Parse(DateLayout, q.End)
	if err1 != nil || err2 != nil {
		return
	}
	if start.After(end) {
		sl.ReportError(q.Start, "start", "Start", "range_order", "start after end")
	}
}
