package notification

// Result is the outcome of one provider send. It is never persisted.
type Result struct {
	Token     string
	Delivered bool
	Err       error
}

// Report aggregates the results of one dispatch.
type Report struct {
	Sent    int
	Total   int
	Skipped bool
	Results []Result
}

func NewReport(results []Result) Report {
	r := Report{Total: len(results), Results: results}
	for _, res := range results {
		if res.Delivered {
			r.Sent++
		}
	}
	return r
}

func (r Report) Failed() int { return r.Total - r.Sent }

// Partial reports a dispatch where some tokens got the push and some did not.
// It is a count, never an error.
func (r Report) Partial() bool {
	return r.Sent > 0 && r.Sent < r.Total
}
