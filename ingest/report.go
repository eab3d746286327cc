package ingest

const (
	MsgNoValidRows = "No valid rows"
	MsgDuplicates  = "Duplicate data found"
	MsgSuccess     = "Success"
)

// Report is what the caller of an ingestion sees.
type Report struct {
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
	Message string `json:"message"`
}

// BuildReport summarizes a resolution over a batch of candidates.
func BuildReport(candidates int, res Resolution) Report {
	r := Report{Added: len(res.Accepted), Skipped: res.Skipped}
	switch {
	case candidates == 0:
		r.Message = MsgNoValidRows
	case r.Skipped > 0:
		r.Message = MsgDuplicates
	default:
		r.Message = MsgSuccess
	}
	return r
}
