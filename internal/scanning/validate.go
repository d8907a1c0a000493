package scanning

const (
	IssueAmount  = "Amount not found or invalid"
	IssueDate    = "Date not found"
	IssueStation = "Station name not identified"
)

// Verdict is the outcome of checking the required receipt fields
type Verdict struct {
	IsValid              bool     `json:"is_valid"`
	RequiresManualReview bool     `json:"requires_manual_review"`
	Issues               []string `json:"issues"`
}

// Validate checks that amount, date and station name were extracted. A receipt
// missing other fields but carrying a positive amount is routed to manual review.
func Validate(f Fields) Verdict {
	hasAmount := f.Amount != nil && *f.Amount > 0

	issues := []string{}
	if !hasAmount {
		issues = append(issues, IssueAmount)
	}
	if f.Date == nil {
		issues = append(issues, IssueDate)
	}
	if f.StationName == nil {
		issues = append(issues, IssueStation)
	}

	valid := len(issues) == 0
	return Verdict{
		IsValid:              valid,
		RequiresManualReview: !valid && hasAmount,
		Issues:               issues,
	}
}
