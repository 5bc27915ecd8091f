package workflow

// Status is the stable machine code of an incident status.
type Status string

// Well-known status codes seeded by the catalog migration. The engine never
// branches on these; they exist for seeding, tests and logging.
const (
	StatusDraft    Status = "draft"
	StatusInReview Status = "in_review"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// StatusInfo is the catalog's view of a status row.
type StatusInfo struct {
	ID       string
	Code     Status
	Name     string
	NameAr   string
	Initial  bool
	Terminal bool
	Editable bool
}
