package workflow

// DefaultRole is the assignee role used when none is configured
const DefaultRole = "officer"

// Default builds the catalog the seed migration installs, without persisted ids.
func Default(assigneeRole string) (*Catalog, error) {
	b := NewBuilder(assigneeRole).
		AddStatus(StatusInfo{Code: StatusDraft, Name: "Draft", NameAr: "مسودة", Initial: true, Editable: true}).
		AddStatus(StatusInfo{Code: StatusInReview, Name: "In Review", NameAr: "قيد المراجعة"}).
		AddStatus(StatusInfo{Code: StatusAccepted, Name: "Accepted", NameAr: "مقبول", Terminal: true}).
		AddStatus(StatusInfo{Code: StatusRejected, Name: "Rejected", NameAr: "مرفوض", Editable: true})

	b.Configure(StatusDraft).
		Permit(ActionSendToReview, StatusInReview, InitiatorCreator, Reassigning())
	b.Configure(StatusInReview).
		Permit(ActionAccept, StatusAccepted, InitiatorAssignee).
		Permit(ActionReject, StatusRejected, InitiatorAssignee)
	b.Configure(StatusRejected).
		Permit(ActionSendToReview, StatusInReview, InitiatorCreator, Reassigning())

	return b.Build()
}
