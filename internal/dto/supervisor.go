package dto

// UpdateCapacityRequest is an admin edit of a supervisor's maximum capacity.
type UpdateCapacityRequest struct {
	MaxCapacity *int   `json:"maxCapacity" validate:"required,min=0,max=50"`
	Reason      string `json:"reason" validate:"required,min=3,max=500"`
}

// CapacityUpdateResult describes the applied capacity change.
type CapacityUpdateResult struct {
	SupervisorID       string `json:"supervisorId"`
	PreviousMax        int    `json:"previousMaxCapacity"`
	MaxCapacity        int    `json:"maxCapacity"`
	CurrentCapacity    int    `json:"currentCapacity"`
	AvailabilityStatus string `json:"availabilityStatus"`
}

// ReconcileResult summarises an availability repair run.
type ReconcileResult struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
}
