package models

import "time"

// AdminDashboard summarises platform-wide matching state.
type AdminDashboard struct {
	Students            StudentRollup             `json:"students"`
	Supervisors         SupervisorRollup          `json:"supervisors"`
	Applications        map[ApplicationStatus]int `json:"applications"`
	PendingPartnerships int                       `json:"pendingPartnerships"`
	PendingCoSupervisor int                       `json:"pendingCoSupervision"`
	GeneratedAt         time.Time                 `json:"generatedAt"`
}

// StudentRollup counts students by status.
type StudentRollup struct {
	Total         int                       `json:"total"`
	ByMatch       map[MatchStatus]int       `json:"byMatchStatus"`
	ByPartnership map[PartnershipStatus]int `json:"byPartnershipStatus"`
}

// SupervisorRollup summarises supervisor capacity.
type SupervisorRollup struct {
	Total          int                        `json:"total"`
	Active         int                        `json:"active"`
	TotalCapacity  int                        `json:"totalCapacity"`
	UsedCapacity   int                        `json:"usedCapacity"`
	ByAvailability map[AvailabilityStatus]int `json:"byAvailability"`
}

// SupervisorDashboard is the supervisor's own view.
type SupervisorDashboard struct {
	Supervisor          Supervisor                     `json:"supervisor"`
	Applications        map[ApplicationStatus]int      `json:"applications"`
	PendingApplications []Application                  `json:"pendingApplications"`
	Projects            []Project                      `json:"projects"`
	IncomingRequests    []SupervisorPartnershipRequest `json:"incomingRequests"`
	OutgoingRequests    []SupervisorPartnershipRequest `json:"outgoingRequests"`
}

// StudentDashboard is the student's own view.
type StudentDashboard struct {
	Student          Student              `json:"student"`
	Partner          *Student             `json:"partner,omitempty"`
	Applications     []Application        `json:"applications"`
	IncomingRequests []PartnershipRequest `json:"incomingRequests"`
	OutgoingRequests []PartnershipRequest `json:"outgoingRequests"`
}
