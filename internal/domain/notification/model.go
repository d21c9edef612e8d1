package notification

import (
	"errors"
	"time"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrRecipientRequired    = errors.New("recipient id is required")
	ErrUnknownKind          = errors.New("unknown notification kind")
)

// Kind identifies the clinical or system event a notification reports.
type Kind string

const (
	KindNewCase              Kind = "new-case"
	KindPatientArrived       Kind = "patient-arrived"
	KindMedicationRequest    Kind = "medication-request"
	KindMedicationAuthorized Kind = "medication-authorized"
	KindMedicationRejected   Kind = "medication-rejected"
	KindNewVitals            Kind = "new-vitals"
	KindCriticalVitals       Kind = "critical-vitals"
	KindDiagnosis            Kind = "diagnosis"
	KindChatMessage          Kind = "chat-message"
	KindExamRequested        Kind = "exam-requested"
	KindExamCompleted        Kind = "exam-completed"
	KindTriageCompleted      Kind = "triage-completed"
	KindBedAssigned          Kind = "bed-assigned"
	KindPatientDischarged    Kind = "patient-discharged"
	KindHospitalized         Kind = "hospitalized"
	KindICUAdmission         Kind = "icu-admission"
	KindReferral             Kind = "referral"
	KindDeath                Kind = "death"
	KindWaitTime             Kind = "wait-time"
	KindSystem               Kind = "system"
)

// Priority orders notifications by clinical urgency.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// defaultPriority maps each kind to the urgency it carries unless the
// producer overrides it.
var defaultPriority = map[Kind]Priority{
	KindCriticalVitals:       PriorityUrgent,
	KindDeath:                PriorityUrgent,
	KindICUAdmission:         PriorityUrgent,
	KindMedicationRequest:    PriorityHigh,
	KindPatientArrived:       PriorityHigh,
	KindNewCase:              PriorityHigh,
	KindExamCompleted:        PriorityHigh,
	KindDiagnosis:            PriorityHigh,
	KindMedicationAuthorized: PriorityMedium,
	KindMedicationRejected:   PriorityMedium,
	KindNewVitals:            PriorityMedium,
	KindChatMessage:          PriorityMedium,
	KindExamRequested:        PriorityMedium,
	KindTriageCompleted:      PriorityMedium,
	KindBedAssigned:          PriorityMedium,
	KindHospitalized:         PriorityMedium,
	KindReferral:             PriorityMedium,
	KindPatientDischarged:    PriorityLow,
	KindWaitTime:             PriorityLow,
	KindSystem:               PriorityLow,
}

// PriorityFor returns the default priority for a kind. Unknown kinds get
// PriorityLow so a producer bug never surfaces as a false alarm.
func PriorityFor(kind Kind) Priority {
	if p, ok := defaultPriority[kind]; ok {
		return p
	}
	return PriorityLow
}

// ValidKind reports whether kind is one of the defined event kinds.
func ValidKind(kind Kind) bool {
	_, ok := defaultPriority[kind]
	return ok
}

// Notification is a single per-recipient feed entry. The same event produces
// one row per recipient, so read state is independent across users.
type Notification struct {
	ID          int64      `json:"id"`
	RecipientID int64      `json:"recipient_id"`
	CaseID      int64      `json:"case_id,omitempty"`
	Kind        Kind       `json:"kind"`
	Priority    Priority   `json:"priority"`
	Title       string     `json:"title"`
	Body        string     `json:"body,omitempty"`
	Read        bool       `json:"read"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

// UnreadCount buckets a recipient's unread notifications by priority.
type UnreadCount struct {
	Total  int `json:"total"`
	Urgent int `json:"urgent"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Add counts one unread notification into the matching bucket.
func (c *UnreadCount) Add(p Priority) {
	c.Total++
	switch p {
	case PriorityUrgent:
		c.Urgent++
	case PriorityHigh:
		c.High++
	case PriorityMedium:
		c.Medium++
	default:
		c.Low++
	}
}
