package models

import "time"

// Certificate scopes.
const (
	CertificateScopePhase  = "phase"
	CertificateScopeCourse = "course"
)

// Certificate is the data record handed to the rendering boundary. IDs are
// best-effort unique (timestamp plus random suffix); no downstream
// verification system exists.
type Certificate struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Scope            string    `json:"scope"`
	PhaseID          string    `json:"phase_id,omitempty"`
	RoadmapID        string    `json:"roadmap_id"`
	CompletionDate   time.Time `json:"completion_date"`
	LessonsCompleted int       `json:"lessons_completed"`
	HoursSpent       float64   `json:"hours_spent"`
	AverageQuizScore *float64  `json:"average_quiz_score,omitempty"`
}
