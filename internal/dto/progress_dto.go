package dto

// ProgressSummary is the roadmap-level rollup shown at the top of the
// dashboard.
type ProgressSummary struct {
	TotalSubtopics        int      `json:"total_subtopics"`
	CompletedSubtopics    int      `json:"completed_subtopics"`
	CompletionPercentage  int      `json:"completion_percentage"`
	TotalTimeSpentMinutes int      `json:"total_time_spent_minutes"`
	AverageQuizScore      *float64 `json:"average_quiz_score,omitempty"`
	CourseComplete        bool     `json:"course_complete"`
}

// PhaseSummary is one phase row of the dashboard.
type PhaseSummary struct {
	PhaseID              string `json:"phase_id"`
	Slug                 string `json:"slug"`
	Title                string `json:"title"`
	Sequence             int    `json:"sequence"`
	TotalSubtopics       int    `json:"total_subtopics"`
	CompletedSubtopics   int    `json:"completed_subtopics"`
	CompletionPercentage int    `json:"completion_percentage"`
	Complete             bool   `json:"complete"`
	CertificateEligible  bool   `json:"certificate_eligible"`
	ProjectedCompletion  string `json:"projected_completion,omitempty"`
}

// ResumePointer identifies the lesson the learner should continue with.
type ResumePointer struct {
	PhaseID    string `json:"phase_id"`
	TopicID    string `json:"topic_id"`
	SubtopicID string `json:"subtopic_id"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
}

// ScheduleInfo echoes the active schedule with its projection.
type ScheduleInfo struct {
	StartDate           string `json:"start_date"`
	StudyDaysPerWeek    int    `json:"study_days_per_week"`
	ProjectedCompletion string `json:"projected_completion,omitempty"`
	AlreadyComplete     bool   `json:"already_complete"`
}

// ProgressOverview is the aggregated read model the presentation layer
// renders from.
type ProgressOverview struct {
	UserName string          `json:"user_name,omitempty"`
	Summary  ProgressSummary `json:"summary"`
	Phases   []PhaseSummary  `json:"phases"`
	Resume   *ResumePointer  `json:"resume,omitempty"`
	Schedule *ScheduleInfo   `json:"schedule,omitempty"`
	CacheHit bool            `json:"-"`
}
