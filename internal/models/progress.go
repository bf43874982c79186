package models

import "time"

// SubtopicProgress records one learner interaction with a subtopic. An
// entry exists only for subtopics the learner has touched; absence means
// not started.
type SubtopicProgress struct {
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	LastAccessedAt   time.Time  `json:"lastAccessedAt"`
	EstimatedMinutes int        `json:"estimatedMinutes"`
	BestQuizScore    *int       `json:"bestQuizScore,omitempty"`
}

// TopicProgress holds the sparse subtopic map for one topic.
type TopicProgress struct {
	Subtopics map[string]*SubtopicProgress `json:"subtopics"`
}

// PhaseProgress holds the sparse topic map for one phase.
type PhaseProgress struct {
	Topics map[string]*TopicProgress `json:"topics"`
}

// Schedule is the learner's pacing choice for one roadmap.
type Schedule struct {
	StartDate        string `json:"startDate" validate:"required,datetime=2006-01-02"`
	StudyDaysPerWeek int    `json:"studyDaysPerWeek" validate:"required,min=1,max=7"`
}

// RoadmapProgress carries per-roadmap settings, currently the schedule.
type RoadmapProgress struct {
	Schedule *Schedule `json:"schedule,omitempty"`
}

// UserProgress is the complete persisted ledger: one JSON document per
// roadmap storage key. It is the only durable state in the system.
type UserProgress struct {
	StartedAt      time.Time                   `json:"startedAt"`
	LastAccessed   time.Time                   `json:"lastAccessed"`
	TotalTimeSpent int                         `json:"totalTimeSpent"`
	UserName       string                      `json:"userName,omitempty"`
	Phases         map[string]*PhaseProgress   `json:"phases"`
	Roadmaps       map[string]*RoadmapProgress `json:"roadmaps"`
}

// NewUserProgress returns an empty, valid ledger stamped at now.
func NewUserProgress(now time.Time) *UserProgress {
	return &UserProgress{
		StartedAt:    now,
		LastAccessed: now,
		Phases:       map[string]*PhaseProgress{},
		Roadmaps:     map[string]*RoadmapProgress{},
	}
}

// Normalize repairs nil maps after deserialization so callers can index
// without nil checks.
func (u *UserProgress) Normalize() {
	if u.Phases == nil {
		u.Phases = map[string]*PhaseProgress{}
	}
	if u.Roadmaps == nil {
		u.Roadmaps = map[string]*RoadmapProgress{}
	}
	for _, phase := range u.Phases {
		if phase.Topics == nil {
			phase.Topics = map[string]*TopicProgress{}
		}
		for _, topic := range phase.Topics {
			if topic.Subtopics == nil {
				topic.Subtopics = map[string]*SubtopicProgress{}
			}
		}
	}
}

// Subtopic looks up a ledger entry without creating it.
func (u *UserProgress) Subtopic(phaseID, topicID, subtopicID string) (*SubtopicProgress, bool) {
	phase, ok := u.Phases[phaseID]
	if !ok {
		return nil, false
	}
	topic, ok := phase.Topics[topicID]
	if !ok {
		return nil, false
	}
	entry, ok := topic.Subtopics[subtopicID]
	return entry, ok
}

// EnsureSubtopic returns the ledger entry for the given path, creating the
// intermediate maps on first interaction.
func (u *UserProgress) EnsureSubtopic(phaseID, topicID, subtopicID string) *SubtopicProgress {
	phase, ok := u.Phases[phaseID]
	if !ok {
		phase = &PhaseProgress{Topics: map[string]*TopicProgress{}}
		u.Phases[phaseID] = phase
	}
	topic, ok := phase.Topics[topicID]
	if !ok {
		topic = &TopicProgress{Subtopics: map[string]*SubtopicProgress{}}
		phase.Topics[topicID] = topic
	}
	entry, ok := topic.Subtopics[subtopicID]
	if !ok {
		entry = &SubtopicProgress{}
		topic.Subtopics[subtopicID] = entry
	}
	return entry
}

// EnsureRoadmap returns the per-roadmap settings bucket, creating it when
// missing.
func (u *UserProgress) EnsureRoadmap(roadmapID string) *RoadmapProgress {
	entry, ok := u.Roadmaps[roadmapID]
	if !ok {
		entry = &RoadmapProgress{}
		u.Roadmaps[roadmapID] = entry
	}
	return entry
}
