package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/opstrail/opstrail-core/internal/catalog"
	"github.com/opstrail/opstrail-core/internal/models"
)

// ErrInvalidStudyDays indicates a studyDaysPerWeek outside [1,7] reached
// the projector. Callers clamp at the mutation boundary; this is a caller
// bug, not input to degrade on.
var ErrInvalidStudyDays = errors.New("study days per week must be between 1 and 7")

const startDateLayout = "2006-01-02"

// ParseStartDate parses an ISO calendar date pinned to midnight local
// time. Pinning avoids the day-shift bugs implicit UTC parsing causes in
// timezones behind UTC.
func ParseStartDate(value string) (time.Time, error) {
	date, err := time.ParseInLocation(startDateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return date, nil
}

// FormatDate renders a projected date back to the ISO calendar form used
// in schedules and DTOs.
func FormatDate(date time.Time) string {
	return date.Format(startDateLayout)
}

// ProjectedCompletion projects the finish date for topicCount topics at
// the given pace: ceil(topicCount/studyDaysPerWeek weeks) in days, added
// to the start date. The bool is false when there is nothing left to
// schedule ("already complete").
func ProjectedCompletion(start time.Time, studyDaysPerWeek, topicCount int) (time.Time, bool, error) {
	if studyDaysPerWeek < 1 || studyDaysPerWeek > 7 {
		return time.Time{}, false, ErrInvalidStudyDays
	}
	if topicCount <= 0 {
		return time.Time{}, false, nil
	}

	// Integer ceil of 7*topics/days keeps the arithmetic exact.
	days := (7*topicCount + studyDaysPerWeek - 1) / studyDaysPerWeek
	return start.AddDate(0, 0, days), true, nil
}

// PhaseProjection is the projected completion date for one phase.
type PhaseProjection struct {
	PhaseID       string
	Date          time.Time
	TopicsThrough int
}

// ScheduleProjector maps a schedule onto the catalog's topic counts.
// State-free; one schedule per roadmap.
type ScheduleProjector struct {
	catalog *catalog.Catalog
}

// NewScheduleProjector constructs the projector.
func NewScheduleProjector(c *catalog.Catalog) *ScheduleProjector {
	return &ScheduleProjector{catalog: c}
}

// ProjectedRoadmapCompletion projects the overall finish date for the
// schedule. The bool is false when the roadmap has no topics.
func (p *ScheduleProjector) ProjectedRoadmapCompletion(schedule models.Schedule) (time.Time, bool, error) {
	start, err := ParseStartDate(schedule.StartDate)
	if err != nil {
		return time.Time{}, false, err
	}
	return ProjectedCompletion(start, schedule.StudyDaysPerWeek, p.catalog.TopicCount())
}

// ProjectedPhaseCompletion projects one date per phase using cumulative
// topic counts in catalog order, so dates are non-decreasing and the last
// phase matches the roadmap projection. Phases without topics reuse the
// running cumulative date.
func (p *ScheduleProjector) ProjectedPhaseCompletion(schedule models.Schedule) ([]PhaseProjection, error) {
	start, err := ParseStartDate(schedule.StartDate)
	if err != nil {
		return nil, err
	}

	phases := p.catalog.Phases()
	projections := make([]PhaseProjection, 0, len(phases))
	cumulative := 0

	for _, phase := range phases {
		cumulative += len(phase.Topics)
		date, ok, err := ProjectedCompletion(start, schedule.StudyDaysPerWeek, cumulative)
		if err != nil {
			return nil, err
		}
		if !ok {
			date = start
		}
		projections = append(projections, PhaseProjection{
			PhaseID:       phase.ID,
			Date:          date,
			TopicsThrough: cumulative,
		})
	}

	return projections, nil
}
