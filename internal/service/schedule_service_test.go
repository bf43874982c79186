package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opstrail/opstrail-core/internal/models"
)

func TestParseStartDatePinsMidnightLocal(t *testing.T) {
	date, err := ParseStartDate("2026-01-27")
	require.NoError(t, err)

	require.Equal(t, 2026, date.Year())
	require.Equal(t, time.January, date.Month())
	require.Equal(t, 27, date.Day())
	require.Zero(t, date.Hour())
	require.Zero(t, date.Minute())
	require.Equal(t, time.Local, date.Location())
}

func TestParseStartDateRejectsGarbage(t *testing.T) {
	for _, value := range []string{"", "27/01/2026", "2026-13-40", "tomorrow"} {
		_, err := ParseStartDate(value)
		require.ErrorIs(t, err, ErrInvalidSchedule, "value %q", value)
	}
}

func TestProjectedCompletionSeventyNineTopicsSixDays(t *testing.T) {
	// 79 topics at 6 study days per week: ceil(79/6*7) = 93 days.
	start := time.Date(2026, time.January, 27, 0, 0, 0, 0, time.Local)

	date, ok, err := ProjectedCompletion(start, 6, 79)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, start.AddDate(0, 0, 93), date)
	require.Equal(t, time.Date(2026, time.April, 30, 0, 0, 0, 0, time.Local), date)
}

func TestProjectedCompletionZeroTopicsEmitsNoDate(t *testing.T) {
	start := time.Date(2026, time.January, 27, 0, 0, 0, 0, time.Local)

	_, ok, err := ProjectedCompletion(start, 3, 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProjectedCompletionRejectsStudyDaysOutOfRange(t *testing.T) {
	start := time.Date(2026, time.January, 27, 0, 0, 0, 0, time.Local)

	for _, days := range []int{0, -1, 8} {
		_, _, err := ProjectedCompletion(start, days, 10)
		require.ErrorIs(t, err, ErrInvalidStudyDays)
	}
}

func TestProjectedCompletionExactWeeks(t *testing.T) {
	start := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.Local)

	// 14 topics at 7 days/week is exactly 2 weeks, no rounding up.
	date, ok, err := ProjectedCompletion(start, 7, 14)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, start.AddDate(0, 0, 14), date)
}

func TestProjectedPhaseCompletionIsCumulativeAndMonotonic(t *testing.T) {
	projector := NewScheduleProjector(newTestCatalog(t))

	for days := 1; days <= 7; days++ {
		schedule := models.Schedule{StartDate: "2026-01-27", StudyDaysPerWeek: days}

		projections, err := projector.ProjectedPhaseCompletion(schedule)
		require.NoError(t, err)
		require.Len(t, projections, 2)

		for i := 1; i < len(projections); i++ {
			require.False(t, projections[i].Date.Before(projections[i-1].Date),
				"phase dates must be non-decreasing at %d study days", days)
		}

		roadmapDate, ok, err := projector.ProjectedRoadmapCompletion(schedule)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, roadmapDate, projections[len(projections)-1].Date,
			"final phase date must equal the roadmap projection")
	}
}

func TestProjectedPhaseCompletionCumulativeCounts(t *testing.T) {
	projector := NewScheduleProjector(newTestCatalog(t))
	schedule := models.Schedule{StartDate: "2026-01-27", StudyDaysPerWeek: 7}

	projections, err := projector.ProjectedPhaseCompletion(schedule)
	require.NoError(t, err)

	// Fixture: phase-1 has two topics, phase-2 one more.
	require.Equal(t, 2, projections[0].TopicsThrough)
	require.Equal(t, 3, projections[1].TopicsThrough)

	start, err := ParseStartDate(schedule.StartDate)
	require.NoError(t, err)
	require.Equal(t, start.AddDate(0, 0, 2), projections[0].Date)
	require.Equal(t, start.AddDate(0, 0, 3), projections[1].Date)
}
