package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/opstrail/opstrail-core/internal/catalog"
	"github.com/opstrail/opstrail-core/internal/dto"
	"github.com/opstrail/opstrail-core/internal/models"
	"github.com/opstrail/opstrail-core/internal/observability"
)

// OverviewService produces the aggregated dashboard read model: summary,
// per-phase rollups with projected dates, and the resume pointer.
type OverviewService interface {
	GetOverview(ctx context.Context) (dto.ProgressOverview, error)
}

type overviewService struct {
	store     ProgressStore
	catalog   *catalog.Catalog
	metrics   *MetricsEngine
	projector *ScheduleProjector
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

// NewOverviewService builds the aggregator and subscribes to the store so
// every ledger change invalidates the cached overview.
func NewOverviewService(store ProgressStore, c *catalog.Catalog, metrics *MetricsEngine, projector *ScheduleProjector, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) OverviewService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s := &overviewService{
		store:     store,
		catalog:   c,
		metrics:   metrics,
		projector: projector,
		cache:     cache,
		cacheTTL:  ttl,
		logger:    logger.With().Str("component", "overview_service").Logger(),
	}

	store.Subscribe(func(ChangeEvent) {
		s.invalidate()
	})

	return s
}

func (s *overviewService) cacheKey() string {
	return "opstrail:overview:" + s.catalog.Roadmap().ID
}

func (s *overviewService) GetOverview(ctx context.Context) (dto.ProgressOverview, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, s.cacheKey()).Result(); err == nil {
			var overview dto.ProgressOverview
			if unmarshalErr := json.Unmarshal([]byte(cached), &overview); unmarshalErr == nil {
				overview.CacheHit = true
				observability.OverviewRequests().WithLabelValues("hit").Inc()
				return overview, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read overview cache")
		}
	}

	start := time.Now()
	overview := s.build()
	observability.OverviewBuildLatency().Observe(time.Since(start).Seconds())
	observability.OverviewRequests().WithLabelValues("miss").Inc()

	if s.cache != nil {
		if payload, err := json.Marshal(overview); err == nil {
			if err := s.cache.Set(ctx, s.cacheKey(), payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store overview cache")
			}
		}
	}

	return overview, nil
}

func (s *overviewService) build() dto.ProgressOverview {
	doc := s.store.Progress()

	avgScore, hasScore := s.metrics.AverageQuizScore(doc, Scope{})
	summary := dto.ProgressSummary{
		TotalSubtopics:        s.metrics.SubtopicCount(Scope{}),
		CompletedSubtopics:    s.metrics.CompletedCount(doc, Scope{}),
		CompletionPercentage:  s.metrics.CompletionPercentage(doc, Scope{}),
		TotalTimeSpentMinutes: doc.TotalTimeSpent,
		CourseComplete:        s.metrics.CourseComplete(doc),
	}
	if hasScore {
		summary.AverageQuizScore = &avgScore
	}

	overview := dto.ProgressOverview{
		UserName: doc.UserName,
		Summary:  summary,
	}

	schedule := s.activeSchedule(doc)
	var phaseDates map[string]string
	if schedule != nil {
		info := dto.ScheduleInfo{
			StartDate:        schedule.StartDate,
			StudyDaysPerWeek: schedule.StudyDaysPerWeek,
		}
		if date, ok, err := s.projector.ProjectedRoadmapCompletion(*schedule); err != nil {
			s.logger.Warn().Err(err).Msg("stored schedule failed projection")
		} else if ok {
			info.ProjectedCompletion = FormatDate(date)
		} else {
			info.AlreadyComplete = true
		}
		overview.Schedule = &info

		if projections, err := s.projector.ProjectedPhaseCompletion(*schedule); err == nil {
			phaseDates = make(map[string]string, len(projections))
			for _, projection := range projections {
				phaseDates[projection.PhaseID] = FormatDate(projection.Date)
			}
		}
	}

	phases := s.catalog.Phases()
	overview.Phases = make([]dto.PhaseSummary, 0, len(phases))
	for _, phase := range phases {
		scope := Scope{PhaseID: phase.ID}
		row := dto.PhaseSummary{
			PhaseID:              phase.ID,
			Slug:                 phase.Slug,
			Title:                phase.Title,
			Sequence:             phase.Sequence,
			TotalSubtopics:       s.metrics.SubtopicCount(scope),
			CompletedSubtopics:   s.metrics.CompletedCount(doc, scope),
			CompletionPercentage: s.metrics.CompletionPercentage(doc, scope),
			Complete:             s.metrics.IsComplete(doc, scope),
			CertificateEligible:  s.metrics.CertificateEligible(doc, phase.ID),
			ProjectedCompletion:  phaseDates[phase.ID],
		}
		overview.Phases = append(overview.Phases, row)
	}

	if ref, ok := s.metrics.ResumePoint(doc); ok {
		overview.Resume = &dto.ResumePointer{
			PhaseID:    ref.PhaseID,
			TopicID:    ref.TopicID,
			SubtopicID: ref.SubtopicID,
			Slug:       ref.Slug,
			Title:      ref.Title,
		}
	}

	return overview
}

func (s *overviewService) activeSchedule(doc *models.UserProgress) *models.Schedule {
	entry, ok := doc.Roadmaps[s.catalog.Roadmap().ID]
	if !ok {
		return nil
	}
	return entry.Schedule
}

func (s *overviewService) invalidate() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(context.Background(), s.cacheKey()).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate overview cache")
	}
}
