package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/opstrail/opstrail-core/internal/models"
	"github.com/opstrail/opstrail-core/internal/observability"
	"github.com/opstrail/opstrail-core/internal/repository"
)

const storageKeyPrefix = "opstrail:progress:"

// StorageKey returns the fixed storage key for a roadmap's ledger
// document. Clearing this key resets all progress; that is documented
// product behaviour, not an error state.
func StorageKey(roadmapID string) string {
	return storageKeyPrefix + roadmapID
}

var (
	// ErrInvalidSchedule indicates a schedule rejected at the mutation boundary.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrInvalidUserName indicates a learner name rejected at the mutation boundary.
	ErrInvalidUserName = errors.New("invalid user name")
	// ErrLedgerUnavailable indicates the stored ledger could not be read, so
	// write-through is suspended rather than overwriting a document that may
	// still be intact. A later clean Load lifts the suspension.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// ChangeKind labels a ledger mutation for subscribers and metrics.
type ChangeKind string

// Ledger mutation kinds.
const (
	ChangeSubtopicCompleted ChangeKind = "subtopic_completed"
	ChangeQuizScored        ChangeKind = "quiz_scored"
	ChangeUserNameSet       ChangeKind = "user_name_set"
	ChangeScheduleSet       ChangeKind = "schedule_set"
	ChangeScheduleRemoved   ChangeKind = "schedule_removed"
	ChangePhaseReset        ChangeKind = "phase_reset"
	ChangeReset             ChangeKind = "reset"
)

// ChangeEvent describes one committed ledger mutation. Events fire
// synchronously on the mutating goroutine; the model is single-writer.
type ChangeEvent struct {
	Kind       ChangeKind
	PhaseID    string
	TopicID    string
	SubtopicID string
	At         time.Time
}

// ProgressStore owns the ledger: it loads the persisted document, applies
// mutations in memory, persists write-through after every mutation, and
// notifies subscribers. One store per session, passed by reference to all
// consumers.
type ProgressStore interface {
	Load(ctx context.Context) *models.UserProgress
	Progress() *models.UserProgress
	MarkComplete(ctx context.Context, phaseID, topicID, subtopicID string, estimatedMinutes int) error
	RecordQuizScore(ctx context.Context, phaseID, topicID, subtopicID string, score int) error
	SetUserName(ctx context.Context, name string) error
	SetSchedule(ctx context.Context, roadmapID string, schedule models.Schedule) error
	RemoveSchedule(ctx context.Context, roadmapID string) error
	ResetAll(ctx context.Context) error
	ResetPhase(ctx context.Context, phaseID string) error
	Subscribe(fn func(ChangeEvent))
}

type progressStore struct {
	repo       repository.DocumentRepository
	key        string
	validate   *validator.Validate
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
	now        func() time.Time
	doc        *models.UserProgress
	loadFailed bool
	listeners  []func(ChangeEvent)
}

// NewProgressStore constructs the ledger owner for one roadmap.
func NewProgressStore(repo repository.DocumentRepository, roadmapID string, validate *validator.Validate, logger zerolog.Logger) ProgressStore {
	return &progressStore{
		repo:      repo,
		key:       StorageKey(roadmapID),
		validate:  validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "progress_store").Logger(),
		now:       time.Now,
	}
}

// Load reads the persisted document. A missing or malformed document
// yields a fresh empty ledger; neither is a user-visible error. A read
// failure also starts empty in memory but additionally suspends
// write-through, because the stored document may still be intact and must
// not be overwritten by the fallback. Calling Load again after the backend
// recovers lifts the suspension.
func (s *progressStore) Load(ctx context.Context) *models.UserProgress {
	now := s.now()
	s.loadFailed = false

	payload, err := s.repo.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			observability.LedgerLoads().WithLabelValues("empty").Inc()
		} else {
			s.logger.Warn().Err(err).Msg("ledger read failed, starting empty with write-through suspended")
			observability.LedgerLoads().WithLabelValues("error").Inc()
			s.loadFailed = true
		}
		s.doc = models.NewUserProgress(now)
		return s.doc
	}

	var doc models.UserProgress
	if err := json.Unmarshal(payload, &doc); err != nil {
		s.logger.Warn().Err(err).Msg("ledger document malformed, starting empty")
		observability.LedgerLoads().WithLabelValues("malformed").Inc()
		s.doc = models.NewUserProgress(now)
		return s.doc
	}

	doc.Normalize()
	if doc.StartedAt.IsZero() {
		doc.StartedAt = now
	}

	observability.LedgerLoads().WithLabelValues("ok").Inc()
	s.doc = &doc
	return s.doc
}

// Progress returns the in-memory ledger, loading it on first use. The
// returned document is owned by the store; consumers read it between
// change notifications and never mutate it directly.
func (s *progressStore) Progress() *models.UserProgress {
	if s.doc == nil {
		return s.Load(context.Background())
	}
	return s.doc
}

func (s *progressStore) MarkComplete(ctx context.Context, phaseID, topicID, subtopicID string, estimatedMinutes int) error {
	doc := s.Progress()
	now := s.now()

	entry := doc.EnsureSubtopic(phaseID, topicID, subtopicID)
	entry.LastAccessedAt = now
	if estimatedMinutes > 0 {
		entry.EstimatedMinutes = estimatedMinutes
	}

	// Completion is monotonic; time is credited once, on the first
	// transition only.
	if !entry.Completed {
		entry.Completed = true
		completedAt := now
		entry.CompletedAt = &completedAt
		doc.TotalTimeSpent += entry.EstimatedMinutes
	}
	doc.LastAccessed = now

	observability.LedgerMutations().WithLabelValues(string(ChangeSubtopicCompleted)).Inc()
	err := s.save(ctx)
	s.notify(ChangeEvent{Kind: ChangeSubtopicCompleted, PhaseID: phaseID, TopicID: topicID, SubtopicID: subtopicID, At: now})
	return err
}

func (s *progressStore) RecordQuizScore(ctx context.Context, phaseID, topicID, subtopicID string, score int) error {
	doc := s.Progress()
	now := s.now()

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	entry := doc.EnsureSubtopic(phaseID, topicID, subtopicID)
	entry.LastAccessedAt = now
	if entry.BestQuizScore == nil || score > *entry.BestQuizScore {
		best := score
		entry.BestQuizScore = &best
	}
	doc.LastAccessed = now

	observability.LedgerMutations().WithLabelValues(string(ChangeQuizScored)).Inc()
	err := s.save(ctx)
	s.notify(ChangeEvent{Kind: ChangeQuizScored, PhaseID: phaseID, TopicID: topicID, SubtopicID: subtopicID, At: now})
	return err
}

func (s *progressStore) SetUserName(ctx context.Context, name string) error {
	doc := s.Progress()
	now := s.now()

	clean := strings.TrimSpace(s.sanitizer.Sanitize(name))
	if err := s.validate.Var(clean, "max=120"); err != nil {
		return fmt.Errorf("%w: name exceeds 120 characters", ErrInvalidUserName)
	}

	doc.UserName = clean
	doc.LastAccessed = now

	observability.LedgerMutations().WithLabelValues(string(ChangeUserNameSet)).Inc()
	err := s.save(ctx)
	s.notify(ChangeEvent{Kind: ChangeUserNameSet, At: now})
	return err
}

func (s *progressStore) SetSchedule(ctx context.Context, roadmapID string, schedule models.Schedule) error {
	doc := s.Progress()
	now := s.now()

	if err := s.validate.Struct(schedule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	entry := doc.EnsureRoadmap(roadmapID)
	stored := schedule
	entry.Schedule = &stored
	doc.LastAccessed = now

	observability.LedgerMutations().WithLabelValues(string(ChangeScheduleSet)).Inc()
	err := s.save(ctx)
	s.notify(ChangeEvent{Kind: ChangeScheduleSet, At: now})
	return err
}

func (s *progressStore) RemoveSchedule(ctx context.Context, roadmapID string) error {
	doc := s.Progress()
	now := s.now()

	if entry, ok := doc.Roadmaps[roadmapID]; ok {
		entry.Schedule = nil
	}
	doc.LastAccessed = now

	observability.LedgerMutations().WithLabelValues(string(ChangeScheduleRemoved)).Inc()
	err := s.save(ctx)
	s.notify(ChangeEvent{Kind: ChangeScheduleRemoved, At: now})
	return err
}

// ResetAll destroys the ledger in storage and in memory.
func (s *progressStore) ResetAll(ctx context.Context) error {
	now := s.now()

	if err := s.repo.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("delete ledger: %w", err)
	}
	s.doc = models.NewUserProgress(now)
	// The stored document is gone by explicit request; nothing is left to
	// protect from write-through.
	s.loadFailed = false

	observability.LedgerMutations().WithLabelValues(string(ChangeReset)).Inc()
	s.notify(ChangeEvent{Kind: ChangeReset, At: now})
	return nil
}

// ResetPhase removes one phase subtree from the ledger.
func (s *progressStore) ResetPhase(ctx context.Context, phaseID string) error {
	doc := s.Progress()
	now := s.now()

	delete(doc.Phases, phaseID)
	doc.LastAccessed = now

	observability.LedgerMutations().WithLabelValues(string(ChangePhaseReset)).Inc()
	err := s.save(ctx)
	s.notify(ChangeEvent{Kind: ChangePhaseReset, PhaseID: phaseID, At: now})
	return err
}

// Subscribe registers a synchronous change listener. Listeners run on the
// mutating goroutine after the write-through attempt.
func (s *progressStore) Subscribe(fn func(ChangeEvent)) {
	s.listeners = append(s.listeners, fn)
}

// save persists the full document write-through. On failure the in-memory
// state is retained, not rolled back; the caller reconciles on next load.
// While the last load ended in a read failure, saves are refused: the
// stored document may still be intact and overwriting it with the empty
// fallback would destroy it.
func (s *progressStore) save(ctx context.Context) error {
	if s.loadFailed {
		observability.LedgerSaves().WithLabelValues("suspended").Inc()
		return fmt.Errorf("persist ledger: %w", ErrLedgerUnavailable)
	}

	payload, err := json.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	if err := s.repo.Put(ctx, s.key, payload); err != nil {
		observability.LedgerSaves().WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Msg("ledger save failed, in-memory state retained")
		return fmt.Errorf("persist ledger: %w", err)
	}

	observability.LedgerSaves().WithLabelValues("ok").Inc()
	return nil
}

func (s *progressStore) notify(event ChangeEvent) {
	for _, fn := range s.listeners {
		fn(event)
	}
}
