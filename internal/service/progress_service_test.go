package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/opstrail/opstrail-core/internal/catalog"
	"github.com/opstrail/opstrail-core/internal/models"
	"github.com/opstrail/opstrail-core/internal/repository"
)

// newTestCatalog builds the shared fixture: phase-1 carries a five-lesson
// topic plus a cheat-sheet-only topic, phase-2 a two-lesson topic.
func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	roadmap := models.Roadmap{
		ID:    "devops-roadmap",
		Slug:  "devops-roadmap",
		Title: "DevOps Roadmap",
		Phases: []models.Phase{
			{
				ID: "phase-1", Slug: "foundations", Title: "Foundations", Sequence: 1,
				Topics: []models.Topic{
					{
						ID: "containers-101", Slug: "containers-101", Title: "Containers 101",
						Subtopics: []models.Subtopic{
							{ID: "s1", Slug: "s1", Title: "Lesson 1", EstimatedMinutes: 30},
							{ID: "s2", Slug: "s2", Title: "Lesson 2", EstimatedMinutes: 30},
							{ID: "s3", Slug: "s3", Title: "Lesson 3", EstimatedMinutes: 30},
							{ID: "s4", Slug: "s4", Title: "Lesson 4", EstimatedMinutes: 30},
							{ID: "s5", Slug: "s5", Title: "Lesson 5", EstimatedMinutes: 30},
						},
					},
					{
						ID: "cheats", Slug: "cheats", Title: "Cheat Sheets",
						Subtopics: []models.Subtopic{
							{ID: "cheat-1", Slug: "cheat-1", Title: "Commands Cheat Sheet", IsCheatSheet: true},
						},
					},
				},
			},
			{
				ID: "phase-2", Slug: "kubernetes", Title: "Kubernetes", Sequence: 2,
				Topics: []models.Topic{
					{
						ID: "k8s-core", Slug: "k8s-core", Title: "Kubernetes Core",
						Subtopics: []models.Subtopic{
							{ID: "k1", Slug: "k1", Title: "Pods", EstimatedMinutes: 60},
							{ID: "k2", Slug: "k2", Title: "Services", EstimatedMinutes: 45},
						},
					},
				},
			},
		},
	}

	c, err := catalog.New(roadmap)
	require.NoError(t, err)
	return c
}

func newTestRepo(t *testing.T) repository.DocumentRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ProgressDocument{}))
	return repository.NewDocumentRepository(db)
}

func newTestStore(t *testing.T, repo repository.DocumentRepository, roadmapID string) ProgressStore {
	t.Helper()
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewProgressStore(repo, roadmapID, validate, zerolog.Nop())
}

type failingRepo struct {
	repository.DocumentRepository
	putErr error
}

func (f failingRepo) Put(context.Context, string, []byte) error {
	return f.putErr
}

type flakyRepo struct {
	repository.DocumentRepository
	getErr error
}

func (f *flakyRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.DocumentRepository.Get(ctx, key)
}

func TestMarkCompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestRepo(t), "idempotent")

	require.NoError(t, store.MarkComplete(ctx, "phase-1", "containers-101", "s1", 30))
	require.NoError(t, store.MarkComplete(ctx, "phase-1", "containers-101", "s2", 30))

	doc := store.Progress()
	require.Equal(t, 60, doc.TotalTimeSpent)

	entry, ok := doc.Subtopic("phase-1", "containers-101", "s1")
	require.True(t, ok)
	require.True(t, entry.Completed)
	require.NotNil(t, entry.CompletedAt)
	firstCompletion := *entry.CompletedAt

	// Repeat completion refreshes metadata but never re-adds time.
	require.NoError(t, store.MarkComplete(ctx, "phase-1", "containers-101", "s1", 45))
	require.Equal(t, 60, doc.TotalTimeSpent)
	require.Equal(t, 45, entry.EstimatedMinutes)
	require.Equal(t, firstCompletion, *entry.CompletedAt)
}

func TestLoadReturnsEmptyDocumentOnMalformedJSON(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.Put(ctx, StorageKey("malformed"), []byte("{not json at all")))

	store := newTestStore(t, repo, "malformed")
	doc := store.Load(ctx)

	require.NotNil(t, doc)
	require.Zero(t, doc.TotalTimeSpent)
	require.NotNil(t, doc.Phases)
	require.NotNil(t, doc.Roadmaps)
	require.False(t, doc.StartedAt.IsZero())
}

func TestLoadRoundTripsPersistedDocument(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	store := newTestStore(t, repo, "roundtrip")
	require.NoError(t, store.MarkComplete(ctx, "phase-1", "containers-101", "s1", 30))
	require.NoError(t, store.RecordQuizScore(ctx, "phase-1", "containers-101", "s2", 85))
	require.NoError(t, store.SetUserName(ctx, "Ada Lovelace"))
	require.NoError(t, store.SetSchedule(ctx, "devops-roadmap", models.Schedule{StartDate: "2026-01-27", StudyDaysPerWeek: 6}))

	// Compare serialized forms: the monotonic clock reading on fresh
	// timestamps never survives marshalling.
	reloaded := newTestStore(t, repo, "roundtrip").Load(ctx)
	original, err := json.Marshal(store.Progress())
	require.NoError(t, err)
	restored, err := json.Marshal(reloaded)
	require.NoError(t, err)
	require.JSONEq(t, string(original), string(restored))
}

func TestRecordQuizScoreKeepsBestScore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestRepo(t), "quiz")

	require.NoError(t, store.RecordQuizScore(ctx, "phase-1", "containers-101", "s1", 70))
	require.NoError(t, store.RecordQuizScore(ctx, "phase-1", "containers-101", "s1", 50))

	entry, ok := store.Progress().Subtopic("phase-1", "containers-101", "s1")
	require.True(t, ok)
	require.NotNil(t, entry.BestQuizScore)
	require.Equal(t, 70, *entry.BestQuizScore)
	require.False(t, entry.Completed, "a quiz attempt alone does not complete the lesson")
}

func TestRecordQuizScoreClampsToRange(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestRepo(t), "clamp")

	require.NoError(t, store.RecordQuizScore(ctx, "phase-1", "containers-101", "s1", 150))
	entry, _ := store.Progress().Subtopic("phase-1", "containers-101", "s1")
	require.Equal(t, 100, *entry.BestQuizScore)

	require.NoError(t, store.RecordQuizScore(ctx, "phase-1", "containers-101", "s2", -5))
	entry, _ = store.Progress().Subtopic("phase-1", "containers-101", "s2")
	require.Equal(t, 0, *entry.BestQuizScore)
}

func TestSetUserNameStripsMarkup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestRepo(t), "name")

	require.NoError(t, store.SetUserName(ctx, "  <b>Ada</b> Lovelace  "))
	require.Equal(t, "Ada Lovelace", store.Progress().UserName)
}

func TestSetScheduleRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestRepo(t), "schedule")

	cases := []models.Schedule{
		{StartDate: "2026-01-27", StudyDaysPerWeek: 0},
		{StartDate: "2026-01-27", StudyDaysPerWeek: 8},
		{StartDate: "2026-13-40", StudyDaysPerWeek: 3},
		{StartDate: "", StudyDaysPerWeek: 3},
	}

	for _, schedule := range cases {
		err := store.SetSchedule(ctx, "devops-roadmap", schedule)
		require.ErrorIs(t, err, ErrInvalidSchedule)
	}

	require.Empty(t, store.Progress().Roadmaps, "rejected schedules must not persist")

	valid := models.Schedule{StartDate: "2026-01-27", StudyDaysPerWeek: 6}
	require.NoError(t, store.SetSchedule(ctx, "devops-roadmap", valid))
	require.Equal(t, &valid, store.Progress().Roadmaps["devops-roadmap"].Schedule)
}

func TestRemoveScheduleClearsOnlySchedule(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestRepo(t), "remove-schedule")

	require.NoError(t, store.SetSchedule(ctx, "devops-roadmap", models.Schedule{StartDate: "2026-01-27", StudyDaysPerWeek: 3}))
	require.NoError(t, store.RemoveSchedule(ctx, "devops-roadmap"))

	entry := store.Progress().Roadmaps["devops-roadmap"]
	require.NotNil(t, entry)
	require.Nil(t, entry.Schedule)
}

func TestResetAllDestroysLedgerAndStorage(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	store := newTestStore(t, repo, "reset-all")

	require.NoError(t, store.MarkComplete(ctx, "phase-1", "containers-101", "s1", 30))
	require.NoError(t, store.ResetAll(ctx))

	require.Zero(t, store.Progress().TotalTimeSpent)
	require.Empty(t, store.Progress().Phases)

	_, err := repo.Get(ctx, StorageKey("reset-all"))
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResetPhaseRemovesOnlyThatSubtree(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestRepo(t), "reset-phase")

	require.NoError(t, store.MarkComplete(ctx, "phase-1", "containers-101", "s1", 30))
	require.NoError(t, store.MarkComplete(ctx, "phase-2", "k8s-core", "k1", 60))
	require.NoError(t, store.ResetPhase(ctx, "phase-1"))

	doc := store.Progress()
	_, ok := doc.Subtopic("phase-1", "containers-101", "s1")
	require.False(t, ok)
	_, ok = doc.Subtopic("phase-2", "k8s-core", "k1")
	require.True(t, ok)
}

func TestSaveFailureSurfacesErrorAndKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	repo := failingRepo{DocumentRepository: newTestRepo(t), putErr: errors.New("quota exceeded")}
	store := newTestStore(t, repo, "save-failure")

	err := store.MarkComplete(ctx, "phase-1", "containers-101", "s1", 30)
	require.Error(t, err)

	// In-memory state is not rolled back; the caller reconciles on next load.
	entry, ok := store.Progress().Subtopic("phase-1", "containers-101", "s1")
	require.True(t, ok)
	require.True(t, entry.Completed)
}

func TestReadFailureSuspendsWriteThroughUntilCleanLoad(t *testing.T) {
	ctx := context.Background()
	inner := newTestRepo(t)
	require.NoError(t, inner.Put(ctx, StorageKey("read-failure"), []byte(`{"totalTimeSpent":90,"phases":{},"roadmaps":{}}`)))

	repo := &flakyRepo{DocumentRepository: inner, getErr: errors.New("connection refused")}
	store := newTestStore(t, repo, "read-failure")

	err := store.MarkComplete(ctx, "phase-1", "containers-101", "s1", 30)
	require.ErrorIs(t, err, ErrLedgerUnavailable)

	// The stored document is still intact: the empty fallback ledger must
	// never be written over a document that only failed to read.
	stored, err := inner.Get(ctx, StorageKey("read-failure"))
	require.NoError(t, err)
	var persisted models.UserProgress
	require.NoError(t, json.Unmarshal(stored, &persisted))
	require.Equal(t, 90, persisted.TotalTimeSpent)

	// Once the backend recovers, a clean reload resumes write-through.
	repo.getErr = nil
	require.Equal(t, 90, store.Load(ctx).TotalTimeSpent)
	require.NoError(t, store.MarkComplete(ctx, "phase-1", "containers-101", "s1", 30))
	require.Equal(t, 120, store.Progress().TotalTimeSpent)
}

func TestSubscribersReceiveSynchronousChangeEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestRepo(t), "events")

	var kinds []ChangeKind
	store.Subscribe(func(event ChangeEvent) {
		kinds = append(kinds, event.Kind)
		require.False(t, event.At.IsZero())
	})

	require.NoError(t, store.MarkComplete(ctx, "phase-1", "containers-101", "s1", 30))
	require.NoError(t, store.RecordQuizScore(ctx, "phase-1", "containers-101", "s1", 80))
	require.NoError(t, store.SetUserName(ctx, "Ada"))
	require.NoError(t, store.ResetAll(ctx))

	require.Equal(t, []ChangeKind{ChangeSubtopicCompleted, ChangeQuizScored, ChangeUserNameSet, ChangeReset}, kinds)
}

func TestMarkCompleteWithoutEstimateAddsNoTime(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestRepo(t), "no-estimate")

	require.NoError(t, store.MarkComplete(ctx, "phase-1", "containers-101", "s1", 0))
	require.Zero(t, store.Progress().TotalTimeSpent)

	entry, _ := store.Progress().Subtopic("phase-1", "containers-101", "s1")
	require.True(t, entry.Completed)
}

func TestLastAccessedAdvancesOnMutation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestRepo(t), "last-accessed")

	before := store.Progress().LastAccessed
	time.Sleep(time.Millisecond)
	require.NoError(t, store.MarkComplete(ctx, "phase-1", "containers-101", "s1", 30))
	require.True(t, store.Progress().LastAccessed.After(before))
}
