package service

import (
	"math"

	"github.com/opstrail/opstrail-core/internal/catalog"
	"github.com/opstrail/opstrail-core/internal/models"
)

// Scope restricts a metric to a phase or a topic. The zero value covers
// the whole roadmap; TopicID requires PhaseID.
type Scope struct {
	PhaseID string
	TopicID string
}

func (s Scope) matches(ref catalog.SubtopicRef) bool {
	if s.PhaseID != "" && ref.PhaseID != s.PhaseID {
		return false
	}
	if s.TopicID != "" && ref.TopicID != s.TopicID {
		return false
	}
	return true
}

// MetricsEngine computes derived state from the catalog and a ledger
// snapshot. All methods are pure: no side effects, safe to call
// repeatedly. Ledger entries for subtopics no longer in the catalog are
// ignored everywhere, which defends against catalog drift across versions.
type MetricsEngine struct {
	catalog *catalog.Catalog
}

// NewMetricsEngine constructs the engine over an immutable catalog.
func NewMetricsEngine(c *catalog.Catalog) *MetricsEngine {
	return &MetricsEngine{catalog: c}
}

// SubtopicCount counts non-cheat-sheet subtopics within the scope.
func (e *MetricsEngine) SubtopicCount(scope Scope) int {
	count := 0
	for _, ref := range e.catalog.Subtopics() {
		if ref.IsCheatSheet || !scope.matches(ref) {
			continue
		}
		count++
	}
	return count
}

// CompletedCount counts completed, catalog-known, non-cheat-sheet
// subtopics within the scope.
func (e *MetricsEngine) CompletedCount(doc *models.UserProgress, scope Scope) int {
	count := 0
	for _, ref := range e.catalog.Subtopics() {
		if ref.IsCheatSheet || !scope.matches(ref) {
			continue
		}
		if entry, ok := doc.Subtopic(ref.PhaseID, ref.TopicID, ref.SubtopicID); ok && entry.Completed {
			count++
		}
	}
	return count
}

// CompletedMinutes sums the estimated minutes of completed subtopics
// within the scope, using catalog estimates as the source of truth.
func (e *MetricsEngine) CompletedMinutes(doc *models.UserProgress, scope Scope) int {
	minutes := 0
	for _, ref := range e.catalog.Subtopics() {
		if ref.IsCheatSheet || !scope.matches(ref) {
			continue
		}
		if entry, ok := doc.Subtopic(ref.PhaseID, ref.TopicID, ref.SubtopicID); ok && entry.Completed {
			minutes += ref.EstimatedMinutes
		}
	}
	return minutes
}

// CompletionPercentage is the rounded percentage of completed subtopics
// within the scope; 0 when the scope has no eligible subtopics.
func (e *MetricsEngine) CompletionPercentage(doc *models.UserProgress, scope Scope) int {
	total := e.SubtopicCount(scope)
	if total == 0 {
		return 0
	}
	completed := e.CompletedCount(doc, scope)
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// IsSubtopicComplete is a direct ledger lookup.
func (e *MetricsEngine) IsSubtopicComplete(doc *models.UserProgress, phaseID, topicID, subtopicID string) bool {
	entry, ok := doc.Subtopic(phaseID, topicID, subtopicID)
	return ok && entry.Completed
}

// IsComplete reports whether every eligible subtopic in the scope is
// completed. A scope with zero eligible subtopics is never complete.
func (e *MetricsEngine) IsComplete(doc *models.UserProgress, scope Scope) bool {
	total := e.SubtopicCount(scope)
	if total == 0 {
		return false
	}
	return e.CompletedCount(doc, scope) >= total
}

// CertificateEligible reports phase-certificate eligibility.
func (e *MetricsEngine) CertificateEligible(doc *models.UserProgress, phaseID string) bool {
	return e.IsComplete(doc, Scope{PhaseID: phaseID})
}

// CourseComplete reports whether every phase with eligible subtopics is
// complete, gating the master certificate.
func (e *MetricsEngine) CourseComplete(doc *models.UserProgress) bool {
	sawEligible := false
	for _, phase := range e.catalog.Phases() {
		scope := Scope{PhaseID: phase.ID}
		if e.SubtopicCount(scope) == 0 {
			continue
		}
		sawEligible = true
		if !e.IsComplete(doc, scope) {
			return false
		}
	}
	return sawEligible
}

// ResumePoint selects the most recently accessed incomplete subtopic, with
// lastAccessed ties broken by catalog order. An untouched ledger resumes
// at the first subtopic; a fully completed roadmap has no resume point.
func (e *MetricsEngine) ResumePoint(doc *models.UserProgress) (catalog.SubtopicRef, bool) {
	var (
		best      catalog.SubtopicRef
		bestFound bool
		firstOpen catalog.SubtopicRef
		openFound bool
	)

	for _, ref := range e.catalog.Subtopics() {
		entry, ok := doc.Subtopic(ref.PhaseID, ref.TopicID, ref.SubtopicID)
		if ok && entry.Completed {
			continue
		}
		if !openFound {
			firstOpen = ref
			openFound = true
		}
		if !ok {
			continue
		}
		if !bestFound {
			best = ref
			bestFound = true
			continue
		}
		bestEntry, _ := doc.Subtopic(best.PhaseID, best.TopicID, best.SubtopicID)
		if entry.LastAccessedAt.After(bestEntry.LastAccessedAt) {
			best = ref
		}
	}

	if bestFound {
		return best, true
	}
	if openFound {
		return firstOpen, true
	}
	return catalog.SubtopicRef{}, false
}

// AverageQuizScore is the mean of recorded best scores over catalog-known,
// non-cheat-sheet subtopics within the scope. The second return reports
// whether any score exists; no data is distinct from a zero score.
func (e *MetricsEngine) AverageQuizScore(doc *models.UserProgress, scope Scope) (float64, bool) {
	sum := 0
	count := 0
	for _, ref := range e.catalog.Subtopics() {
		if ref.IsCheatSheet || !scope.matches(ref) {
			continue
		}
		entry, ok := doc.Subtopic(ref.PhaseID, ref.TopicID, ref.SubtopicID)
		if !ok || entry.BestQuizScore == nil {
			continue
		}
		sum += *entry.BestQuizScore
		count++
	}
	if count == 0 {
		return 0, false
	}
	return float64(sum) / float64(count), true
}
