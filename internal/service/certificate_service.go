package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opstrail/opstrail-core/internal/catalog"
	"github.com/opstrail/opstrail-core/internal/models"
)

// ErrNotEligible indicates the requested certificate scope is not fully
// completed.
var ErrNotEligible = errors.New("certificate requirements not met")

// fallbackLearnerName is printed when the learner never entered a name.
const fallbackLearnerName = "Learner"

// CertificateService emits certificate records for the rendering boundary.
// Records are snapshots; nothing is persisted here and no downstream
// verification exists, so IDs are best-effort unique.
type CertificateService interface {
	IssuePhase(doc *models.UserProgress, phaseID string) (models.Certificate, error)
	IssueCourse(doc *models.UserProgress) (models.Certificate, error)
}

type certificateService struct {
	catalog *catalog.Catalog
	metrics *MetricsEngine
	logger  zerolog.Logger
	now     func() time.Time
}

// NewCertificateService constructs the emitter.
func NewCertificateService(c *catalog.Catalog, metrics *MetricsEngine, logger zerolog.Logger) CertificateService {
	return &certificateService{
		catalog: c,
		metrics: metrics,
		logger:  logger.With().Str("component", "certificate_service").Logger(),
		now:     time.Now,
	}
}

func (s *certificateService) IssuePhase(doc *models.UserProgress, phaseID string) (models.Certificate, error) {
	phase, ok := s.catalog.Phase(phaseID)
	if !ok {
		return models.Certificate{}, fmt.Errorf("unknown phase %q", phaseID)
	}
	if !s.metrics.CertificateEligible(doc, phaseID) {
		return models.Certificate{}, fmt.Errorf("%w: phase %q incomplete", ErrNotEligible, phaseID)
	}

	scope := Scope{PhaseID: phaseID}
	cert := s.build(doc, scope, models.CertificateScopePhase, fmt.Sprintf("P%d", phase.Sequence))
	cert.PhaseID = phaseID

	s.logger.Info().Str("certificate_id", cert.ID).Str("phase_id", phaseID).Msg("phase certificate issued")
	return cert, nil
}

func (s *certificateService) IssueCourse(doc *models.UserProgress) (models.Certificate, error) {
	if !s.metrics.CourseComplete(doc) {
		return models.Certificate{}, fmt.Errorf("%w: course incomplete", ErrNotEligible)
	}

	cert := s.build(doc, Scope{}, models.CertificateScopeCourse, "MASTER")

	s.logger.Info().Str("certificate_id", cert.ID).Msg("course certificate issued")
	return cert, nil
}

func (s *certificateService) build(doc *models.UserProgress, scope Scope, scopeName, scopeCode string) models.Certificate {
	now := s.now()

	name := strings.TrimSpace(doc.UserName)
	if name == "" {
		name = fallbackLearnerName
	}

	minutes := s.metrics.CompletedMinutes(doc, scope)
	hours := math.Round(float64(minutes)/60*10) / 10

	cert := models.Certificate{
		ID:               s.certificateID(scopeCode, now),
		Name:             name,
		Scope:            scopeName,
		RoadmapID:        s.catalog.Roadmap().ID,
		CompletionDate:   now,
		LessonsCompleted: s.metrics.CompletedCount(doc, scope),
		HoursSpent:       hours,
	}

	if avg, ok := s.metrics.AverageQuizScore(doc, scope); ok {
		rounded := math.Round(avg*10) / 10
		cert.AverageQuizScore = &rounded
	}

	return cert
}

// certificateID renders {ROADMAP}-{SCOPE}-{timestamp36}-{random}. Clock
// skew can repeat the timestamp; the random suffix keeps collisions
// unlikely enough for an unverified artifact.
func (s *certificateService) certificateID(scopeCode string, now time.Time) string {
	roadmapCode := strings.ToUpper(strings.ReplaceAll(s.catalog.Roadmap().Slug, "-", ""))
	if roadmapCode == "" {
		roadmapCode = strings.ToUpper(strings.ReplaceAll(s.catalog.Roadmap().ID, "-", ""))
	}

	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])

	return fmt.Sprintf("%s-%s-%s-%s", roadmapCode, scopeCode, stamp, random)
}
