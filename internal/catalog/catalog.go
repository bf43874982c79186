package catalog

import (
	"fmt"

	"github.com/opstrail/opstrail-core/internal/models"
)

// SubtopicRef addresses one subtopic inside the catalog tree, in catalog
// order. Metrics and resume logic iterate these instead of re-walking the
// nested structure.
type SubtopicRef struct {
	PhaseID          string
	TopicID          string
	SubtopicID       string
	Slug             string
	Title            string
	IsCheatSheet     bool
	EstimatedMinutes int
}

// Catalog wraps an immutable roadmap definition with lookup indexes. It is
// read-only after construction and safe to share.
type Catalog struct {
	roadmap  models.Roadmap
	phases   map[string]*models.Phase
	topics   map[string]map[string]*models.Topic
	ordered  []SubtopicRef
	topicCnt int
}

// New indexes a roadmap and enforces the identifier invariants: subtopic
// ids unique within a topic, topic ids within a phase, phase ids within
// the roadmap.
func New(roadmap models.Roadmap) (*Catalog, error) {
	if roadmap.ID == "" {
		return nil, fmt.Errorf("roadmap id must not be empty")
	}

	c := &Catalog{
		roadmap: roadmap,
		phases:  make(map[string]*models.Phase, len(roadmap.Phases)),
		topics:  make(map[string]map[string]*models.Topic, len(roadmap.Phases)),
	}

	for pi := range c.roadmap.Phases {
		phase := &c.roadmap.Phases[pi]
		if _, exists := c.phases[phase.ID]; exists {
			return nil, fmt.Errorf("duplicate phase id %q", phase.ID)
		}
		c.phases[phase.ID] = phase
		c.topics[phase.ID] = make(map[string]*models.Topic, len(phase.Topics))

		for ti := range phase.Topics {
			topic := &phase.Topics[ti]
			if _, exists := c.topics[phase.ID][topic.ID]; exists {
				return nil, fmt.Errorf("duplicate topic id %q in phase %q", topic.ID, phase.ID)
			}
			c.topics[phase.ID][topic.ID] = topic
			c.topicCnt++

			seen := make(map[string]struct{}, len(topic.Subtopics))
			for _, sub := range topic.Subtopics {
				if _, exists := seen[sub.ID]; exists {
					return nil, fmt.Errorf("duplicate subtopic id %q in topic %q", sub.ID, topic.ID)
				}
				seen[sub.ID] = struct{}{}
				c.ordered = append(c.ordered, SubtopicRef{
					PhaseID:          phase.ID,
					TopicID:          topic.ID,
					SubtopicID:       sub.ID,
					Slug:             sub.Slug,
					Title:            sub.Title,
					IsCheatSheet:     sub.IsCheatSheet,
					EstimatedMinutes: sub.EstimatedMinutes,
				})
			}
		}
	}

	return c, nil
}

// Roadmap returns the underlying definition.
func (c *Catalog) Roadmap() models.Roadmap {
	return c.roadmap
}

// Phases returns the phases in catalog order.
func (c *Catalog) Phases() []models.Phase {
	return c.roadmap.Phases
}

// Phase looks up a phase by id.
func (c *Catalog) Phase(phaseID string) (*models.Phase, bool) {
	phase, ok := c.phases[phaseID]
	return phase, ok
}

// Topic looks up a topic by phase and topic id.
func (c *Catalog) Topic(phaseID, topicID string) (*models.Topic, bool) {
	topics, ok := c.topics[phaseID]
	if !ok {
		return nil, false
	}
	topic, ok := topics[topicID]
	return topic, ok
}

// Subtopics returns every subtopic in catalog order, cheat sheets
// included. Callers filter on IsCheatSheet where counts are involved.
func (c *Catalog) Subtopics() []SubtopicRef {
	return c.ordered
}

// FirstSubtopic returns the very first subtopic of the roadmap.
func (c *Catalog) FirstSubtopic() (SubtopicRef, bool) {
	if len(c.ordered) == 0 {
		return SubtopicRef{}, false
	}
	return c.ordered[0], true
}

// TopicCount returns the number of topics across the whole roadmap, used
// for schedule projection.
func (c *Catalog) TopicCount() int {
	return c.topicCnt
}
