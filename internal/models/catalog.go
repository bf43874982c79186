package models

// Subtopic is a single lesson within a topic. Cheat sheets are reference
// material and never count towards completion.
type Subtopic struct {
	ID               string `json:"id"`
	Slug             string `json:"slug"`
	Title            string `json:"title"`
	IsCheatSheet     bool   `json:"isCheatSheet"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
}

// Topic groups an ordered list of subtopics.
type Topic struct {
	ID                string     `json:"id"`
	Slug              string     `json:"slug"`
	Title             string     `json:"title"`
	EstimatedDuration string     `json:"estimatedDuration"`
	Subtopics         []Subtopic `json:"subtopics"`
}

// Phase is one stage of the roadmap. Sequence drives ordering and the
// P<n> code on phase certificates.
type Phase struct {
	ID       string  `json:"id"`
	Slug     string  `json:"slug"`
	Title    string  `json:"title"`
	Sequence int     `json:"sequence"`
	Topics   []Topic `json:"topics"`
}

// Roadmap is the full course definition supplied by build-time content.
// The tree is immutable once loaded; ordering of phases, topics and
// subtopics is significant.
type Roadmap struct {
	ID     string  `json:"id"`
	Slug   string  `json:"slug"`
	Title  string  `json:"title"`
	Phases []Phase `json:"phases"`
}
