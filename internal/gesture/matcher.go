package gesture

import (
	"sort"
	"sync"

	"github.com/ayusman/posepad/internal/detector"
)

// Template is a trained hand pose that maps to a Label.
type Template struct {
	ID    string
	Name  string
	Label Label
	// Landmarks are wrist-relative and scaled, as produced by Normalize.
	Landmarks []detector.Point3D
	// Tolerance is the largest summed point distance that still matches.
	Tolerance float64
}

// Match represents a matching result between input and a template.
type Match struct {
	Template *Template
	Score    float64 // 1/(1+Distance), in (0, 1]
	Distance float64
}

// StaticMatcher matches hand poses against registered templates.
// It is safe for concurrent use.
type StaticMatcher struct {
	mu        sync.RWMutex
	templates []*Template
}

// NewStaticMatcher returns an empty matcher.
func NewStaticMatcher() *StaticMatcher {
	return &StaticMatcher{}
}

// AddTemplate adds a gesture template to the matcher, replacing any
// template with the same ID.
func (m *StaticMatcher) AddTemplate(t *Template) {
	if t == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.templates {
		if existing.ID == t.ID {
			m.templates[i] = t
			return
		}
	}
	m.templates = append(m.templates, t)
}

// RemoveTemplate drops the template with id, if present.
func (m *StaticMatcher) RemoveTemplate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, t := range m.templates {
		if t.ID == id {
			m.templates = append(m.templates[:i], m.templates[i+1:]...)
			return
		}
	}
}

// Reset drops every template.
func (m *StaticMatcher) Reset() {
	m.mu.Lock()
	m.templates = m.templates[:0]
	m.mu.Unlock()
}

// Len returns the number of registered templates.
func (m *StaticMatcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.templates)
}

// Match returns every template within tolerance of hand, closest first.
// Templates without landmarks never match.
func (m *StaticMatcher) Match(hand *detector.HandLandmarks) []Match {
	norm := hand.Normalize()
	if norm == nil {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Match
	for _, t := range m.templates {
		if len(t.Landmarks) == 0 {
			continue
		}
		d := shapeDistance(norm.Points[:], t.Landmarks)
		if d > t.Tolerance {
			continue
		}
		out = append(out, Match{Template: t, Score: 1 / (1 + d), Distance: d})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// shapeDistance sums the point-to-point distances over the shared prefix
// of a and b.
func shapeDistance(a, b []detector.Point3D) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += detector.Distance(a[i], b[i])
	}
	return sum
}

// TemplateClassifier labels hands by their best matching template and falls
// back to the geometric rules when nothing matches.
type TemplateClassifier struct {
	Matcher *StaticMatcher
}

// NewTemplateClassifier creates a classifier over m. A nil m starts empty.
func NewTemplateClassifier(m *StaticMatcher) *TemplateClassifier {
	if m == nil {
		m = NewStaticMatcher()
	}
	return &TemplateClassifier{Matcher: m}
}

// Classify implements Classifier.
func (c *TemplateClassifier) Classify(frame detector.PoseFrame) Observation {
	hand := ClassifyHand(frame.Hand)
	if matches := c.Matcher.Match(frame.Hand); len(matches) > 0 {
		hand = matches[0].Template.Label
	}
	return observe(frame, hand)
}
