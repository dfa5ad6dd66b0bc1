package store

import (
	"fmt"

	"github.com/ayusman/posepad/internal/gesture"
)

// GestureTemplate builds the matcher form of t from its stored landmarks.
func (r *TemplateRepository) GestureTemplate(t *Template) (*gesture.Template, error) {
	label, ok := gesture.ParseLabel(t.Label)
	if !ok {
		return nil, fmt.Errorf("template %q: unknown label %q", t.Name, t.Label)
	}

	landmarks, err := r.GetLandmarks(t.ID)
	if err != nil {
		return nil, fmt.Errorf("template %q landmarks: %w", t.Name, err)
	}

	return &gesture.Template{
		ID:        t.ID,
		Name:      t.Name,
		Label:     label,
		Landmarks: landmarks,
		Tolerance: t.Tolerance,
	}, nil
}

// LoadInto replaces the templates of m with every stored template that has
// landmarks. Templates that cannot be converted are skipped and reported in
// the returned slice of errors.
func (r *TemplateRepository) LoadInto(m *gesture.StaticMatcher) (int, []error, error) {
	templates, err := r.List()
	if err != nil {
		return 0, nil, err
	}

	m.Reset()

	var skipped []error
	loaded := 0
	for _, t := range templates {
		gt, err := r.GestureTemplate(t)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		if len(gt.Landmarks) == 0 {
			continue
		}
		m.AddTemplate(gt)
		loaded++
	}

	return loaded, skipped, nil
}
