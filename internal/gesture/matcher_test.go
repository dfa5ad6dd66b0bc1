package gesture

import (
	"math"
	"testing"

	"github.com/ayusman/posepad/internal/detector"
)

func templateFrom(id string, label Label, hand detector.HandLandmarks, tolerance float64) *Template {
	return &Template{
		ID:        id,
		Name:      label.String(),
		Label:     label,
		Landmarks: hand.Normalize().Points[:],
		Tolerance: tolerance,
	}
}

func TestStaticMatcher_Match(t *testing.T) {
	m := NewStaticMatcher()
	m.AddTemplate(templateFrom("peace", PeaceSign, detector.PeaceSignLandmarks(), 0.5))
	m.AddTemplate(templateFrom("palm", OpenPalm, detector.OpenPalmLandmarks(), 0.5))

	tests := []struct {
		name string
		hand detector.HandLandmarks
		want string
	}{
		{"peace sign", detector.PeaceSignLandmarks(), "peace"},
		{"open palm", detector.OpenPalmLandmarks(), "palm"},
		{"thumbs up matches neither", detector.ThumbsUpLandmarks(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := m.Match(&tt.hand)
			if tt.want == "" {
				if len(matches) != 0 {
					t.Fatalf("expected no match, got %q at distance %.3f", matches[0].Template.ID, matches[0].Distance)
				}
				return
			}
			if len(matches) == 0 {
				t.Fatalf("expected %q to match", tt.want)
			}
			if got := matches[0].Template.ID; got != tt.want {
				t.Errorf("best match = %q, want %q", got, tt.want)
			}
			if matches[0].Distance > 1e-9 || matches[0].Score < 0.999 {
				t.Errorf("identical hand should match exactly, got distance %f score %f", matches[0].Distance, matches[0].Score)
			}
		})
	}
}

func TestStaticMatcher_ScaleAndPositionInvariant(t *testing.T) {
	m := NewStaticMatcher()
	m.AddTemplate(templateFrom("four", FourUp, detector.FourUpLandmarks(), 0.1))

	hand := detector.FourUpLandmarks()
	for i := range hand.Points {
		hand.Points[i].X = hand.Points[i].X*0.5 + 0.1
		hand.Points[i].Y = hand.Points[i].Y*0.5 + 0.2
		hand.Points[i].Z *= 0.5
	}

	matches := m.Match(&hand)
	if len(matches) != 1 {
		t.Fatalf("expected a smaller, shifted hand to match, got %d matches", len(matches))
	}
}

func TestStaticMatcher_OrderedByDistance(t *testing.T) {
	m := NewStaticMatcher()
	m.AddTemplate(templateFrom("loose-three", ThreeUp, detector.ThreeUpLandmarks(), 10))
	m.AddTemplate(templateFrom("four", FourUp, detector.FourUpLandmarks(), 10))

	hand := detector.FourUpLandmarks()
	matches := m.Match(&hand)
	if len(matches) != 2 {
		t.Fatalf("expected both templates within a wide tolerance, got %d", len(matches))
	}
	if matches[0].Template.ID != "four" {
		t.Errorf("expected closest template first, got %q", matches[0].Template.ID)
	}
	if matches[0].Distance > matches[1].Distance || matches[0].Score < matches[1].Score {
		t.Error("matches should be ordered by ascending distance")
	}
}

func TestStaticMatcher_AddRemoveTemplate(t *testing.T) {
	m := NewStaticMatcher()
	m.AddTemplate(&Template{ID: "one"})
	m.AddTemplate(&Template{ID: "two"})

	m.RemoveTemplate("one")
	m.RemoveTemplate("missing")

	if m.Len() != 1 || m.templates[0].ID != "two" {
		t.Fatalf("expected only %q to remain, got %d templates", "two", m.Len())
	}
}

func TestStaticMatcher_SkipsEmptyTemplatesAndNilHands(t *testing.T) {
	m := NewStaticMatcher()
	m.AddTemplate(&Template{ID: "untrained", Label: PeaceSign, Tolerance: 100})

	hand := detector.PeaceSignLandmarks()
	if got := m.Match(&hand); len(got) != 0 {
		t.Errorf("untrained template should not match, got %d", len(got))
	}
	if got := m.Match(nil); got != nil {
		t.Errorf("expected nil for nil hand, got %v", got)
	}
}

func TestShapeDistance(t *testing.T) {
	a := []detector.Point3D{{}, {X: 1}, {X: 0, Y: 3, Z: 4}}
	b := []detector.Point3D{{}, {X: 2}}

	if d := shapeDistance(a, a); d != 0 {
		t.Errorf("distance to itself = %f, want 0", d)
	}
	if d := shapeDistance(a, b); math.Abs(d-1) > 1e-12 {
		t.Errorf("distance over shared prefix = %f, want 1", d)
	}
	if d := shapeDistance(a[2:], []detector.Point3D{{}}); math.Abs(d-5) > 1e-12 {
		t.Errorf("distance = %f, want 5", d)
	}
	if d := shapeDistance(nil, a); d != 0 {
		t.Errorf("distance with empty side = %f, want 0", d)
	}
}

func TestStaticMatcher_AddReplacesSameID(t *testing.T) {
	matcher := NewStaticMatcher()

	matcher.AddTemplate(&Template{ID: "a", Label: IndexUp})
	matcher.AddTemplate(&Template{ID: "a", Label: PeaceSign})
	matcher.AddTemplate(nil)

	if matcher.Len() != 1 {
		t.Fatalf("expected 1 template, got %d", matcher.Len())
	}
	if matcher.templates[0].Label != PeaceSign {
		t.Errorf("expected replaced template label %v, got %v", PeaceSign, matcher.templates[0].Label)
	}

	matcher.Reset()
	if matcher.Len() != 0 {
		t.Errorf("expected empty matcher after Reset, got %d", matcher.Len())
	}
}

func TestTemplateClassifier_Classify(t *testing.T) {
	thumbsUp := detector.ThumbsUpLandmarks()
	matcher := NewStaticMatcher()
	matcher.AddTemplate(&Template{
		ID:        "thumb",
		Name:      "Thumb for peace",
		Label:     PeaceSign,
		Landmarks: thumbsUp.Normalize().Points[:],
		Tolerance: 0.5,
	})
	classifier := NewTemplateClassifier(matcher)

	t.Run("template wins over rules", func(t *testing.T) {
		hand := detector.ThumbsUpLandmarks()
		obs := classifier.Classify(detector.PoseFrame{Hand: &hand, Body: detector.StandingPose()})

		if obs.Hand != PeaceSign {
			t.Errorf("expected %v, got %v", PeaceSign, obs.Hand)
		}
	})

	t.Run("falls back to rules", func(t *testing.T) {
		hand := detector.IndexUpLandmarks()
		obs := classifier.Classify(detector.PoseFrame{Hand: &hand, Body: detector.StandingPose()})

		if obs.Hand != IndexUp {
			t.Errorf("expected %v, got %v", IndexUp, obs.Hand)
		}
	})

	t.Run("body features are filled", func(t *testing.T) {
		obs := classifier.Classify(detector.PoseFrame{Body: detector.CrouchPose()})

		if obs.Hand != None {
			t.Errorf("expected None without a hand, got %v", obs.Hand)
		}
		if !obs.Jumping() {
			t.Errorf("expected crouch to jump, legs %.1f/%.1f", obs.RightLeg, obs.LeftLeg)
		}
	})

	t.Run("nil matcher starts empty", func(t *testing.T) {
		c := NewTemplateClassifier(nil)
		hand := detector.OpenPalmLandmarks()

		if got := c.Classify(detector.PoseFrame{Hand: &hand, Body: detector.StandingPose()}).Hand; got != OpenPalm {
			t.Errorf("expected %v, got %v", OpenPalm, got)
		}
	})
}
