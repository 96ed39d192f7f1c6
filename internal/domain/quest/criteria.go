package quest

import (
	"strings"

	"github.com/alem-hub/learner-progression/internal/domain/activity"
)

// CriterionKind tags the variant of a Criterion.
type CriterionKind string

const (
	CriterionSubject       CriterionKind = "subject"
	CriterionTopic         CriterionKind = "topic"
	CriterionMinDifficulty CriterionKind = "min_difficulty"
	CriterionMinAccuracy   CriterionKind = "min_accuracy"
	CriterionActivityKind  CriterionKind = "activity_kind"
)

// Criterion is one filter on the activities an objective accepts.
// Text variants use Value, numeric variants use Number.
type Criterion struct {
	Kind   CriterionKind `json:"kind"`
	Value  string        `json:"value,omitempty"`
	Number float64       `json:"number,omitempty"`
}

// Subject matches activities in the given subject.
func Subject(s string) Criterion { return Criterion{Kind: CriterionSubject, Value: s} }

// Topic matches activities on the given topic.
func Topic(s string) Criterion { return Criterion{Kind: CriterionTopic, Value: s} }

// MinDifficulty matches activities rated at least d.
func MinDifficulty(d int) Criterion {
	return Criterion{Kind: CriterionMinDifficulty, Number: float64(d)}
}

// MinAccuracy matches graded activities with accuracy at least acc.
func MinAccuracy(acc float64) Criterion {
	return Criterion{Kind: CriterionMinAccuracy, Number: acc}
}

// OfKind matches activities of kind k.
func OfKind(k activity.Kind) Criterion {
	return Criterion{Kind: CriterionActivityKind, Value: string(k)}
}

// Matches reports whether a satisfies c. Unknown criterion kinds never match.
func (c Criterion) Matches(a activity.Activity) bool {
	d := a.Info()
	switch c.Kind {
	case CriterionSubject:
		return strings.EqualFold(d.Subject, c.Value)
	case CriterionTopic:
		return strings.EqualFold(d.Topic, c.Value)
	case CriterionMinDifficulty:
		return float64(d.Difficulty) >= c.Number
	case CriterionMinAccuracy:
		return d.Graded && d.Accuracy >= c.Number
	case CriterionActivityKind:
		return string(a.Kind()) == c.Value
	default:
		return false
	}
}

// matchAll AND-combines criteria. An empty list matches everything.
func matchAll(criteria []Criterion, a activity.Activity) bool {
	for _, c := range criteria {
		if !c.Matches(a) {
			return false
		}
	}
	return true
}
