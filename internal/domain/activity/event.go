package activity

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/shared"
)

// Event is a raw activity as raised by session or UI code.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent builds an Event from a payload value.
func NewEvent(kind Kind, payload any, at time.Time) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, shared.WrapError("activity", "NewEvent", shared.ErrInvalidInput, "encode payload", err)
		}
		raw = b
	}
	return Event{Type: string(kind), Payload: raw, Timestamp: at}, nil
}

// Payload is the union of fields any activity may carry.
type Payload struct {
	Subject    string   `json:"subject,omitempty"`
	Topic      string   `json:"topic,omitempty"`
	Difficulty int      `json:"difficulty,omitempty"`
	Accuracy   *float64 `json:"accuracy,omitempty"`
	Minutes    int      `json:"minutes,omitempty"`
	StreakDays int      `json:"streak_days,omitempty"`
	QuestID    string   `json:"quest_id,omitempty"`
	QuestXP    *int     `json:"quest_xp,omitempty"`
	FriendID   string   `json:"friend_id,omitempty"`
}

// Decode turns a raw event into its Activity variant. Unknown types decode
// to Unrecognized without error. A malformed payload returns Unrecognized
// and an ErrInvalidInput error.
func Decode(ev Event) (Activity, error) {
	var p Payload
	raw := bytes.TrimSpace(ev.Payload)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &p); err != nil {
			return Unrecognized{Details: Details{At: ev.Timestamp}, Type: ev.Type},
				shared.WrapError("activity", "Decode", shared.ErrInvalidInput, "malformed payload for "+ev.Type, err)
		}
	}
	return FromPayload(Kind(ev.Type), p, ev.Timestamp), nil
}

// FromPayload builds the variant for kind from an already decoded payload.
// Engine-internal kinds such as streak_updated decode to Unrecognized.
func FromPayload(kind Kind, p Payload, at time.Time) Activity {
	d := Details{
		Subject:    p.Subject,
		Topic:      p.Topic,
		Difficulty: p.Difficulty,
		Minutes:    p.Minutes,
		At:         at,
	}
	if p.Accuracy != nil {
		d.Accuracy = *p.Accuracy
		d.Graded = true
	}

	switch kind {
	case KindProblemSolved:
		return ProblemSolved{d}
	case KindTopicCompleted:
		return TopicCompleted{d}
	case KindDailyGoalAchieved:
		return DailyGoalAchieved{d}
	case KindStreakMilestone:
		return StreakMilestone{Details: d, Days: p.StreakDays}
	case KindQuizPerfect:
		return QuizPerfect{d}
	case KindHelpFriend:
		return HelpFriend{Details: d, FriendID: p.FriendID}
	case KindQuestCompleted:
		return QuestCompleted{Details: d, QuestID: p.QuestID, QuestXP: p.QuestXP}
	case KindStudySession:
		return StudySession{d}
	default:
		return Unrecognized{Details: d, Type: string(kind)}
	}
}
