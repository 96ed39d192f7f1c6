package quest

import (
	"sort"
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/activity"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
)

// Log is a learner's quest list, active and historical, in creation order.
type Log struct {
	Quests []Quest `json:"quests"`
}

// Find returns a pointer to the quest with id.
func (l *Log) Find(id string) (*Quest, bool) {
	for i := range l.Quests {
		if l.Quests[i].ID == id {
			return &l.Quests[i], true
		}
	}
	return nil, false
}

// Merge adds generated quests whose ids are not in the log yet and returns
// the added ones. Merging the same set twice adds nothing.
func (l *Log) Merge(generated []Quest) []Quest {
	var added []Quest
	for _, q := range generated {
		if _, ok := l.Find(q.ID); ok {
			continue
		}
		if q.Validate() != nil {
			continue
		}
		l.Quests = append(l.Quests, q)
		added = append(added, q)
	}
	return added
}

// Expire marks every unfinished quest whose time limit passed before now
// as expired, and returns the newly expired quests.
func (l *Log) Expire(now time.Time) []Quest {
	var expired []Quest
	for i := range l.Quests {
		q := &l.Quests[i]
		if q.ExpiresBefore(now) && q.expire(now) {
			expired = append(expired, *q)
		}
	}
	return expired
}

// Active returns the quests still accepting progress at now.
func (l Log) Active(now time.Time) []Quest {
	out := make([]Quest, 0, len(l.Quests))
	for _, q := range l.Quests {
		if q.IsFinished() || q.ExpiresBefore(now) {
			continue
		}
		out = append(out, q)
	}
	return out
}

// CompletedIDs returns the ids of completed quests.
func (l Log) CompletedIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, q := range l.Quests {
		if q.Status.Completed {
			ids[q.ID] = true
		}
	}
	return ids
}

// unlocked checks MinLevel and Prerequisites for q.
func (l *Log) unlocked(q *Quest, level int, completed map[string]bool) bool {
	if q.Requirements.MinLevel > 0 && level < q.Requirements.MinLevel {
		return false
	}
	for _, id := range q.Requirements.Prerequisites {
		if !completed[id] {
			return false
		}
	}
	return true
}

// Apply offers a to the quest with id on behalf of a learner at level.
// A missing, finished or locked quest returns a Result with Reason set and
// Progressed false.
func (l *Log) Apply(id string, a activity.Activity, level int) Result {
	q, ok := l.Find(id)
	if !ok {
		return Result{QuestID: id, Reason: shared.ErrQuestNotFound}
	}
	if !q.IsFinished() && !l.unlocked(q, level, l.CompletedIDs()) {
		return Result{QuestID: id, Reason: shared.ErrQuestLocked}
	}
	return q.Apply(a)
}

// ApplyAll offers a to every quest in the log and returns the results of
// the quests that progressed.
func (l *Log) ApplyAll(a activity.Activity, level int) []Result {
	var out []Result
	for i := range l.Quests {
		if l.Quests[i].IsFinished() {
			continue
		}
		if res := l.Apply(l.Quests[i].ID, a, level); res.Progressed {
			out = append(out, res)
		}
	}
	return out
}

// Prune drops finished quests whose time limit or completion is older than
// cutoff. Active quests are always kept.
func (l *Log) Prune(cutoff time.Time) int {
	kept := l.Quests[:0]
	dropped := 0
	for _, q := range l.Quests {
		if q.IsFinished() && finishedAt(q).Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, q)
	}
	l.Quests = kept
	return dropped
}

func finishedAt(q Quest) time.Time {
	switch {
	case q.Status.CompletedAt != nil:
		return *q.Status.CompletedAt
	case q.Status.ExpiredAt != nil:
		return *q.Status.ExpiredAt
	default:
		return q.CreatedAt
	}
}

// SortByDeadline orders quests by time limit, open-ended ones last.
func SortByDeadline(quests []Quest) {
	sort.SliceStable(quests, func(i, j int) bool {
		a, b := quests[i].Requirements.TimeLimit, quests[j].Requirements.TimeLimit
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
