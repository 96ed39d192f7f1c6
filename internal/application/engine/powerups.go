package engine

import (
	"context"
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/learner"
	"github.com/alem-hub/learner-progression/internal/domain/powerup"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/pkg/logger"
)

// UsePowerUp consumes one unit of powerUpID. A refused use leaves the
// inventory unchanged and reports why in the result's Reason; it is not an
// error.
func (e *Engine) UsePowerUp(ctx context.Context, learnerID, powerUpID string, now time.Time) (powerup.Result, Outcome, error) {
	now = e.now(now)
	st, err := e.begin(ctx, learnerID, now)
	if err != nil {
		return powerup.Result{}, Outcome{}, err
	}

	res := e.powerups.Use(&st.inventory, powerUpID, now)
	st.out.PowerUp = &res
	if res.Applied {
		st.touch(learner.CategoryInventory)
		st.emit(shared.PowerUpUsedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventPowerUpUsed, st.id.String(), now),
			PowerUpID: powerUpID,
			Effect:    string(res.Effect.Type),
			Remaining: res.Remaining,
		})
		e.log.Info("power-up used",
			logger.LearnerID(st.id.String()), logger.PowerUpID(powerUpID), logger.Int("remaining", res.Remaining))
	} else {
		e.log.Debug("power-up refused",
			logger.LearnerID(st.id.String()), logger.PowerUpID(powerUpID), logger.Err(res.Reason))
	}

	out, err := e.commit(ctx, st, now)
	return res, out, err
}

// CanUsePowerUp reports whether the usage rules currently allow
// powerUpID. Stock is not considered.
func (e *Engine) CanUsePowerUp(ctx context.Context, learnerID, powerUpID string, now time.Time) (bool, error) {
	inv, err := e.GetInventory(ctx, learnerID)
	if err != nil {
		return false, err
	}
	return e.powerups.CanUse(inv, powerUpID, e.now(now)), nil
}

// EndSession resets the learner's per-session power-up counters.
func (e *Engine) EndSession(ctx context.Context, learnerID string) error {
	id, err := shared.NewLearnerID(learnerID)
	if err != nil {
		return err
	}
	inv := powerup.NewInventory()
	key := learner.KeyInventory(id)
	if _, err := e.store.Get(ctx, key, &inv); err != nil {
		return learner.PersistenceError("Get", key, err)
	}
	powerup.EndSession(&inv)
	if err := e.store.Put(ctx, key, inv); err != nil {
		return learner.PersistenceError("Put", key, err)
	}
	e.log.Debug("session ended", logger.LearnerID(id.String()))
	return nil
}
