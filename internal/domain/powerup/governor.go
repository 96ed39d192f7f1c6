package powerup

import (
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INVENTORY
// ══════════════════════════════════════════════════════════════════════════════

// Usage is the ledger of one power-up for one learner.
type Usage struct {
	SessionCount int            `json:"session_count"`
	DailyCount   map[string]int `json:"daily_count,omitempty"`
	LastUsed     *time.Time     `json:"last_used,omitempty"`
}

// Inventory holds a learner's stock and usage ledgers.
type Inventory struct {
	Stock map[string]int   `json:"stock"`
	Usage map[string]Usage `json:"usage"`
}

// NewInventory returns an empty inventory.
func NewInventory() Inventory {
	return Inventory{Stock: map[string]int{}, Usage: map[string]Usage{}}
}

// Remaining returns the stock of id.
func (inv Inventory) Remaining(id string) int {
	return inv.Stock[id]
}

func (inv *Inventory) init() {
	if inv.Stock == nil {
		inv.Stock = map[string]int{}
	}
	if inv.Usage == nil {
		inv.Usage = map[string]Usage{}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GOVERNOR
// ══════════════════════════════════════════════════════════════════════════════

// Result is the outcome of Use. A refused use has Applied false and Reason
// set; it is an expected outcome, not an error.
type Result struct {
	Applied   bool   `json:"applied"`
	Effect    Effect `json:"effect"`
	Remaining int    `json:"remaining"`
	Reason    error  `json:"-"`
}

// Governor enforces the catalog's usage rules.
type Governor struct {
	Catalog  Catalog
	Calendar timeutil.Calendar
}

// NewGovernor returns a Governor over catalog, partitioning days in cal.
func NewGovernor(catalog Catalog, cal timeutil.Calendar) *Governor {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Governor{Catalog: catalog, Calendar: cal}
}

// check returns why id cannot be used at now, or nil. Stock is not checked.
func (g *Governor) check(inv Inventory, id string, now time.Time) error {
	def, ok := g.Catalog[id]
	if !ok {
		return shared.ErrPowerUpNotFound
	}
	u := inv.Usage[id]
	if u.SessionCount >= def.Rules.MaxPerSession {
		return shared.ErrPowerUpLimited
	}
	if u.DailyCount[g.Calendar.DayKey(now)] >= def.Rules.MaxPerDay {
		return shared.ErrPowerUpLimited
	}
	if cd := def.Rules.Cooldown(); cd > 0 && u.LastUsed != nil && now.Sub(*u.LastUsed) < cd {
		return shared.ErrPowerUpCooling
	}
	return nil
}

// CanUse reports whether the session, day and cooldown limits allow id at now.
func (g *Governor) CanUse(inv Inventory, id string, now time.Time) bool {
	return g.check(inv, id, now) == nil
}

// Use consumes one id from inv and returns its effect. When a rule or an
// empty stock refuses the use, inv is left untouched.
func (g *Governor) Use(inv *Inventory, id string, now time.Time) Result {
	inv.init()
	if err := g.check(*inv, id, now); err != nil {
		return Result{Remaining: inv.Stock[id], Reason: err}
	}
	if inv.Stock[id] <= 0 {
		return Result{Reason: shared.ErrPowerUpNoStock}
	}

	day := g.Calendar.DayKey(now)
	u := inv.Usage[id]
	counts := map[string]int{day: u.DailyCount[day] + 1}
	stamp := now

	inv.Stock[id]--
	inv.Usage[id] = Usage{
		SessionCount: u.SessionCount + 1,
		DailyCount:   counts,
		LastUsed:     &stamp,
	}

	return Result{
		Applied:   true,
		Effect:    effectOf(g.Catalog[id]),
		Remaining: inv.Stock[id],
	}
}

// Grant adds count of id to the stock.
func (g *Governor) Grant(inv *Inventory, id string, count int) error {
	if _, ok := g.Catalog[id]; !ok {
		return shared.ErrPowerUpNotFound
	}
	if count < 0 {
		return shared.NewDomainError("powerup", "Grant", shared.ErrNegativeValue, "count cannot be negative")
	}
	inv.init()
	inv.Stock[id] += count
	return nil
}

// EndSession resets every session counter. The caller decides when a
// session ends.
func EndSession(inv *Inventory) {
	for id, u := range inv.Usage {
		u.SessionCount = 0
		inv.Usage[id] = u
	}
}
