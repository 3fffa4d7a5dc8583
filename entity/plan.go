package entity

import "time"

// LifetimeDays is the duration sentinel of a plan that never expires in practice.
const LifetimeDays = 36500

const (
	PlanWeek  = "WEEK"
	PlanMonth = "MONTH"
	PlanLife  = "LIFE"
)

// Plan is a catalog entry; Amount is in centavos.
type Plan struct {
	Id     string
	Title  string
	Label  string
	Amount int64
	Days   int
}

func (p Plan) Duration() time.Duration {
	return time.Duration(p.Days) * 24 * time.Hour
}

func (p Plan) IsLifetime() bool {
	return p.Days >= LifetimeDays
}

// catalog order is the order plans are offered to the user
var catalog = []Plan{
	{Id: PlanWeek, Title: "SEMANAL", Label: "🔷 SEMANAL - R$ 17.99", Amount: 1799, Days: 7},
	{Id: PlanMonth, Title: "MENSAL", Label: "🟧 MENSAL - R$ 24.99", Amount: 2499, Days: 30},
	{Id: PlanLife, Title: "VITALÍCIO", Label: "💎 VITALÍCIO (Paga só 1 vez!) - R$ 37.90", Amount: 3790, Days: LifetimeDays},
}

func Plans() []Plan {
	result := make([]Plan, len(catalog))
	copy(result, catalog)
	return result
}

func FindPlan(id string) (Plan, bool) {
	for _, p := range catalog {
		if p.Id == id {
			return p, true
		}
	}
	return Plan{}, false
}
