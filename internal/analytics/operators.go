package analytics

import (
	"context"
	"sort"

	"github.com/zulandar/fleetyard/internal/models"
	"github.com/zulandar/fleetyard/internal/registry"
)

// Rating is the traffic-light classification of an operator's behaviour.
type Rating string

const (
	RatingRed    Rating = "red"
	RatingYellow Rating = "yellow"
	RatingGreen  Rating = "green"
)

func (r Rating) rank() int {
	switch r {
	case RatingRed:
		return 0
	case RatingYellow:
		return 1
	}
	return 2
}

// Rating thresholds.
const (
	greenScore  = 7
	yellowScore = 4
)

// OperatorStats summarises one operator's cycles in the window.
type OperatorStats struct {
	OperatorID      uint    `json:"operator_id"`
	Name            string  `json:"name"`
	Cycles          int     `json:"cycles"`
	Returned        int     `json:"returned"`
	Charged         int     `json:"charged"`
	Parked          int     `json:"parked"`
	Unnecessary     int     `json:"unnecessary_charges"`
	Early           int     `json:"early_pickups"`
	CriticalIgnored int     `json:"critical_ignored"`
	ForgotReturn    int     `json:"forgot_return"`
	ChargeRate      float64 `json:"charge_rate"`
	UnnecessaryRate float64 `json:"unnecessary_rate"`
	EarlyRate       float64 `json:"early_rate"`
	Score           int     `json:"score"`
	Rating          Rating  `json:"rating"`
}

// score awards points per behaviour. A rate with nothing to measure lands
// in the best band.
func (o *OperatorStats) score() int {
	pts := 0

	switch {
	case o.Returned == 0 || o.ChargeRate >= 80:
		pts += 2
	case o.ChargeRate >= 50:
		pts++
	}
	switch {
	case o.Charged == 0 || o.UnnecessaryRate <= 10:
		pts += 2
	case o.UnnecessaryRate <= 25:
		pts++
	}
	switch {
	case o.Cycles == 0 || o.EarlyRate <= 10:
		pts += 2
	case o.EarlyRate <= 25:
		pts++
	}
	switch {
	case o.CriticalIgnored == 0:
		pts += 2
	case o.CriticalIgnored <= 2:
		pts++
	}
	if o.ForgotReturn > 2 {
		pts -= 2
	}
	return pts
}

func ratingFor(score int) Rating {
	switch {
	case score >= greenScore:
		return RatingGreen
	case score >= yellowScore:
		return RatingYellow
	}
	return RatingRed
}

// OperatorStats rates every operator who picked up a vehicle in the window.
// Worst ratings come first, then the busiest operators.
func (s *Service) OperatorStats(ctx context.Context, w Window) ([]OperatorStats, error) {
	_, _, since := s.bounds(w)
	cycles, err := s.windowCycles(ctx, since, Filter{})
	if err != nil {
		return nil, err
	}

	byOp := make(map[uint]*OperatorStats)
	var ids []uint
	for i := range cycles {
		c := &cycles[i]
		o, ok := byOp[c.OperatorID]
		if !ok {
			o = &OperatorStats{OperatorID: c.OperatorID}
			byOp[c.OperatorID] = o
			ids = append(ids, c.OperatorID)
		}
		o.Cycles++
		if c.EarlyPickup {
			o.Early++
		}
		if c.ForgotReturn {
			o.ForgotReturn++
		}
		switch {
		case c.ReturnedAs(models.ReturnCharge):
			o.Returned++
			o.Charged++
			if unnecessaryCharge(c) {
				o.Unnecessary++
			}
		case c.ReturnedAs(models.ReturnPark):
			o.Returned++
			o.Parked++
			if criticalIgnored(c) {
				o.CriticalIgnored++
			}
		}
	}

	names, err := registry.OperatorNames(s.db.WithContext(ctx), ids)
	if err != nil {
		return nil, err
	}

	out := make([]OperatorStats, 0, len(byOp))
	for _, o := range byOp {
		o.Name = names[o.OperatorID]
		o.ChargeRate = percent(o.Charged, o.Returned)
		o.UnnecessaryRate = percent(o.Unnecessary, o.Charged)
		o.EarlyRate = percent(o.Early, o.Cycles)
		o.Score = o.score()
		o.Rating = ratingFor(o.Score)
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Rating != b.Rating {
			return a.Rating.rank() < b.Rating.rank()
		}
		if a.Cycles != b.Cycles {
			return a.Cycles > b.Cycles
		}
		return a.OperatorID < b.OperatorID
	})
	return out, nil
}
