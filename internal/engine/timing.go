package engine

import (
	"math"

	"elite-trader/internal/config"
)

// defaultDistanceToStar is assumed when a station has no recorded distance (ls).
const defaultDistanceToStar = 100

// EstimateSeconds estimates how long it takes to execute a leg: buy, leave, jump,
// supercruise to the destination, land, sell. It depends only on its inputs.
func EstimateSeconds(leg *TradeLeg, t config.Timings) float64 {
	trades := float64(leg.Trades)
	jumps := float64(leg.Jumps)

	res := t.PerTrade * trades // buy
	res += t.Leave
	res += t.Hyperspace * jumps
	res += t.Cooldown * jumps

	d := float64(defaultDistanceToStar)
	planetary := false
	if leg.To != nil {
		if leg.To.DistanceToStar != nil {
			d = float64(*leg.To.DistanceToStar)
		}
		planetary = leg.To.IsPlanetary
	}
	if d < 1 {
		d = 1 // ln(0) is -Inf
	}
	res += t.ApproachBase + ((math.Log(d)-1)/5)*t.ApproachLogScale + t.ApproachPerLs*d

	if planetary {
		res += t.LandPlanet
	} else {
		res += t.LandStation
	}
	res += t.InStation
	res += t.PerTrade * trades // sell
	return res
}
