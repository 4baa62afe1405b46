package engine

import (
	"context"
	"fmt"
	"sort"

	"elite-trader/internal/cache"
	"elite-trader/internal/config"
)

// MaxCommoditiesPerLeg caps how many distinct commodities one leg may carry.
const MaxCommoditiesPerLeg = 4

// ListingKey identifies the cached listings of one station side.
type ListingKey struct {
	StationID int64
	Side      Side
}

// EvaluateTrade picks the most profitable cargo for hauling from one station to another.
//
// Greedy, at most MaxCommoditiesPerLeg rounds: each round takes the commodity whose
// fill (min of remaining capacity and remaining stock) yields the largest gain. Ties go
// to the commodity name that sorts first. Returns nil when no profitable unit exists.
func EvaluateTrade(
	from, to *Station,
	buys, sells []Listing,
	capacity int64,
	exclude map[string]bool,
	jumps int,
	timings config.Timings,
) *TradeLeg {
	buyByName := make(map[string]Listing, len(buys))
	for _, l := range buys {
		if l.BuyPrice > 0 {
			buyByName[l.Name] = l
		}
	}
	sellByName := make(map[string]Listing, len(sells))
	var names []string
	for _, l := range sells {
		if l.SellPrice <= 0 || exclude[l.Name] {
			continue
		}
		if _, ok := buyByName[l.Name]; !ok {
			continue
		}
		if _, dup := sellByName[l.Name]; !dup {
			names = append(names, l.Name)
		}
		sellByName[l.Name] = l
	}
	sort.Strings(names)

	capLeft := capacity
	stock := make(map[string]int64, len(names)) // overlay of stock consumed so far
	for _, name := range names {
		stock[name] = max(buyByName[name].Stock, 0)
	}

	var picks Cargo
	var sumGain, sumStock int64
	for round := 0; capLeft > 0 && round < MaxCommoditiesPerLeg; round++ {
		bestName := ""
		var bestQty, bestGain int64
		for _, name := range names {
			qty := min(capLeft, stock[name])
			gain := qty * (sellByName[name].SellPrice - buyByName[name].BuyPrice)
			if bestName == "" || gain > bestGain {
				bestName, bestQty, bestGain = name, qty, gain
			}
		}
		if bestName == "" || bestQty <= 0 || bestGain <= 0 {
			break
		}
		stock[bestName] -= bestQty
		capLeft -= bestQty
		picks = picks.Merge(Cargo{{Commodity: bestName, Quantity: bestQty}})
		sumGain += bestGain
		sumStock += bestQty
	}
	if len(picks) == 0 {
		return nil
	}

	leg := &TradeLeg{
		From:   from,
		To:     to,
		Cargo:  picks,
		Gain:   sumGain,
		Stock:  sumStock,
		Jumps:  jumps,
		Trades: len(picks),
	}
	leg.FlightTime = EstimateSeconds(leg, timings)
	return leg
}

// Evaluator loads station listings through a memo and runs EvaluateTrade.
type Evaluator struct {
	store    Store
	listings *cache.Memo[ListingKey, []Listing]
	capacity int64
	exclude  map[string]bool
	timings  config.Timings
}

// NewEvaluator creates an Evaluator. listings is shared across the search.
func NewEvaluator(store Store, listings *cache.Memo[ListingKey, []Listing], params Params) *Evaluator {
	return &Evaluator{
		store:    store,
		listings: listings,
		capacity: int64(params.Cap),
		exclude:  params.Exclude,
		timings:  params.Timings,
	}
}

func (e *Evaluator) stationListings(ctx context.Context, stationID int64, side Side) ([]Listing, error) {
	key := ListingKey{StationID: stationID, Side: side}
	return e.listings.Get(key, func() ([]Listing, error) {
		rows, err := e.store.FindCommodityListings(ctx, stationID, side)
		if err != nil {
			return nil, fmt.Errorf("listings for station %d (%s): %w", stationID, side, err)
		}
		return rows, nil
	})
}

// BestTrade returns the best leg from one station to another, or nil.
func (e *Evaluator) BestTrade(ctx context.Context, from, to *Station, jumps int) (*TradeLeg, error) {
	buys, err := e.stationListings(ctx, from.ID, SideBuy)
	if err != nil {
		return nil, err
	}
	sells, err := e.stationListings(ctx, to.ID, SideSell)
	if err != nil {
		return nil, err
	}
	return EvaluateTrade(from, to, buys, sells, e.capacity, e.exclude, jumps, e.timings), nil
}
