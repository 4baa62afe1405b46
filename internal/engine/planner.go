package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"elite-trader/internal/cache"
	"elite-trader/internal/config"
	"elite-trader/internal/graph"
)

const (
	// SampleAttempts is how many candidates a refinement draws by pure random sampling
	// before it switches to mutating its best route.
	SampleAttempts = 128
	// ExhaustAttempts consecutive non-improving candidates end a refinement.
	ExhaustAttempts = 128
	// maxBackwardJumps bounds the backward frontier built around a fixed destination.
	maxBackwardJumps = 4
)

// ErrNoRoute is returned by Search when it is stopped before any route was found.
var ErrNoRoute = errors.New("no route found")

// Params holds the search settings the planner reads.
type Params struct {
	Cap      int
	LyPer    float64
	JumpsPer int
	Filter   StationFilter
	Exclude  map[string]bool
	MinTime  float64
	Timings  config.Timings
}

// ParamsFromConfig maps a Config onto planner Params.
func ParamsFromConfig(cfg *config.Config) Params {
	filter := StationFilter{IncludePlanetary: cfg.Planets}
	switch strings.ToUpper(cfg.PadSize) {
	case "L":
		filter.MinPad = PadLarge
	case "M":
		filter.MinPad = PadMedium
	}
	return Params{
		Cap:      cfg.Cap,
		LyPer:    cfg.LyPer,
		JumpsPer: cfg.EffectiveJumpsPer(),
		Filter:   filter,
		Exclude:  cfg.ExcludeSet(),
		MinTime:  cfg.MinTime,
		Timings:  cfg.Timings,
	}
}

// LegKey identifies the best trade between an ordered pair of stations.
type LegKey struct {
	From, To int64
}

// Caches are the memo instances of one search process. They assume the market snapshot
// does not change; build new Caches after re-importing.
type Caches struct {
	Stations *cache.Memo[string, *Station]
	Reach    *cache.Memo[int64, *Reach]
	Listings *cache.Memo[ListingKey, []Listing]
	Legs     *cache.Memo[LegKey, *TradeLeg]
}

// NewCaches creates all memo instances with the same capacity.
func NewCaches(size int) *Caches {
	return &Caches{
		Stations: cache.New[string, *Station]("stations", size),
		Reach:    cache.New[int64, *Reach]("reach", size),
		Listings: cache.New[ListingKey, []Listing]("listings", size),
		Legs:     cache.New[LegKey, *TradeLeg]("legs", size),
	}
}

// Stats returns the counters of every memo.
func (c *Caches) Stats() []cache.Stats {
	return []cache.Stats{c.Stations.Stats(), c.Reach.Stats(), c.Listings.Stats(), c.Legs.Stats()}
}

// Endpoints fixes where routes start and, optionally, end.
type Endpoints struct {
	Start *Station
	End   *Station
	// Backward lists the systems within k jumps of End; nil without End.
	Backward *graph.JumpFrontier
}

// Planner searches for trade routes. It is not safe for concurrent use.
type Planner struct {
	store  Store
	params Params
	caches *Caches
	ranges *RangeQuery
	eval   *Evaluator
	rng    *rand.Rand
}

// NewPlanner wires a planner. rng may be nil for a randomly seeded source.
func NewPlanner(store Store, params Params, caches *Caches, rng *rand.Rand) *Planner {
	if params.JumpsPer <= 0 {
		params.JumpsPer = 1
	}
	if caches == nil {
		caches = NewCaches(cache.DefaultSize)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Planner{
		store:  store,
		params: params,
		caches: caches,
		ranges: NewRangeQuery(store, params),
		eval:   NewEvaluator(store, caches.Listings, params),
		rng:    rng,
	}
}

// Caches exposes the planner's memo instances.
func (p *Planner) Caches() *Caches {
	return p.caches
}

// LookupStation resolves a location string through the station memo. An empty query
// resolves to nil.
func (p *Planner) LookupStation(ctx context.Context, query string) (*Station, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return p.caches.Stations.Get(query, func() (*Station, error) {
		st, err := p.store.FindStationByName(ctx, query)
		if err != nil {
			return nil, err
		}
		if st.Location == nil {
			return nil, fmt.Errorf("station %s has no system", st.Name)
		}
		return st, nil
	})
}

// ResolveEndpoints looks up the start and optional end station and, when an end is
// given, builds the backward frontier used to steer routes towards it within hops legs.
func (p *Planner) ResolveEndpoints(ctx context.Context, from, to string, hops int) (*Endpoints, error) {
	start, err := p.LookupStation(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if start == nil {
		return nil, errors.New("from: starting location is required")
	}
	end, err := p.LookupStation(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	ep := &Endpoints{Start: start, End: end}
	if end != nil {
		jumps := min(maxBackwardJumps, p.params.JumpsPer*max(hops, 1))
		_, ep.Backward, err = p.ranges.Expand(ctx, end.Location, jumps, true)
		if err != nil {
			return nil, fmt.Errorf("backward frontier: %w", err)
		}
	}
	return ep, nil
}

// sampleHop draws a random trade leg starting at from. bag, when set, restricts the
// destination system; forced, when set, fixes the destination station. A nil leg means
// no trade was found for this draw.
func (p *Planner) sampleHop(ctx context.Context, from *Station, bag *graph.IDSet, forced *Station) (*TradeLeg, error) {
	if from.Location == nil {
		return nil, fmt.Errorf("station %d has no system", from.ID)
	}
	reach, err := p.caches.Reach.Get(from.LocationID, func() (*Reach, error) {
		return p.ranges.WithStations(ctx, from.Location)
	})
	if err != nil {
		return nil, err
	}

	candidates := reach.Order
	if bag != nil {
		candidates = nil
		for id := range bag.Values() {
			if _, ok := reach.Locations[id]; ok {
				candidates = append(candidates, id)
			}
		}
		if len(candidates) == 0 {
			return nil, nil
		}
	}

	var next *Station
	if forced != nil {
		for _, id := range candidates {
			if i := slices.IndexFunc(reach.Stations[id], func(s *Station) bool { return s.ID == forced.ID }); i >= 0 {
				next = reach.Stations[id][i]
				break
			}
		}
	} else if len(candidates) > 0 {
		// Uniform over systems, then uniform over that system's stations.
		stations := reach.Stations[candidates[p.rng.IntN(len(candidates))]]
		if len(stations) > 0 {
			next = stations[p.rng.IntN(len(stations))]
		}
	}
	if next == nil || next.ID == from.ID {
		return nil, nil
	}

	// Outside the memo: a frontier fault must reach the caller as *graph.FrontierFault.
	jumps := reach.Frontier.FindJumpsFor(next.LocationID)
	return p.caches.Legs.Get(LegKey{From: from.ID, To: next.ID}, func() (*TradeLeg, error) {
		return p.eval.BestTrade(ctx, from, next, jumps)
	})
}

// Sample builds one random route of hops legs. It returns nil when any leg finds no
// trade.
func (p *Planner) Sample(ctx context.Context, ep *Endpoints, hops int) (*Route, error) {
	legs := make([]*TradeLeg, 0, hops)
	station := ep.Start
	for i := 0; i < hops; i++ {
		var forced *Station
		if ep.End != nil && i == hops-1 {
			forced = ep.End
		}
		var bag *graph.IDSet
		if ep.Backward != nil {
			jumpsFromEnd := (hops - 1 - i) * p.params.JumpsPer
			if set, ok := ep.Backward.Level(jumpsFromEnd); ok {
				bag = set
			}
		}
		leg, err := p.sampleHop(ctx, station, bag, forced)
		if err != nil {
			return nil, err
		}
		if leg == nil {
			return nil, nil
		}
		legs = append(legs, leg)
		station = leg.To
	}
	return NewRoute(legs), nil
}

// Mutate returns a copy of route with two adjacent legs regenerated: leg i gets a new
// random destination that can still reach the end of leg i+1, and leg i+1 is re-planned
// to that same end. Returns nil when route has fewer than two legs or no trade is found.
func (p *Planner) Mutate(ctx context.Context, route *Route) (*Route, error) {
	if route == nil || route.Len() < 2 {
		return nil, nil
	}
	idx := p.rng.IntN(route.Len() - 1)
	target := route.Legs[idx+1].To

	_, backward, err := p.ranges.Expand(ctx, target.Location, p.params.JumpsPer, true)
	if err != nil {
		return nil, err
	}

	first, err := p.sampleHop(ctx, route.Legs[idx].From, backward.Outermost(), nil)
	if err != nil || first == nil {
		return nil, err
	}
	second, err := p.sampleHop(ctx, first.To, nil, target)
	if err != nil || second == nil {
		return nil, err
	}

	legs := slices.Clone(route.Legs)
	legs[idx] = first
	legs[idx+1] = second
	return NewRoute(legs), nil
}

// Refine hill-climbs from a random route. The first SampleAttempts candidates are fresh
// samples, later ones are mutations of the best route so far. It stops after
// ExhaustAttempts consecutive candidates fail to beat the best, and returns the best
// route and the number of candidates drawn. A nil route means the seed was not usable.
func (p *Planner) Refine(ctx context.Context, ep *Endpoints, hops int) (*Route, int, error) {
	best, err := p.Sample(ctx, ep, hops)
	if err != nil {
		return nil, 0, err
	}
	if best == nil || !best.Valid(p.params.MinTime) {
		return nil, 0, nil
	}

	total := 0
	for attempts := 0; attempts < ExhaustAttempts; {
		var candidate *Route
		if total < SampleAttempts {
			candidate, err = p.Sample(ctx, ep, hops)
		} else {
			candidate, err = p.Mutate(ctx, best)
		}
		total++
		if err != nil {
			return nil, total, err
		}
		if candidate != nil && candidate.Valid(p.params.MinTime) && candidate.BetterThan(best) {
			best = candidate
			attempts = 0
			continue
		}
		attempts++
	}
	return best, total, nil
}

// SearchOptions controls the outer search loop.
type SearchOptions struct {
	From    string
	To      string
	Loop    bool          // end where we started
	Hops    int           // legs per route
	MaxHops int           // >0: draw 1..MaxHops legs per refinement instead of Hops
	RunFor  time.Duration // stop after this once a route exists; 0 = until ctx is done

	// OnImprove is called whenever the best route improves.
	OnImprove func(route *Route, elapsed time.Duration, candidatesPerSec float64)
}

// SearchResult is the outcome of Search.
type SearchResult struct {
	Best        *Route
	Endpoints   *Endpoints
	Candidates  int
	Refinements int
	Elapsed     time.Duration
}

// Search repeatedly refines routes and keeps the best one. Stop conditions are checked
// between refinements only; a refinement that has started runs to completion even when
// ctx is cancelled.
func (p *Planner) Search(ctx context.Context, opts SearchOptions, progress func(string)) (*SearchResult, error) {
	if progress == nil {
		progress = func(string) {}
	}
	to := opts.To
	if opts.Loop {
		to = opts.From
	}
	hops := max(opts.Hops, 1)
	ep, err := p.ResolveEndpoints(ctx, opts.From, to, max(hops, opts.MaxHops))
	if err != nil {
		return nil, err
	}
	log.Printf("[Route] Search params: from=%s to=%s hops=%d maxHops=%d jumpsPer=%d lyPer=%.1f cap=%d",
		ep.Start.PrettyName(), ep.End.PrettyName(), hops, opts.MaxHops, p.params.JumpsPer, p.params.LyPer, p.params.Cap)
	progress("Searching for trades...")

	res := &SearchResult{Endpoints: ep}
	start := time.Now()
	lastImprove := start
	sinceImprove := 0
	refineCtx := context.WithoutCancel(ctx)
	for ctx.Err() == nil {
		n := hops
		if opts.MaxHops > 0 {
			n = 1 + p.rng.IntN(opts.MaxHops)
		}
		route, k, err := p.Refine(refineCtx, ep, n)
		res.Candidates += k
		res.Refinements++
		sinceImprove += k
		if err != nil {
			return nil, err
		}
		if route != nil && route.BetterThan(res.Best) {
			now := time.Now()
			rate := float64(sinceImprove) / max(now.Sub(lastImprove).Seconds(), 1e-9)
			res.Best = route
			lastImprove, sinceImprove = now, 0
			if opts.OnImprove != nil {
				opts.OnImprove(route, now.Sub(start), rate)
			}
		}
		if res.Best != nil && opts.RunFor > 0 && time.Since(start) > opts.RunFor {
			break
		}
	}
	res.Elapsed = time.Since(start)
	if res.Best == nil {
		return res, ErrNoRoute
	}
	log.Printf("[Route] Best %.1f cr/s after %d candidates in %d refinements (%s)",
		res.Best.GainPerSecond, res.Candidates, res.Refinements, res.Elapsed.Round(time.Millisecond))
	progress(fmt.Sprintf("Found route: %d legs, +%d cr", res.Best.Len(), res.Best.SumGain))
	return res, nil
}
