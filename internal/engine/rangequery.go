package engine

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"elite-trader/internal/graph"
)

// Reach is everything reachable from one system within one leg: the systems (with
// stations) and how many jumps each one takes.
type Reach struct {
	Locations map[int64]*Location
	Stations  map[int64][]*Station // by location id, ordered by station id
	Order     []int64              // location ids, ascending
	Frontier  *graph.JumpFrontier
}

// RangeQuery expands jump frontiers against the store.
type RangeQuery struct {
	store    Store
	lyPer    float64
	jumpsPer int
	filter   StationFilter

	// Stations per system, kept for the lifetime of the RangeQuery.
	mu                 sync.Mutex
	stationsByLocation map[int64][]*Station
}

// NewRangeQuery creates a RangeQuery using the jump distance, jumps per leg and station
// filter from params.
func NewRangeQuery(store Store, params Params) *RangeQuery {
	return &RangeQuery{
		store:              store,
		lyPer:              params.LyPer,
		jumpsPer:           params.JumpsPer,
		filter:             params.Filter,
		stationsByLocation: make(map[int64][]*Station),
	}
}

// Expand computes the systems reachable from start in up to maxJumps jumps.
//
// Each level asks the store for every system within one jump of the systems known so
// far; only the last level is restricted to systems with stations. With inclusive, level
// k lists every system within k jumps (start included); otherwise it lists only systems
// first reached at k.
func (q *RangeQuery) Expand(ctx context.Context, start *Location, maxJumps int, inclusive bool) (map[int64]*Location, *graph.JumpFrontier, error) {
	if start == nil {
		return nil, nil, fmt.Errorf("expand: nil start location")
	}
	known := map[int64]*Location{start.ID: start}
	frontier := graph.NewJumpFrontier(maxJumps, inclusive)
	frontier.SetLevel(0, []int64{start.ID})

	var bag []int64
	if inclusive {
		bag = []int64{start.ID}
	}
	for i := 0; i < maxJumps; i++ {
		lastJump := i == maxJumps-1
		origins := make([]*Location, 0, len(known))
		for _, id := range slices.Sorted(maps.Keys(known)) {
			origins = append(origins, known[id])
		}
		found, err := q.store.FindLocationsNear(ctx, origins, q.lyPer, lastJump)
		if err != nil {
			return nil, nil, fmt.Errorf("expand jump %d from %s: %w", i+1, start.Name, err)
		}
		if !inclusive {
			bag = bag[:0]
		}
		for id := range found {
			if _, ok := known[id]; !ok {
				bag = append(bag, id)
			}
		}
		frontier.SetLevel(i+1, bag)
		known = found
	}
	return known, frontier, nil
}

// WithStations expands one leg (jumpsPer jumps) from start and attaches the stations of
// every system found, honouring the station filter.
func (q *RangeQuery) WithStations(ctx context.Context, start *Location) (*Reach, error) {
	locations, frontier, err := q.Expand(ctx, start, q.jumpsPer, false)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var missing []int64
	for id := range locations {
		if _, ok := q.stationsByLocation[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		stations, err := q.store.FindStationsByLocationIDs(ctx, missing, q.filter)
		if err != nil {
			return nil, fmt.Errorf("stations near %s: %w", start.Name, err)
		}
		for _, id := range missing {
			q.stationsByLocation[id] = nil
		}
		for _, st := range stations {
			if st.Location == nil {
				st.Location = locations[st.LocationID]
			}
			q.stationsByLocation[st.LocationID] = append(q.stationsByLocation[st.LocationID], st)
		}
		for _, id := range missing {
			slices.SortFunc(q.stationsByLocation[id], func(a, b *Station) int {
				return cmp.Compare(a.ID, b.ID)
			})
		}
	}

	reach := &Reach{
		Locations: locations,
		Stations:  make(map[int64][]*Station, len(locations)),
		Order:     slices.Sorted(maps.Keys(locations)),
		Frontier:  frontier,
	}
	for id := range locations {
		reach.Stations[id] = q.stationsByLocation[id]
	}
	return reach, nil
}

// CachedLocations reports how many systems have their stations cached.
func (q *RangeQuery) CachedLocations() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.stationsByLocation)
}
