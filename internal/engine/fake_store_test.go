package engine

import (
	"context"
	"strings"
	"sync"
)

// fakeStore is an in-memory Store for engine tests.
type fakeStore struct {
	mu        sync.Mutex
	locations map[int64]*Location
	stations  map[int64]*Station
	listings  map[int64][]Listing // by station id

	stationQueries [][]int64
	nameQueries    int
	listingQueries int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		locations: make(map[int64]*Location),
		stations:  make(map[int64]*Station),
		listings:  make(map[int64][]Listing),
	}
}

func (f *fakeStore) addLocation(id int64, name string, x float64) *Location {
	loc := &Location{ID: id, Name: name, Pos: Vec3{X: x}}
	f.locations[id] = loc
	return loc
}

func (f *fakeStore) addStation(id int64, loc *Location, name string, pad PadSize, planetary bool) *Station {
	dist := int64(100)
	st := &Station{
		ID:             id,
		LocationID:     loc.ID,
		Location:       loc,
		Name:           name,
		PadSize:        pad,
		DistanceToStar: &dist,
		HasMarket:      true,
		IsPlanetary:    planetary,
	}
	f.stations[id] = st
	return st
}

func (f *fakeStore) addListing(st *Station, name string, buy, sell, stock int64) {
	f.listings[st.ID] = append(f.listings[st.ID], Listing{
		StationID:   st.ID,
		CommodityID: int64(len(f.listings[st.ID]) + 1),
		Name:        name,
		BuyPrice:    buy,
		SellPrice:   sell,
		Stock:       stock,
	})
}

func (f *fakeStore) hasStations(locationID int64) bool {
	for _, st := range f.stations {
		if st.LocationID == locationID {
			return true
		}
	}
	return false
}

func (f *fakeStore) FindLocationsNear(_ context.Context, origins []*Location, distance float64, onlyWithStations bool) (map[int64]*Location, error) {
	out := make(map[int64]*Location)
	for _, loc := range f.locations {
		if onlyWithStations && !f.hasStations(loc.ID) {
			continue
		}
		for _, o := range origins {
			if loc.Pos.Dist(o.Pos) <= distance {
				out[loc.ID] = loc
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) FindStationsByLocationIDs(_ context.Context, ids []int64, filter StationFilter) (map[int64]*Station, error) {
	f.mu.Lock()
	f.stationQueries = append(f.stationQueries, append([]int64(nil), ids...))
	f.mu.Unlock()

	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[int64]*Station)
	for _, st := range f.stations {
		if !want[st.LocationID] {
			continue
		}
		switch filter.MinPad {
		case PadLarge:
			if st.PadSize != PadLarge {
				continue
			}
		case PadMedium:
			if st.PadSize != PadLarge && st.PadSize != PadMedium {
				continue
			}
		}
		if st.IsPlanetary && !filter.IncludePlanetary {
			continue
		}
		cp := *st
		out[st.ID] = &cp
	}
	return out, nil
}

func (f *fakeStore) FindStationByName(_ context.Context, query string) (*Station, error) {
	f.mu.Lock()
	f.nameQueries++
	f.mu.Unlock()

	var matches []*Station
	for _, st := range f.stations {
		if system, name, ok := strings.Cut(query, "/"); ok {
			if containsFold(st.Location.Name, system) && containsFold(st.Name, name) {
				matches = append(matches, st)
			}
			continue
		}
		if containsFold(st.Name, query) {
			matches = append(matches, st)
		}
	}
	switch len(matches) {
	case 0:
		return nil, ErrStationNotFound
	case 1:
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, st := range matches {
		names[i] = st.PrettyName()
	}
	return nil, &AmbiguousStationError{Query: query, Matches: names}
}

func (f *fakeStore) FindCommodityListings(_ context.Context, stationID int64, side Side) ([]Listing, error) {
	f.mu.Lock()
	f.listingQueries++
	f.mu.Unlock()

	var out []Listing
	for _, l := range f.listings[stationID] {
		if side == SideBuy && l.BuyPrice > 0 || side == SideSell && l.SellPrice > 0 {
			out = append(out, l)
		}
	}
	return out, nil
}

// lineStore builds three systems on a line, 5 ly apart, each with a station trading
// Gold at buy 10 / sell 20. Alpha also has a planetary outpost with an M pad.
//
//	ALPHA (0) --5ly-- BETA (5) --5ly-- GAMMA (10)
func lineStore() *fakeStore {
	f := newFakeStore()
	alpha := f.addLocation(1, "Alpha", 0)
	beta := f.addLocation(2, "Beta", 5)
	gamma := f.addLocation(3, "Gamma", 10)
	f.addLocation(4, "Empty", 7) // no stations

	for _, st := range []*Station{
		f.addStation(11, alpha, "Alpha Port", PadLarge, false),
		f.addStation(12, alpha, "Alpha Outpost", PadMedium, true),
		f.addStation(21, beta, "Beta Hub", PadLarge, false),
		f.addStation(31, gamma, "Gamma Dock", PadLarge, false),
	} {
		f.addListing(st, "Gold", 10, 20, 100)
	}
	return f
}

func testParams() Params {
	return Params{
		Cap:      10,
		LyPer:    6,
		JumpsPer: 1,
		Filter:   StationFilter{IncludePlanetary: true},
		Timings:  testTimings(),
	}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// ctxStore fails every call once ctx is done, as database/sql does.
type ctxStore struct {
	*fakeStore
	onCall func()
}

func (c *ctxStore) check(ctx context.Context) error {
	if c.onCall != nil {
		c.onCall()
	}
	return ctx.Err()
}

func (c *ctxStore) FindLocationsNear(ctx context.Context, origins []*Location, distance float64, onlyWithStations bool) (map[int64]*Location, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	return c.fakeStore.FindLocationsNear(ctx, origins, distance, onlyWithStations)
}

func (c *ctxStore) FindStationsByLocationIDs(ctx context.Context, ids []int64, filter StationFilter) (map[int64]*Station, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	return c.fakeStore.FindStationsByLocationIDs(ctx, ids, filter)
}

func (c *ctxStore) FindStationByName(ctx context.Context, query string) (*Station, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	return c.fakeStore.FindStationByName(ctx, query)
}

func (c *ctxStore) FindCommodityListings(ctx context.Context, stationID int64, side Side) ([]Listing, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	return c.fakeStore.FindCommodityListings(ctx, stationID, side)
}
