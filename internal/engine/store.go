package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrStationNotFound is returned when a location string matches no station.
var ErrStationNotFound = errors.New("no station found")

// AmbiguousStationError is returned when a location string matches several stations.
type AmbiguousStationError struct {
	Query   string
	Matches []string // "SYSTEM/Station"
}

func (e *AmbiguousStationError) Error() string {
	return fmt.Sprintf("multiple stations matched '%s': %s", e.Query, strings.Join(e.Matches, ", "))
}

// StationFilter restricts which stations are attached to reachable systems.
type StationFilter struct {
	MinPad           PadSize // "" = any, PadMedium = M or L, PadLarge = L only
	IncludePlanetary bool
}

// Store is the read side of the market database the search runs against.
type Store interface {
	// FindLocationsNear returns every system within distance of any origin. With
	// onlyWithStations, systems without a station are left out.
	FindLocationsNear(ctx context.Context, origins []*Location, distance float64, onlyWithStations bool) (map[int64]*Location, error)
	// FindStationsByLocationIDs returns stations (keyed by station id) in the given systems.
	FindStationsByLocationIDs(ctx context.Context, ids []int64, filter StationFilter) (map[int64]*Station, error)
	// FindStationByName resolves "SYSTEM/Station" or a station name fragment to exactly
	// one station with its Location set.
	FindStationByName(ctx context.Context, query string) (*Station, error)
	// FindCommodityListings returns the listings with a non-absent price for side.
	FindCommodityListings(ctx context.Context, stationID int64, side Side) ([]Listing, error)
}
