package engine

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Vec3 is a position in light years.
type Vec3 struct {
	X, Y, Z float64
}

// Dist returns the euclidean distance between two positions.
func (v Vec3) Dist(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Location is a star system.
type Location struct {
	ID          int64
	Name        string
	Pos         Vec3
	NeedsPermit bool
}

// PadSize is the largest landing pad a station offers.
type PadSize string

const (
	PadLarge  PadSize = "L"
	PadMedium PadSize = "M"
	PadNone   PadSize = "None"
)

// Station is a dockable market inside a Location.
type Station struct {
	ID             int64
	LocationID     int64
	Location       *Location // resolved by the store
	Name           string
	PadSize        PadSize
	DistanceToStar *int64 // light seconds; nil = unknown
	HasMarket      bool
	IsPlanetary    bool
	UpdatedAt      time.Time
}

// PrettyName renders "SYSTEM/Station".
func (s *Station) PrettyName() string {
	if s == nil {
		return "<nil>"
	}
	system := fmt.Sprintf("#%d", s.LocationID)
	if s.Location != nil {
		system = s.Location.Name
	}
	return strings.ToUpper(system) + "/" + s.Name
}

// Side selects which price column of a listing matters.
type Side int

const (
	SideBuy  Side = iota // we buy here: listing must have a buy price
	SideSell             // we sell here: listing must have a sell price
)

func (s Side) String() string {
	if s == SideSell {
		return "sell"
	}
	return "buy"
}

// Listing is one commodity row at a station. A zero price means the station does not
// trade the commodity in that direction.
type Listing struct {
	StationID   int64
	CommodityID int64
	Name        string
	BuyPrice    int64
	SellPrice   int64
	Stock       int64
}

// CargoItem is a quantity of one commodity carried on a leg.
type CargoItem struct {
	Commodity string
	Quantity  int64
}

// Cargo is an ordered commodity → quantity list.
type Cargo []CargoItem

// Merge returns a new Cargo with quantities of o added; new commodities are appended in
// their order in o.
func (c Cargo) Merge(o Cargo) Cargo {
	out := slices.Clone(c)
	for _, item := range o {
		if i := slices.IndexFunc(out, func(x CargoItem) bool { return x.Commodity == item.Commodity }); i >= 0 {
			out[i].Quantity += item.Quantity
			continue
		}
		out = append(out, item)
	}
	return out
}

// Total is the sum of quantities.
func (c Cargo) Total() int64 {
	var n int64
	for _, item := range c {
		n += item.Quantity
	}
	return n
}

// Quantity returns the amount carried of one commodity.
func (c Cargo) Quantity(commodity string) int64 {
	for _, item := range c {
		if item.Commodity == commodity {
			return item.Quantity
		}
	}
	return 0
}

// Equal compares two cargos as multisets, ignoring order.
func (c Cargo) Equal(o Cargo) bool {
	if len(c) != len(o) {
		return false
	}
	for _, item := range c {
		if o.Quantity(item.Commodity) != item.Quantity {
			return false
		}
	}
	return true
}

func (c Cargo) String() string {
	parts := make([]string, len(c))
	for i, item := range c {
		parts[i] = fmt.Sprintf("%s: %d", item.Commodity, item.Quantity)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// TradeLeg is a single buy-at-From, sell-at-To trade.
type TradeLeg struct {
	From       *Station
	To         *Station
	Cargo      Cargo
	Gain       int64 // credits
	Stock      int64 // units moved
	Jumps      int
	Trades     int // distinct commodities
	FlightTime float64
}

func (l *TradeLeg) String() string {
	return fmt.Sprintf("%s -> %s [%s +%s]",
		l.From.PrettyName(), l.To.PrettyName(), l.Cargo, humanize.Comma(l.Gain))
}

// Route is a sequence of legs, each starting where the previous one ended.
type Route struct {
	Legs          []*TradeLeg
	SumGain       int64
	SumFlightTime float64
	GainPerSecond float64
}

// NewRoute computes the aggregates for legs.
func NewRoute(legs []*TradeLeg) *Route {
	r := &Route{Legs: legs}
	for _, l := range legs {
		r.SumGain += l.Gain
		r.SumFlightTime += l.FlightTime
	}
	if r.SumFlightTime != 0 {
		r.GainPerSecond = float64(r.SumGain) / r.SumFlightTime
	}
	return r
}

// Len is the number of legs.
func (r *Route) Len() int {
	return len(r.Legs)
}

// BetterThan reports whether r has strictly higher gain per second than o. Any route
// beats nil.
func (r *Route) BetterThan(o *Route) bool {
	if o == nil {
		return true
	}
	return r.GainPerSecond > o.GainPerSecond
}

// Valid reports whether the route takes longer than minTime. minTime <= 0 disables the
// check.
func (r *Route) Valid(minTime float64) bool {
	if minTime <= 0 {
		return true
	}
	return r.SumFlightTime > minTime
}

func (r *Route) String() string {
	lines := make([]string, len(r.Legs))
	for i, l := range r.Legs {
		lines[i] = l.String()
	}
	return strings.Join(lines, "\n ") + fmt.Sprintf(
		"\n  -- gain +%scr over %ss estimated: %scr/s",
		humanize.Comma(r.SumGain),
		humanize.Comma(int64(r.SumFlightTime)),
		humanize.Comma(int64(r.GainPerSecond)),
	)
}
