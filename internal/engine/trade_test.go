package engine

import (
	"context"
	"math"
	"testing"

	"elite-trader/internal/cache"
	"elite-trader/internal/config"
)

func testTimings() config.Timings {
	return config.Default().Timings
}

func testStations() (*Station, *Station) {
	a := &Location{ID: 1, Name: "Alpha"}
	b := &Location{ID: 2, Name: "Beta", Pos: Vec3{X: 5}}
	return &Station{ID: 10, LocationID: 1, Location: a, Name: "Port A"},
		&Station{ID: 20, LocationID: 2, Location: b, Name: "Port B"}
}

func TestEvaluateTrade_CapacityBound(t *testing.T) {
	from, to := testStations()
	buys := []Listing{{Name: "Gold", BuyPrice: 10, Stock: 100}}
	sells := []Listing{{Name: "Gold", SellPrice: 15}}

	leg := EvaluateTrade(from, to, buys, sells, 50, nil, 1, testTimings())
	if leg == nil {
		t.Fatal("expected a leg")
	}
	if got := leg.Cargo.Quantity("Gold"); got != 50 {
		t.Errorf("Gold quantity = %d, want 50", got)
	}
	if leg.Gain != 250 {
		t.Errorf("Gain = %d, want 250", leg.Gain)
	}
	if leg.Stock != 50 || leg.Trades != 1 || leg.Jumps != 1 {
		t.Errorf("Stock/Trades/Jumps = %d/%d/%d, want 50/1/1", leg.Stock, leg.Trades, leg.Jumps)
	}
	if leg.FlightTime != EstimateSeconds(leg, testTimings()) {
		t.Errorf("FlightTime = %v, want the estimate", leg.FlightTime)
	}
}

func TestEvaluateTrade_StockBoundBelowCapacity(t *testing.T) {
	from, to := testStations()
	buys := []Listing{{Name: "Gold", BuyPrice: 10, Stock: 50}}
	sells := []Listing{{Name: "Gold", SellPrice: 15}}

	leg := EvaluateTrade(from, to, buys, sells, 100, nil, 1, testTimings())
	if leg == nil {
		t.Fatal("expected a leg")
	}
	if got := leg.Cargo.Quantity("Gold"); got != 50 {
		t.Errorf("Gold quantity = %d, want 50", got)
	}
	if leg.Gain != 250 || leg.Stock != 50 {
		t.Errorf("Gain/Stock = %d/%d, want 250/50", leg.Gain, leg.Stock)
	}
}

func TestEvaluateTrade_StockBound(t *testing.T) {
	from, to := testStations()
	buys := []Listing{{Name: "Gold", BuyPrice: 10, Stock: 7}}
	sells := []Listing{{Name: "Gold", SellPrice: 15}}

	leg := EvaluateTrade(from, to, buys, sells, 50, nil, 1, testTimings())
	if leg == nil || leg.Cargo.Total() != 7 || leg.Gain != 35 {
		t.Fatalf("leg = %+v, want 7 units for 35", leg)
	}
}

func TestEvaluateTrade_FillsWithSecondCommodity(t *testing.T) {
	from, to := testStations()
	buys := []Listing{
		{Name: "Beer", BuyPrice: 5, Stock: 200},
		{Name: "Aluminium", BuyPrice: 10, Stock: 30},
	}
	sells := []Listing{
		{Name: "Beer", SellPrice: 8},
		{Name: "Aluminium", SellPrice: 20},
	}

	// Round one ties at 300 (30*10 vs 100*3); the name sorting first wins.
	leg := EvaluateTrade(from, to, buys, sells, 100, nil, 1, testTimings())
	if leg == nil {
		t.Fatal("expected a leg")
	}
	want := Cargo{{Commodity: "Aluminium", Quantity: 30}, {Commodity: "Beer", Quantity: 70}}
	if !leg.Cargo.Equal(want) {
		t.Errorf("Cargo = %s, want %s", leg.Cargo, want)
	}
	if leg.Cargo[0].Commodity != "Aluminium" {
		t.Errorf("first pick = %s, want Aluminium", leg.Cargo[0].Commodity)
	}
	if leg.Gain != 510 {
		t.Errorf("Gain = %d, want 510", leg.Gain)
	}
	if leg.Trades != 2 {
		t.Errorf("Trades = %d, want 2", leg.Trades)
	}
}

func TestEvaluateTrade_AtMostFourCommodities(t *testing.T) {
	from, to := testStations()
	var buys, sells []Listing
	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		buys = append(buys, Listing{Name: name, BuyPrice: 1, Stock: 1})
		sells = append(sells, Listing{Name: name, SellPrice: 2})
	}
	leg := EvaluateTrade(from, to, buys, sells, 100, nil, 1, testTimings())
	if leg == nil {
		t.Fatal("expected a leg")
	}
	if len(leg.Cargo) != MaxCommoditiesPerLeg {
		t.Errorf("commodities = %d, want %d", len(leg.Cargo), MaxCommoditiesPerLeg)
	}
	if leg.Cargo.Total() > 100 {
		t.Errorf("cargo %d exceeds capacity", leg.Cargo.Total())
	}
}

func TestEvaluateTrade_ExcludeAndUnprofitable(t *testing.T) {
	from, to := testStations()
	buys := []Listing{
		{Name: "Slaves", BuyPrice: 10, Stock: 100},
		{Name: "Tea", BuyPrice: 30, Stock: 100},
	}
	sells := []Listing{
		{Name: "Slaves", SellPrice: 100},
		{Name: "Tea", SellPrice: 25},
	}
	if leg := EvaluateTrade(from, to, buys, sells, 10, map[string]bool{"Slaves": true}, 1, testTimings()); leg != nil {
		t.Errorf("expected nil leg, got %s", leg)
	}
	if leg := EvaluateTrade(from, to, buys, sells, 10, nil, 1, testTimings()); leg == nil || leg.Cargo.Quantity("Slaves") != 10 {
		t.Errorf("expected Slaves without exclusion, got %v", leg)
	}
}

func TestEvaluateTrade_Invariants(t *testing.T) {
	from, to := testStations()
	buys := []Listing{
		{Name: "Gold", BuyPrice: 9000, Stock: 12},
		{Name: "Silver", BuyPrice: 4000, Stock: 40},
		{Name: "Water", BuyPrice: 100, Stock: 0},
		{Name: "Tea", BuyPrice: 1500, Stock: 500},
	}
	sells := []Listing{
		{Name: "Gold", SellPrice: 9800},
		{Name: "Silver", SellPrice: 4300},
		{Name: "Water", SellPrice: 5000},
		{Name: "Tea", SellPrice: 1600},
	}
	stock := map[string]int64{"Gold": 12, "Silver": 40, "Water": 0, "Tea": 500}
	for _, capacity := range []int64{1, 10, 50, 100, 1000} {
		leg := EvaluateTrade(from, to, buys, sells, capacity, nil, 2, testTimings())
		if leg == nil {
			t.Fatalf("cap %d: expected a leg", capacity)
		}
		if leg.Cargo.Total() > capacity {
			t.Errorf("cap %d: cargo %d over capacity", capacity, leg.Cargo.Total())
		}
		if leg.Gain < 0 {
			t.Errorf("cap %d: negative gain %d", capacity, leg.Gain)
		}
		for _, item := range leg.Cargo {
			if item.Quantity > stock[item.Commodity] {
				t.Errorf("cap %d: %s %d over stock %d", capacity, item.Commodity, item.Quantity, stock[item.Commodity])
			}
		}
	}
}

func TestEstimateSeconds(t *testing.T) {
	tm := testTimings()
	dist := int64(1000)
	leg := &TradeLeg{Trades: 2, Jumps: 3, To: &Station{DistanceToStar: &dist}}

	want := tm.PerTrade*2 + tm.Leave + (tm.Hyperspace+tm.Cooldown)*3 +
		tm.ApproachBase + ((math.Log(1000)-1)/5)*tm.ApproachLogScale + tm.ApproachPerLs*1000 +
		tm.LandStation + tm.InStation + tm.PerTrade*2
	if got := EstimateSeconds(leg, tm); math.Abs(got-want) > 1e-9 {
		t.Errorf("EstimateSeconds = %v, want %v", got, want)
	}
	if a, b := EstimateSeconds(leg, tm), EstimateSeconds(leg, tm); a != b {
		t.Errorf("not deterministic: %v != %v", a, b)
	}

	planetary := &TradeLeg{Trades: 2, Jumps: 3, To: &Station{DistanceToStar: &dist, IsPlanetary: true}}
	if diff := EstimateSeconds(planetary, tm) - EstimateSeconds(leg, tm); math.Abs(diff-(tm.LandPlanet-tm.LandStation)) > 1e-9 {
		t.Errorf("planetary landing diff = %v, want %v", diff, tm.LandPlanet-tm.LandStation)
	}

	hundred := int64(100)
	unknown := &TradeLeg{Trades: 1, Jumps: 1, To: &Station{}}
	known := &TradeLeg{Trades: 1, Jumps: 1, To: &Station{DistanceToStar: &hundred}}
	if EstimateSeconds(unknown, tm) != EstimateSeconds(known, tm) {
		t.Error("unknown distance should be treated as 100 ls")
	}
}

func TestEvaluator_CachesListings(t *testing.T) {
	f := lineStore()
	listings := cache.New[ListingKey, []Listing]("listings", 100)
	eval := NewEvaluator(f, listings, testParams())
	from, to := f.stations[11], f.stations[21]

	for i := 0; i < 3; i++ {
		leg, err := eval.BestTrade(context.Background(), from, to, 1)
		if err != nil {
			t.Fatal(err)
		}
		if leg == nil || leg.Gain != 100 {
			t.Fatalf("leg = %v, want gain 100", leg)
		}
	}
	if f.listingQueries != 2 {
		t.Errorf("listing queries = %d, want 2", f.listingQueries)
	}
}
