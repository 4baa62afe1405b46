package eddb

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"elite-trader/internal/engine"
)

// commodityFixups maps dump commodity names onto the names used in game.
var commodityFixups = map[string]string{
	"Animalmeat":                  "Animal Meat",
	"CMM Composite":               "C M M Composite",
	"Fruit And Vegetables":        "Fruit and Vegetables",
	"Hazardous Environment Suits": "H.E. Suits",
	"Low Temperature Diamond":     "Low Temperature Diamonds",
	"Non Lethal Weapons":          "Non-lethal Weapons",
	"Skimer Components":           "Skimmer Components",
}

// CommodityName returns the in-game name for a dump commodity name.
func CommodityName(name string) string {
	if fixed, ok := commodityFixups[name]; ok {
		return fixed
	}
	return name
}

type systemRecord struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	NeedsPermit *bool   `json:"needs_permit"`
}

type stationRecord struct {
	ID                int64   `json:"id"`
	SystemID          int64   `json:"system_id"`
	Name              string  `json:"name"`
	MaxLandingPadSize *string `json:"max_landing_pad_size"`
	DistanceToStar    *int64  `json:"distance_to_star"`
	HasMarket         bool    `json:"has_market"`
	IsPlanetary       bool    `json:"is_planetary"`
	UpdatedAt         int64   `json:"updated_at"`
}

type commodityRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// decodeArray streams a top-level JSON array, calling fn for each element. It stops
// with ctx.Err() once ctx is done.
func decodeArray[T any](ctx context.Context, path string, fn func(T) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("%s: expected a JSON array", path)
	}
	for i := 0; dec.More(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var rec T
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("%s: element %d: %w", path, i, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func readSystems(ctx context.Context, path string) ([]engine.Location, error) {
	var out []engine.Location
	err := decodeArray(ctx, path, func(r systemRecord) error {
		out = append(out, engine.Location{
			ID:          r.ID,
			Name:        r.Name,
			Pos:         engine.Vec3{X: r.X, Y: r.Y, Z: r.Z},
			NeedsPermit: r.NeedsPermit != nil && *r.NeedsPermit,
		})
		return nil
	})
	return out, err
}

func padSize(p *string) engine.PadSize {
	if p == nil {
		return engine.PadNone
	}
	switch strings.ToUpper(*p) {
	case "L":
		return engine.PadLarge
	case "M":
		return engine.PadMedium
	}
	return engine.PadNone
}

func readStations(ctx context.Context, path string) ([]engine.Station, error) {
	var out []engine.Station
	err := decodeArray(ctx, path, func(r stationRecord) error {
		st := engine.Station{
			ID:             r.ID,
			LocationID:     r.SystemID,
			Name:           r.Name,
			PadSize:        padSize(r.MaxLandingPadSize),
			DistanceToStar: r.DistanceToStar,
			HasMarket:      r.HasMarket,
			IsPlanetary:    r.IsPlanetary,
		}
		if r.UpdatedAt > 0 {
			st.UpdatedAt = time.Unix(r.UpdatedAt, 0).UTC()
		}
		out = append(out, st)
		return nil
	})
	return out, err
}

func readCommodities(ctx context.Context, path string) (map[int64]string, error) {
	out := make(map[int64]string)
	err := decodeArray(ctx, path, func(r commodityRecord) error {
		out[r.ID] = CommodityName(r.Name)
		return nil
	})
	return out, err
}

// listingRow is one parsed line of listings.csv. Names are resolved by the importer.
type listingRow struct {
	StationID   int64
	CommodityID int64
	BuyPrice    int64
	SellPrice   int64
	Supply      int64
}

var listingColumns = []string{"station_id", "commodity_id", "supply", "buy_price", "sell_price"}

// readListings streams listings.csv, locating columns by header name.
func readListings(r io.Reader, fn func(listingRow) error) error {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("listings header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, c := range listingColumns {
		if _, ok := idx[c]; !ok {
			return fmt.Errorf("listings header: missing column %q", c)
		}
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("listings line %d: %w", line, err)
		}
		var row listingRow
		fields := []*int64{&row.StationID, &row.CommodityID, &row.Supply, &row.BuyPrice, &row.SellPrice}
		for i, c := range listingColumns {
			s := strings.TrimSpace(rec[idx[c]])
			if s == "" {
				continue
			}
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("listings line %d: %s: %w", line, c, err)
			}
			*fields[i] = n
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
