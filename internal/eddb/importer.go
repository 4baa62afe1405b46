// Package eddb imports the eddb.io nightly dumps (systems, stations, commodities and
// market listings) into the market database.
package eddb

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"elite-trader/internal/engine"
	"elite-trader/internal/logger"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is how many rows go into one write transaction.
const DefaultBatchSize = 5000

// Sink receives imported rows. *db.DB implements it.
type Sink interface {
	UpsertSystems(ctx context.Context, systems []engine.Location) error
	UpsertStations(ctx context.Context, stations []engine.Station) error
	UpsertListings(ctx context.Context, listings []engine.Listing) error
	DeleteListingsFor(ctx context.Context, stationIDs []int64) error
}

// Summary counts what an import wrote and skipped.
type Summary struct {
	Systems           int
	Stations          int
	Listings          int
	MissingSystem     int // stations whose system is not in the dump
	DuplicateStations int // stations whose SYSTEM/Station name was already taken
	UnknownStation    int // listings for skipped or unknown stations
	UnknownCommodity  int
	Elapsed           time.Duration
}

// Importer loads a directory of dump files into a Sink.
type Importer struct {
	sink      Sink
	dir       string
	batchSize int
	progress  func(string)
}

// NewImporter creates an importer reading dumps from dir. batchSize <= 0 uses
// DefaultBatchSize; progress may be nil.
func NewImporter(sink Sink, dir string, batchSize int, progress func(string)) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if progress == nil {
		progress = func(string) {}
	}
	return &Importer{sink: sink, dir: dir, batchSize: batchSize, progress: progress}
}

// Run parses the JSON dumps in parallel, then writes systems, stations and listings in
// that order, each in batched transactions.
func (im *Importer) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	var (
		systems     []engine.Location
		stations    []engine.Station
		commodities map[int64]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		systems, err = readSystems(gctx, filepath.Join(im.dir, SystemsFile))
		return err
	})
	g.Go(func() (err error) {
		stations, err = readStations(gctx, filepath.Join(im.dir, StationsFile))
		return err
	})
	g.Go(func() (err error) {
		commodities, err = readCommodities(gctx, filepath.Join(im.dir, CommoditiesFile))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parse dumps: %w", err)
	}
	logger.Info("EDDB", fmt.Sprintf("Parsed %s systems, %s stations, %d commodities",
		humanize.Comma(int64(len(systems))), humanize.Comma(int64(len(stations))), len(commodities)))

	sum := &Summary{}
	im.progress("Inserting systems...")
	systemNames := make(map[int64]string, len(systems))
	for _, s := range systems {
		systemNames[s.ID] = s.Name
	}
	if err := writeBatches(ctx, systems, im.batchSize, im.sink.UpsertSystems); err != nil {
		return nil, err
	}
	sum.Systems = len(systems)

	im.progress("Inserting stations...")
	kept := im.filterStations(stations, systemNames, sum)
	if err := writeBatches(ctx, kept, im.batchSize, im.sink.UpsertStations); err != nil {
		return nil, err
	}
	sum.Stations = len(kept)

	im.progress("Inserting listings...")
	known := make(map[int64]bool, len(kept))
	ids := make([]int64, len(kept))
	for i, st := range kept {
		known[st.ID] = true
		ids[i] = st.ID
	}
	if err := im.sink.DeleteListingsFor(ctx, ids); err != nil {
		return nil, err
	}
	if err := im.importListings(ctx, known, commodities, sum); err != nil {
		return nil, err
	}

	sum.Elapsed = time.Since(start)
	return sum, nil
}

// filterStations drops stations of unknown systems and stations whose "SYSTEM/Station"
// name was already seen, since lookups by name must stay unambiguous.
func (im *Importer) filterStations(stations []engine.Station, systemNames map[int64]string, sum *Summary) []engine.Station {
	seen := make(map[string]bool, len(stations))
	kept := stations[:0:0]
	for _, st := range stations {
		system, ok := systemNames[st.LocationID]
		if !ok {
			sum.MissingSystem++
			continue
		}
		key := strings.ToUpper(system) + "/" + st.Name
		if seen[key] {
			log.Printf("[EDDB] duplicate system/station name %s", key)
			sum.DuplicateStations++
			continue
		}
		seen[key] = true
		kept = append(kept, st)
	}
	if sum.MissingSystem > 0 {
		logger.Warn("EDDB", fmt.Sprintf("Skipped %d stations of unknown systems", sum.MissingSystem))
	}
	return kept
}

func (im *Importer) importListings(ctx context.Context, known map[int64]bool, commodities map[int64]string, sum *Summary) error {
	f, err := os.Open(filepath.Join(im.dir, ListingsFile))
	if err != nil {
		return err
	}
	defer f.Close()

	batch := make([]engine.Listing, 0, im.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.sink.UpsertListings(ctx, batch); err != nil {
			return err
		}
		sum.Listings += len(batch)
		batch = batch[:0]
		if sum.Listings%(im.batchSize*20) == 0 {
			im.progress(fmt.Sprintf("%s listings...", humanize.Comma(int64(sum.Listings))))
		}
		return nil
	}

	err = readListings(f, func(row listingRow) error {
		if !known[row.StationID] {
			sum.UnknownStation++
			return nil
		}
		name, ok := commodities[row.CommodityID]
		if !ok {
			sum.UnknownCommodity++
			return nil
		}
		batch = append(batch, engine.Listing{
			StationID:   row.StationID,
			CommodityID: row.CommodityID,
			Name:        name,
			BuyPrice:    row.BuyPrice,
			SellPrice:   row.SellPrice,
			Stock:       row.Supply,
		})
		if len(batch) >= im.batchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

func writeBatches[T any](ctx context.Context, rows []T, size int, write func(context.Context, []T) error) error {
	for start := 0; start < len(rows); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := write(ctx, rows[start:min(start+size, len(rows))]); err != nil {
			return err
		}
	}
	return nil
}
