package db

import (
	"context"
	"fmt"
	"log"
	"strings"

	"elite-trader/internal/engine"
)

// originsPerQuery bounds how many origin systems go into one proximity query, keeping
// the placeholder count well inside both drivers' limits.
const originsPerQuery = 200

// idsPerQuery bounds the size of IN (...) lists.
const idsPerQuery = 500

var _ engine.Store = (*DB)(nil)

// FindLocationsNear returns every system within distance of any origin. Each batch is a
// bounding box prefilter plus an OR of exact squared-distance predicates.
func (d *DB) FindLocationsNear(ctx context.Context, origins []*engine.Location, distance float64, onlyWithStations bool) (map[int64]*engine.Location, error) {
	out := make(map[int64]*engine.Location)
	for start := 0; start < len(origins); start += originsPerQuery {
		batch := origins[start:min(start+originsPerQuery, len(origins))]
		if err := d.findLocationsNearBatch(ctx, batch, distance, onlyWithStations, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *DB) findLocationsNearBatch(ctx context.Context, origins []*engine.Location, distance float64, onlyWithStations bool, out map[int64]*engine.Location) error {
	lo, hi := origins[0].Pos, origins[0].Pos
	for _, o := range origins[1:] {
		lo.X, lo.Y, lo.Z = min(lo.X, o.Pos.X), min(lo.Y, o.Pos.Y), min(lo.Z, o.Pos.Z)
		hi.X, hi.Y, hi.Z = max(hi.X, o.Pos.X), max(hi.Y, o.Pos.Y), max(hi.Z, o.Pos.Z)
	}
	args := []any{
		lo.X - distance, hi.X + distance,
		lo.Y - distance, hi.Y + distance,
		lo.Z - distance, hi.Z + distance,
	}
	preds := make([]string, len(origins))
	for i, o := range origins {
		preds[i] = "((s.position_x - ?) * (s.position_x - ?) + (s.position_y - ?) * (s.position_y - ?) + (s.position_z - ?) * (s.position_z - ?) <= ?)"
		args = append(args, o.Pos.X, o.Pos.X, o.Pos.Y, o.Pos.Y, o.Pos.Z, o.Pos.Z, distance*distance)
	}

	q := "SELECT " + systemTable.selectList("s") + " FROM system s" +
		" WHERE s.position_x BETWEEN ? AND ? AND s.position_y BETWEEN ? AND ? AND s.position_z BETWEEN ? AND ?" +
		" AND (" + strings.Join(preds, " OR ") + ")"
	if onlyWithStations {
		q += " AND EXISTS (SELECT 1 FROM station st WHERE st.system_id = s.id)"
	}

	rows, err := d.query(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("find locations near: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		loc := new(engine.Location)
		if err := rows.Scan(systemTable.dests(loc)...); err != nil {
			return fmt.Errorf("scan location: %w", err)
		}
		out[loc.ID] = loc
	}
	return rows.Err()
}

// FindStationsByLocationIDs returns the stations of the given systems that pass filter.
// Location is left unset; callers attach the systems they already hold.
func (d *DB) FindStationsByLocationIDs(ctx context.Context, ids []int64, filter engine.StationFilter) (map[int64]*engine.Station, error) {
	out := make(map[int64]*engine.Station)
	var cond []string
	var condArgs []any
	switch filter.MinPad {
	case engine.PadLarge:
		cond = append(cond, "st.max_landing_pad_size = ?")
		condArgs = append(condArgs, string(engine.PadLarge))
	case engine.PadMedium:
		cond = append(cond, "st.max_landing_pad_size IN (?, ?)")
		condArgs = append(condArgs, string(engine.PadLarge), string(engine.PadMedium))
	}
	if !filter.IncludePlanetary {
		cond = append(cond, "st.is_planetary = ?")
		condArgs = append(condArgs, false)
	}

	for start := 0; start < len(ids); start += idsPerQuery {
		batch := ids[start:min(start+idsPerQuery, len(ids))]
		args := make([]any, 0, len(batch)+len(condArgs))
		for _, id := range batch {
			args = append(args, id)
		}
		args = append(args, condArgs...)

		q := "SELECT " + stationTable.selectList("st") + " FROM station st WHERE st.system_id IN (" + placeholders(len(batch)) + ")"
		for _, c := range cond {
			q += " AND " + c
		}
		rows, err := d.query(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("find stations: %w", err)
		}
		for rows.Next() {
			st := new(engine.Station)
			if err := rows.Scan(stationTable.dests(st)...); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan station: %w", err)
			}
			out[st.ID] = st
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("find stations: %w", err)
		}
	}
	return out, nil
}

// FindStationByName resolves "SYSTEM/Station" (both parts matched by case-insensitive
// substring) or a bare station name fragment to exactly one station.
func (d *DB) FindStationByName(ctx context.Context, query string) (*engine.Station, error) {
	q := "SELECT " + stationTable.selectList("st") + ", " + systemTable.selectList("s") +
		" FROM station st JOIN system s ON st.system_id = s.id WHERE "
	var args []any
	if system, station, ok := strings.Cut(query, "/"); ok {
		q += d.dialect.ilike("s.name") + " AND " + d.dialect.ilike("st.name")
		args = append(args, "%"+system+"%", "%"+station+"%")
	} else {
		q += d.dialect.ilike("st.name")
		args = append(args, "%"+query+"%")
	}
	q += " ORDER BY st.id"

	rows, err := d.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find station %q: %w", query, err)
	}
	defer rows.Close()
	var matches []*engine.Station
	for rows.Next() {
		st, loc := new(engine.Station), new(engine.Location)
		if err := rows.Scan(append(stationTable.dests(st), systemTable.dests(loc)...)...); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		st.Location = loc
		matches = append(matches, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find station %q: %w", query, err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w for '%s'", engine.ErrStationNotFound, query)
	case 1:
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, st := range matches {
		names[i] = st.PrettyName()
	}
	return nil, &engine.AmbiguousStationError{Query: query, Matches: names}
}

// FindCommodityListings returns the listings of a station that carry a price for side.
func (d *DB) FindCommodityListings(ctx context.Context, stationID int64, side engine.Side) ([]engine.Listing, error) {
	price := "buy_price"
	if side == engine.SideSell {
		price = "sell_price"
	}
	q := "SELECT " + listingTable.selectList("l") + " FROM listing l WHERE l.station_id = ? AND l." +
		price + " IS NOT NULL AND l." + price + " > 0 ORDER BY l.name"
	rows, err := d.query(ctx, q, stationID)
	if err != nil {
		return nil, fmt.Errorf("listings for station %d: %w", stationID, err)
	}
	defer rows.Close()
	var out []engine.Listing
	for rows.Next() {
		var l engine.Listing
		if err := rows.Scan(listingTable.dests(&l)...); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// upsert writes rows of one table in a single transaction.
func upsert[T any](ctx context.Context, d *DB, t *table[T], rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert %s begin tx: %w", t.name, err)
	}
	stmt, err := tx.PrepareContext(ctx, d.dialect.rebind(t.upsertSQL()))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("upsert %s prepare: %w", t.name, err)
	}
	defer stmt.Close()

	for i := range rows {
		if _, err := stmt.ExecContext(ctx, t.values(&rows[i])...); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s row %d: %w", t.name, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert %s commit: %w", t.name, err)
	}
	return nil
}

// UpsertSystems inserts or updates systems by id.
func (d *DB) UpsertSystems(ctx context.Context, systems []engine.Location) error {
	return upsert(ctx, d, systemTable, systems)
}

// UpsertStations inserts or updates stations by id.
func (d *DB) UpsertStations(ctx context.Context, stations []engine.Station) error {
	return upsert(ctx, d, stationTable, stations)
}

// UpsertListings inserts or updates listings by (station, commodity name). Zero prices
// are stored as NULL.
func (d *DB) UpsertListings(ctx context.Context, listings []engine.Listing) error {
	return upsert(ctx, d, listingTable, listings)
}

// DeleteListingsFor removes all listings of the given stations, so a fresh snapshot
// does not keep commodities a station stopped trading.
func (d *DB) DeleteListingsFor(ctx context.Context, stationIDs []int64) error {
	for start := 0; start < len(stationIDs); start += idsPerQuery {
		batch := stationIDs[start:min(start+idsPerQuery, len(stationIDs))]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		res, err := d.exec(ctx, "DELETE FROM listing WHERE station_id IN ("+placeholders(len(batch))+")", args...)
		if err != nil {
			return fmt.Errorf("delete listings: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			log.Printf("[DB] Cleared %d stale listings", n)
		}
	}
	return nil
}
