package db

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"elite-trader/internal/engine"

	"github.com/google/uuid"
)

// RouteRecord is one stored search run and its best route.
type RouteRecord struct {
	RunID         string           `json:"run_id"`
	CreatedAt     string           `json:"created_at"`
	From          string           `json:"from"`
	To            string           `json:"to"`
	Hops          int              `json:"hops"`
	SumGain       int64            `json:"sum_gain"`
	FlightTime    float64          `json:"flight_time"`
	GainPerSecond float64          `json:"gain_per_second"`
	Candidates    int              `json:"candidates"`
	DurationMs    int64            `json:"duration_ms"`
	Params        json.RawMessage  `json:"params"`
	Legs          []RouteLegRecord `json:"legs,omitempty"`
}

// RouteLegRecord is one leg of a stored route.
type RouteLegRecord struct {
	Seq        int          `json:"seq"`
	FromID     int64        `json:"from_id"`
	ToID       int64        `json:"to_id"`
	From       string       `json:"from"`
	To         string       `json:"to"`
	Cargo      engine.Cargo `json:"cargo"`
	Gain       int64        `json:"gain"`
	Jumps      int          `json:"jumps"`
	FlightTime float64      `json:"flight_time"`
}

// RunInfo describes the search that produced a route.
type RunInfo struct {
	From       string
	To         string
	Candidates int
	Duration   time.Duration
	Params     any
}

// SaveRoute stores a route with a fresh run id and returns the id. Failures are logged
// and reported as an empty id.
func (d *DB) SaveRoute(ctx context.Context, route *engine.Route, info RunInfo) string {
	if route == nil || route.Len() == 0 {
		return ""
	}
	runID := uuid.NewString()
	paramsJSON, _ := json.Marshal(info.Params)

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("[DB] SaveRoute begin tx: %v", err)
		return ""
	}
	_, err = tx.ExecContext(ctx, d.dialect.rebind(`INSERT INTO route_history (
		run_id, created_at, from_station, to_station, hops,
		sum_gain, flight_time, gain_per_second, candidates, duration_ms, params_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		runID, time.Now().UTC().Format(time.RFC3339), info.From, info.To, route.Len(),
		route.SumGain, route.SumFlightTime, route.GainPerSecond, info.Candidates,
		info.Duration.Milliseconds(), string(paramsJSON),
	)
	if err != nil {
		tx.Rollback()
		log.Printf("[DB] SaveRoute insert run: %v", err)
		return ""
	}

	stmt, err := tx.PrepareContext(ctx, d.dialect.rebind(`INSERT INTO route_legs (
		run_id, seq, from_station_id, to_station_id, from_name, to_name,
		cargo_json, gain, jumps, flight_time
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		tx.Rollback()
		log.Printf("[DB] SaveRoute prepare: %v", err)
		return ""
	}
	defer stmt.Close()

	for i, leg := range route.Legs {
		cargoJSON, _ := json.Marshal(leg.Cargo)
		if _, err := stmt.ExecContext(ctx,
			runID, i, leg.From.ID, leg.To.ID, leg.From.PrettyName(), leg.To.PrettyName(),
			string(cargoJSON), leg.Gain, leg.Jumps, leg.FlightTime,
		); err != nil {
			tx.Rollback()
			log.Printf("[DB] SaveRoute insert leg %d: %v", i, err)
			return ""
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("[DB] SaveRoute commit: %v", err)
		return ""
	}
	return runID
}

// RecentRoutes returns the last limit runs (newest first) with their legs.
func (d *DB) RecentRoutes(ctx context.Context, limit int) []RouteRecord {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.query(ctx,
		`SELECT run_id, created_at, from_station, to_station, hops, sum_gain,
		 flight_time, gain_per_second, candidates, duration_ms, params_json
		 FROM route_history ORDER BY created_at DESC, run_id LIMIT ?`,
		limit,
	)
	if err != nil {
		log.Printf("[DB] RecentRoutes: %v", err)
		return []RouteRecord{}
	}
	var records []RouteRecord
	for rows.Next() {
		var r RouteRecord
		var paramsStr string
		if err := rows.Scan(&r.RunID, &r.CreatedAt, &r.From, &r.To, &r.Hops, &r.SumGain,
			&r.FlightTime, &r.GainPerSecond, &r.Candidates, &r.DurationMs, &paramsStr); err != nil {
			log.Printf("[DB] RecentRoutes scan: %v", err)
			continue
		}
		r.Params = json.RawMessage(paramsStr)
		records = append(records, r)
	}
	rows.Close()

	// Legs are loaded after the run cursor is closed; SQLite runs on one connection.
	for i := range records {
		records[i].Legs = d.RouteLegs(ctx, records[i].RunID)
	}
	if records == nil {
		return []RouteRecord{}
	}
	return records
}

// RouteLegs returns the legs of one stored run in order.
func (d *DB) RouteLegs(ctx context.Context, runID string) []RouteLegRecord {
	rows, err := d.query(ctx,
		`SELECT seq, from_station_id, to_station_id, from_name, to_name,
		 cargo_json, gain, jumps, flight_time
		 FROM route_legs WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		log.Printf("[DB] RouteLegs: %v", err)
		return nil
	}
	defer rows.Close()
	var legs []RouteLegRecord
	for rows.Next() {
		var l RouteLegRecord
		var cargoStr string
		if err := rows.Scan(&l.Seq, &l.FromID, &l.ToID, &l.From, &l.To,
			&cargoStr, &l.Gain, &l.Jumps, &l.FlightTime); err != nil {
			log.Printf("[DB] RouteLegs scan: %v", err)
			continue
		}
		json.Unmarshal([]byte(cargoStr), &l.Cargo)
		legs = append(legs, l)
	}
	return legs
}
