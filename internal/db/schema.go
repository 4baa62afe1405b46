package db

import (
	"database/sql/driver"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"elite-trader/internal/engine"
)

// column maps one table column onto a field of T. encode yields the value written to
// the database; decode yields the Scan destination for the same field.
type column[T any] struct {
	name   string
	encode func(*T) any
	decode func(*T) any
}

// table describes how rows of one SQL table map onto T. All statements touching the
// market tables are generated from these descriptions.
type table[T any] struct {
	name     string
	conflict []string // unique key used by upserts
	columns  []column[T]
}

func (t *table[T]) names() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.name
	}
	return out
}

// selectList renders the qualified column list, e.g. "st.id, st.name".
func (t *table[T]) selectList(alias string) string {
	cols := t.names()
	for i := range cols {
		cols[i] = alias + "." + cols[i]
	}
	return strings.Join(cols, ", ")
}

// dests returns Scan destinations for every column of v, in column order.
func (t *table[T]) dests(v *T) []any {
	out := make([]any, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.decode(v)
	}
	return out
}

// values returns the encoded column values of v, in column order.
func (t *table[T]) values(v *T) []any {
	out := make([]any, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.encode(v)
	}
	return out
}

// upsertSQL renders an insert that updates every non-key column on conflict. Both
// SQLite and PostgreSQL accept the ON CONFLICT ... DO UPDATE form.
func (t *table[T]) upsertSQL() string {
	cols := t.names()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	var sets []string
	for _, c := range cols {
		if !slices.Contains(t.conflict, c) {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		t.name, strings.Join(cols, ", "), marks, strings.Join(t.conflict, ", "), strings.Join(sets, ", "))
}

var systemTable = &table[engine.Location]{
	name:     "system",
	conflict: []string{"id"},
	columns: []column[engine.Location]{
		{"id", func(l *engine.Location) any { return l.ID }, func(l *engine.Location) any { return &l.ID }},
		{"name", func(l *engine.Location) any { return l.Name }, func(l *engine.Location) any { return &l.Name }},
		{"position_x", func(l *engine.Location) any { return l.Pos.X }, func(l *engine.Location) any { return &l.Pos.X }},
		{"position_y", func(l *engine.Location) any { return l.Pos.Y }, func(l *engine.Location) any { return &l.Pos.Y }},
		{"position_z", func(l *engine.Location) any { return l.Pos.Z }, func(l *engine.Location) any { return &l.Pos.Z }},
		{"needs_permit", func(l *engine.Location) any { return l.NeedsPermit }, func(l *engine.Location) any { return &l.NeedsPermit }},
	},
}

var stationTable = &table[engine.Station]{
	name:     "station",
	conflict: []string{"id"},
	columns: []column[engine.Station]{
		{"id", func(s *engine.Station) any { return s.ID }, func(s *engine.Station) any { return &s.ID }},
		{"system_id", func(s *engine.Station) any { return s.LocationID }, func(s *engine.Station) any { return &s.LocationID }},
		{"name", func(s *engine.Station) any { return s.Name }, func(s *engine.Station) any { return &s.Name }},
		{"max_landing_pad_size", func(s *engine.Station) any { return padValue(s.PadSize) }, func(s *engine.Station) any { return (*padScanner)(&s.PadSize) }},
		{"distance_to_star", func(s *engine.Station) any { return nullableInt(s.DistanceToStar) }, func(s *engine.Station) any { return &s.DistanceToStar }},
		{"has_market", func(s *engine.Station) any { return s.HasMarket }, func(s *engine.Station) any { return &s.HasMarket }},
		{"is_planetary", func(s *engine.Station) any { return s.IsPlanetary }, func(s *engine.Station) any { return &s.IsPlanetary }},
		{"updated_at", func(s *engine.Station) any { return timeValue(s.UpdatedAt) }, func(s *engine.Station) any { return (*timeScanner)(&s.UpdatedAt) }},
	},
}

var listingTable = &table[engine.Listing]{
	name:     "listing",
	conflict: []string{"station_id", "name"},
	columns: []column[engine.Listing]{
		{"station_id", func(l *engine.Listing) any { return l.StationID }, func(l *engine.Listing) any { return &l.StationID }},
		{"commodity_id", func(l *engine.Listing) any { return l.CommodityID }, func(l *engine.Listing) any { return &l.CommodityID }},
		{"name", func(l *engine.Listing) any { return l.Name }, func(l *engine.Listing) any { return &l.Name }},
		{"buy_price", func(l *engine.Listing) any { return nullIfZero(l.BuyPrice) }, func(l *engine.Listing) any { return (*zeroIfNull)(&l.BuyPrice) }},
		{"sell_price", func(l *engine.Listing) any { return nullIfZero(l.SellPrice) }, func(l *engine.Listing) any { return (*zeroIfNull)(&l.SellPrice) }},
		{"stock", func(l *engine.Listing) any { return l.Stock }, func(l *engine.Listing) any { return (*zeroIfNull)(&l.Stock) }},
	},
}

// Prices of 0 mean "not traded" and are stored as NULL.
func nullIfZero(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

type zeroIfNull int64

func (z *zeroIfNull) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*z = 0
	case int64:
		*z = zeroIfNull(v)
	case float64:
		*z = zeroIfNull(v)
	case []byte:
		return z.parse(string(v))
	case string:
		return z.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into int64", src)
	}
	return nil
}

func (z *zeroIfNull) parse(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*z = zeroIfNull(n)
	return nil
}

func padValue(p engine.PadSize) string {
	if p == "" {
		return string(engine.PadNone)
	}
	return string(p)
}

type padScanner engine.PadSize

func (p *padScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = padScanner(engine.PadNone)
	case string:
		*p = padScanner(v)
	case []byte:
		*p = padScanner(v)
	default:
		return fmt.Errorf("cannot scan %T into pad size", src)
	}
	return nil
}

// Timestamps are stored as RFC 3339 text, like the rest of the schema's history tables.
func timeValue(t time.Time) driver.Value {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

type timeScanner time.Time

func (ts *timeScanner) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*ts = timeScanner(time.Time{})
		return nil
	case time.Time:
		*ts = timeScanner(v)
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*ts = timeScanner(t)
	return nil
}
