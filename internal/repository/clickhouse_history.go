package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	pkgch "GridCast/pkg/clickhouse"
	applogger "GridCast/pkg/logger"
)

// CHHistoryStore keeps hourly actuals in a ReplacingMergeTree keyed on ts,
// so re-sent hours replace older rows at merge time; reads use FINAL.
type CHHistoryStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
	now   func() time.Time
}

func NewCHHistoryStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHHistoryStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHHistoryStore{db: ch.DB(), table: table, l: l, now: time.Now}
}

// Schema returns the DDL for the actuals table.
func (s *CHHistoryStore) Schema() []string {
	return []string{fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			ts                   DateTime('UTC'),
			load                 Float64,
			temperature          Nullable(Float64),
			humidity             Nullable(Float64),
			apparent_temperature Nullable(Float64),
			solar_radiation      Nullable(Float64),
			precipitation        Nullable(Float64),
			wind_speed           Nullable(Float64),
			ingested_at          DateTime64(3, 'UTC')
		)
		ENGINE = ReplacingMergeTree(ingested_at)
		ORDER BY ts`, s.table)}
}

const historyColumns = "ts, load, temperature, humidity, apparent_temperature, solar_radiation, precipitation, wind_speed"

func (s *CHHistoryStore) GetRange(ctx context.Context, start, end time.Time) ([]models.ObservationPoint, error) {
	began := time.Now()
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE ts >= ? AND ts <= ? ORDER BY ts ASC`, historyColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, start.UTC(), end.UTC())
	if err != nil {
		s.l.Error("clickhouse get_range query error",
			applogger.String("table", s.table),
			applogger.Time("start", start),
			applogger.Time("end", end),
			applogger.Error(err))
		return nil, fmt.Errorf("get range: %w", err)
	}
	defer rows.Close()

	out := make([]models.ObservationPoint, 0, int(end.Sub(start)/time.Hour)+1)
	for rows.Next() {
		var (
			p  models.ObservationPoint
			w  [6]sql.NullFloat64
			ts time.Time
		)
		if err := rows.Scan(&ts, &p.Load, &w[0], &w[1], &w[2], &w[3], &w[4], &w[5]); err != nil {
			return nil, fmt.Errorf("scan actual: %w", err)
		}
		p.Timestamp = ts.UTC()
		p.Weather = weatherFromNullable(w)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse get_range ok",
		applogger.Int("rows", len(out)),
		applogger.Duration("elapsed", time.Since(began)))
	return out, nil
}

// weatherFromNullable returns nil unless temperature was stored; other
// missing columns read as zero.
func weatherFromNullable(w [6]sql.NullFloat64) *models.WeatherFields {
	if !w[0].Valid {
		return nil
	}
	return &models.WeatherFields{
		Temperature:         w[0].Float64,
		Humidity:            w[1].Float64,
		ApparentTemperature: w[2].Float64,
		SolarRadiation:      w[3].Float64,
		Precipitation:       w[4].Float64,
		WindSpeed:           w[5].Float64,
		Source:              models.WeatherSourceObserved,
	}
}

func (s *CHHistoryStore) LastAvailableTimestamp(ctx context.Context) (time.Time, error) {
	var (
		last time.Time
		n    uint64
	)
	q := fmt.Sprintf(`SELECT max(ts), count() FROM %s`, s.table)
	if err := s.db.QueryRowContext(ctx, q).Scan(&last, &n); err != nil {
		return time.Time{}, fmt.Errorf("last available: %w", err)
	}
	if n == 0 {
		return time.Time{}, domrepo.ErrNoHistory
	}
	return last.UTC(), nil
}

// AppendActuals writes multi-row VALUES batches of up to 2000 rows.
func (s *CHHistoryStore) AppendActuals(ctx context.Context, points []models.ObservationPoint) error {
	const chunkSize = 2000
	ingested := s.now().UTC()
	for from := 0; from < len(points); from += chunkSize {
		to := from + chunkSize
		if to > len(points) {
			to = len(points)
		}
		values := make([]string, 0, to-from)
		args := make([]interface{}, 0, (to-from)*9)
		for _, p := range points[from:to] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, p.Timestamp.UTC(), p.Load)
			args = append(args, nullableWeather(p.Weather)...)
			args = append(args, ingested)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s, ingested_at) VALUES %s", s.table, historyColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert actuals: %w", err)
		}
	}
	return nil
}

func nullableWeather(w *models.WeatherFields) []interface{} {
	if w == nil {
		return []interface{}{nil, nil, nil, nil, nil, nil}
	}
	return []interface{}{w.Temperature, w.Humidity, w.ApparentTemperature, w.SolarRadiation, w.Precipitation, w.WindSpeed}
}

func (s *CHHistoryStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHHistoryStore) Close() error { return nil }

var _ domrepo.HistoryStore = (*CHHistoryStore)(nil)
