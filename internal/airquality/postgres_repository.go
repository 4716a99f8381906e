package airquality

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of Store backed by the
// aqi_hourly_data table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL hourly store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ReadWindow returns the records in [from, from+hours) ordered by hour.
func (s *PostgresStore) ReadWindow(ctx context.Context, lat, lon float64, from time.Time, hours int) ([]HourlyRecord, error) {
	start, end, err := windowBounds(from, hours)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			latitude, longitude, location_name,
			hour_timestamp, unix_timestamp,
			pm2_5, pm10, no2, so2, co, o3, no, nh3,
			indian_aqi, dominant_pollutant, aqi_category,
			sub_index_pm25, sub_index_pm10, sub_index_no2,
			sub_index_so2, sub_index_co, sub_index_o3,
			data_source
		FROM aqi_hourly_data
		WHERE latitude = $1 AND longitude = $2
			AND hour_timestamp >= $3 AND hour_timestamp < $4
		ORDER BY hour_timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, lat, lon, start, end)
	if err != nil {
		return nil, fmt.Errorf("query hourly window: %w", err)
	}
	defer rows.Close()

	records := make([]HourlyRecord, 0, hours)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hourly record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// FindMissingHours returns every hour in [from, to) with no stored record.
func (s *PostgresStore) FindMissingHours(ctx context.Context, lat, lon float64, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT hour_timestamp
		FROM aqi_hourly_data
		WHERE latitude = $1 AND longitude = $2
			AND hour_timestamp >= $3 AND hour_timestamp < $4
	`

	rows, err := s.pool.Query(ctx, query, lat, lon, TruncateHour(from), TruncateHour(to))
	if err != nil {
		return nil, fmt.Errorf("query stored hours: %w", err)
	}
	defer rows.Close()

	stored := make(map[int64]struct{})
	for rows.Next() {
		var hour time.Time
		if err := rows.Scan(&hour); err != nil {
			return nil, err
		}
		stored[TruncateHour(hour).Unix()] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return missingFrom(from, to, stored), nil
}

// UpsertRecords stores records in one transaction using a batch of upserts.
func (s *PostgresStore) UpsertRecords(ctx context.Context, records []HourlyRecord) (bool, error) {
	if len(records) == 0 {
		return false, ErrNoRecords
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO aqi_hourly_data (
			latitude, longitude, location_name,
			hour_timestamp, unix_timestamp,
			pm2_5, pm10, no2, so2, co, o3, no, nh3,
			indian_aqi, dominant_pollutant, aqi_category,
			sub_index_pm25, sub_index_pm10, sub_index_no2,
			sub_index_so2, sub_index_co, sub_index_o3,
			data_source, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, NOW()
		)
		ON CONFLICT (latitude, longitude, hour_timestamp) DO UPDATE SET
			location_name = COALESCE(EXCLUDED.location_name, aqi_hourly_data.location_name),
			unix_timestamp = EXCLUDED.unix_timestamp,
			pm2_5 = EXCLUDED.pm2_5,
			pm10 = EXCLUDED.pm10,
			no2 = EXCLUDED.no2,
			so2 = EXCLUDED.so2,
			co = EXCLUDED.co,
			o3 = EXCLUDED.o3,
			no = EXCLUDED.no,
			nh3 = EXCLUDED.nh3,
			indian_aqi = EXCLUDED.indian_aqi,
			dominant_pollutant = EXCLUDED.dominant_pollutant,
			aqi_category = EXCLUDED.aqi_category,
			sub_index_pm25 = EXCLUDED.sub_index_pm25,
			sub_index_pm10 = EXCLUDED.sub_index_pm10,
			sub_index_no2 = EXCLUDED.sub_index_no2,
			sub_index_so2 = EXCLUDED.sub_index_so2,
			sub_index_co = EXCLUDED.sub_index_co,
			sub_index_o3 = EXCLUDED.sub_index_o3,
			data_source = EXCLUDED.data_source,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for i := range records {
		rec := &records[i]
		hour := TruncateHour(rec.HourTimestamp)
		unix := rec.UnixTimestamp
		if unix == 0 {
			unix = hour.Unix()
		}

		var dominant *string
		if rec.DominantPollutant != nil {
			d := string(*rec.DominantPollutant)
			dominant = &d
		}

		batch.Queue(query,
			rec.Latitude, rec.Longitude, rec.LocationName,
			hour, unix,
			rec.PM25, rec.PM10, rec.NO2, rec.SO2, rec.CO, rec.O3, rec.NO, rec.NH3,
			rec.IndianAQI, dominant, string(rec.Category),
			subIndexArg(rec.SubIndices, PollutantPM25),
			subIndexArg(rec.SubIndices, PollutantPM10),
			subIndexArg(rec.SubIndices, PollutantNO2),
			subIndexArg(rec.SubIndices, PollutantSO2),
			subIndexArg(rec.SubIndices, PollutantCO),
			subIndexArg(rec.SubIndices, PollutantO3),
			dataSourceOrDefault(rec.DataSource),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range records {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return false, fmt.Errorf("upsert record %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return false, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	return true, nil
}

func scanRecord(row pgx.Row) (HourlyRecord, error) {
	var (
		rec      HourlyRecord
		dominant *string
		category *string
		subs     [6]*int
	)

	err := row.Scan(
		&rec.Latitude, &rec.Longitude, &rec.LocationName,
		&rec.HourTimestamp, &rec.UnixTimestamp,
		&rec.PM25, &rec.PM10, &rec.NO2, &rec.SO2, &rec.CO, &rec.O3, &rec.NO, &rec.NH3,
		&rec.IndianAQI, &dominant, &category,
		&subs[0], &subs[1], &subs[2], &subs[3], &subs[4], &subs[5],
		&rec.DataSource,
	)
	if err != nil {
		return HourlyRecord{}, err
	}

	rec.HourTimestamp = rec.HourTimestamp.UTC()
	if dominant != nil {
		p := Pollutant(*dominant)
		rec.DominantPollutant = &p
	}
	if category != nil {
		rec.Category = Category(*category)
	} else {
		rec.Category = CategoryForIndex(rec.IndianAQI)
	}

	rec.SubIndices = make(map[Pollutant]int, len(Pollutants))
	for i, p := range Pollutants {
		if subs[i] != nil {
			rec.SubIndices[p] = *subs[i]
		}
	}

	return rec, nil
}

func subIndexArg(subs map[Pollutant]int, p Pollutant) *int {
	if v, ok := subs[p]; ok {
		return &v
	}
	return nil
}

func dataSourceOrDefault(source string) string {
	if source == "" {
		return DataSourceAPI
	}
	return source
}

// Ensure PostgresStore implements Store interface.
var _ Store = (*PostgresStore)(nil)
