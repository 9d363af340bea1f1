package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ospi/api/database"
	"ospi/api/logger"
	"ospi/api/models"
	"ospi/api/utils"
)

// ErrInvalidInterval is returned for a bucket size ClickHouse has no
// toStartOf function for.
var ErrInvalidInterval = errors.New("invalid interval")

// AnalyticsStore reads and writes the interaction event log in ClickHouse.
// The log is write-mostly telemetry; session state is never rebuilt from it.
type AnalyticsStore struct {
	DB  *database.ClickHouseClient
	log logger.Logger
}

type EventTypeCountByTime struct {
	Time      time.Time `json:"time"`
	EventType *string   `json:"eventType,omitempty"`
	Count     uint64    `json:"count"`
}

func NewAnalyticsStore(chClient *database.ClickHouseClient, log logger.Logger) *AnalyticsStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &AnalyticsStore{
		DB:  chClient,
		log: log,
	}
}

func (s *AnalyticsStore) InsertAnalyticsEvents(ctx context.Context, events []models.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO analytics_events (
			event_id, event_type, session_id, timestamp, page_path, product_id,
			user_agent, ip_address, page_value, event_data
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	appended := 0
	for _, event := range events {
		err := batch.Append(
			event.EventID,
			event.EventType,
			event.SessionID,
			event.Timestamp,
			event.PagePath,
			event.ProductID,
			event.UserAgent,
			event.IPAddress,
			event.PageValue,
			string(event.EventData),
		)
		if err != nil {
			s.log.Warn("Skipping event that does not fit the batch",
				logger.String("event_id", event.EventID),
				logger.Error(err),
			)
			continue
		}
		appended++
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	s.log.Debug("Inserted analytics events", logger.Int("count", appended))
	return nil
}

func (s *AnalyticsStore) GetEventCountsOverTime(ctx context.Context, interval string, start, end time.Time, eventTypeFilter string) ([]EventTypeCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	args := []interface{}{start, end}

	selectCols := fmt.Sprintf("toStartOf%s(timestamp) as time_bucket, count() as total_events", interval)
	groupByCols := "time_bucket"
	whereClause := "WHERE timestamp >= ? AND timestamp <= ?"
	orderByCols := "time_bucket ASC"
	isFilteringByType := eventTypeFilter != ""

	if isFilteringByType {
		selectCols += ", event_type"
		groupByCols += ", event_type"
		whereClause += " AND event_type = ?"
		args = append(args, eventTypeFilter)
		orderByCols += ", event_type ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM analytics_events
		%s
		GROUP BY %s
		ORDER BY %s
	`, selectCols, whereClause, groupByCols, orderByCols)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event counts over time: %w", err)
	}
	defer rows.Close()

	var results []EventTypeCountByTime
	for rows.Next() {
		var (
			timeBucket    time.Time
			count         uint64
			eventTypeDB   string
			currentResult EventTypeCountByTime
		)

		if isFilteringByType {
			if err := rows.Scan(&timeBucket, &count, &eventTypeDB); err != nil {
				s.log.Warn("Scan failed for event counts", logger.Error(err))
				continue
			}
			currentResult.EventType = &eventTypeDB
		} else {
			if err := rows.Scan(&timeBucket, &count); err != nil {
				s.log.Warn("Scan failed for event counts", logger.Error(err))
				continue
			}
		}

		currentResult.Time = timeBucket
		currentResult.Count = count
		results = append(results, currentResult)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during event counts over time query: %w", err)
	}

	return results, nil
}

// GetAveragePageValue averages the session page value recorded with each
// event, optionally restricted to one event type.
func (s *AnalyticsStore) GetAveragePageValue(ctx context.Context, eventTypeFilter string, start, end time.Time) (float64, error) {
	query := `SELECT avg(page_value) FROM analytics_events WHERE timestamp >= ? AND timestamp <= ?`
	args := []interface{}{start, end}

	if eventTypeFilter != "" {
		query += ` AND event_type = ?`
		args = append(args, eventTypeFilter)
	}

	var avgValue float64
	if err := s.DB.Conn.QueryRow(ctx, query, args...).Scan(&avgValue); err != nil {
		return 0.0, fmt.Errorf("failed to query average page value: %w", err)
	}

	// avg() over no rows is NaN, which JSON cannot carry.
	if math.IsNaN(avgValue) {
		return 0.0, nil
	}
	return avgValue, nil
}

func (s *AnalyticsStore) GetUniqueSessionsOverTime(ctx context.Context, interval string, start, end time.Time) ([]EventTypeCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	query := fmt.Sprintf(`
		SELECT toStartOf%s(timestamp) AS time_bucket, uniq(session_id) AS unique_sessions
		FROM analytics_events
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY time_bucket
		ORDER BY time_bucket ASC
	`, interval)

	rows, err := s.DB.Conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query unique sessions over time: %w", err)
	}
	defer rows.Close()

	var results []EventTypeCountByTime
	for rows.Next() {
		var timeBucket time.Time
		var uniqueSessions uint64
		if err := rows.Scan(&timeBucket, &uniqueSessions); err != nil {
			s.log.Warn("Scan failed for unique sessions", logger.Error(err))
			continue
		}
		results = append(results, EventTypeCountByTime{
			Time:  timeBucket,
			Count: uniqueSessions,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for unique sessions: %w", err)
	}

	return results, nil
}

func (s *AnalyticsStore) GetTopNPagePaths(ctx context.Context, start, end time.Time, limit uint64) ([]models.TopPathResult, error) {
	if limit == 0 {
		limit = 10
	}

	query := `
		SELECT page_path, count() as view_count
		FROM analytics_events
		WHERE event_type = 'visit_page' AND timestamp >= ? AND timestamp <= ?
		GROUP BY page_path
		ORDER BY view_count DESC
		LIMIT ?
	`
	rows, err := s.DB.Conn.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top page paths: %w", err)
	}
	defer rows.Close()

	var results []models.TopPathResult
	for rows.Next() {
		var pagePath string
		var count uint64
		if err := rows.Scan(&pagePath, &count); err != nil {
			s.log.Warn("Scan failed for top page paths", logger.Error(err))
			continue
		}
		results = append(results, models.TopPathResult{
			PagePath: pagePath,
			Count:    count,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for top page paths: %w", err)
	}

	return results, nil
}
