package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

// Client reads the daemon's two stores. SQLite holds runs, logs, and the
// command queue; Postgres holds the listing rows. The Postgres side is
// optional, matching the daemon: a nil pool makes every warehouse query
// return empty results.
type Client struct {
	pg     *pgxpool.Pool
	sqlite *sql.DB
	ctx    context.Context
}

type SourceStats struct {
	SourceID       string
	LastRunAt      *time.Time
	LastRunStatus  *string
	TotalListings  int
	TotalBlocked   int
	SuccessRate    float64
	AvgRunDuration int
}

type IngestRun struct {
	ID          int64
	SourceID    string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Status      string
	URLsFound   int
	DocsFetched int
	DocsParsed  int
	DocsBlocked int
	RowsWritten int
	ErrorsCount int
}

type Property struct {
	PropertyID   string
	Address      string
	City         string
	State        string
	PostalCode   string
	Beds         float64
	Baths        float64
	Sqft         int
	PropertyType string
	YearBuilt    int
	LastSeenAt   time.Time
	ListingCount int
	LatestPrice  int64
}

type Listing struct {
	ListingID    string
	PropertyID   string
	SourceID     string
	SourceURL    string
	Status       string
	ListDate     string
	Price        int64
	DaysOnMarket int
	Description  string
	ScrapedAt    time.Time
	Agent        *AgentInfo
}

type AgentInfo struct {
	Name      string
	Phone     string
	Brokerage string
}

type PricePoint struct {
	EventDate string
	EventType string
	Price     int64
}

type IngestLog struct {
	ID        int64
	RunID     *int64
	Timestamp time.Time
	Level     string
	Message   string
	SourceID  *string
}

type CityStats struct {
	City          string
	State         string
	PropertyCount int
	ListingCount  int
	ActiveCount   int
	AvgPrice      int64
}

func New(postgresURL, sqlitePath string) (*Client, error) {
	ctx := context.Background()

	var pgPool *pgxpool.Pool
	if postgresURL != "" {
		var err error
		pgPool, err = pgxpool.New(ctx, postgresURL)
		if err != nil {
			return nil, err
		}
	}

	sqliteDB, err := sql.Open("sqlite", sqlitePath)
	if err != nil {
		if pgPool != nil {
			pgPool.Close()
		}
		return nil, err
	}

	return &Client{
		pg:     pgPool,
		sqlite: sqliteDB,
		ctx:    ctx,
	}, nil
}

func (c *Client) Close() error {
	if c.pg != nil {
		c.pg.Close()
	}
	return c.sqlite.Close()
}

func (c *Client) HasWarehouse() bool {
	return c.pg != nil
}

// ============================================================
// Operational store (SQLite)
// ============================================================

func (c *Client) GetSourceStats() ([]SourceStats, error) {
	rows, err := c.sqlite.Query(`
		SELECT source_id, last_run_at, last_run_status,
			COALESCE(total_listings, 0), COALESCE(total_blocked, 0),
			COALESCE(success_rate, 0), COALESCE(avg_run_duration_sec, 0)
		FROM source_stats
		ORDER BY source_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []SourceStats
	for rows.Next() {
		var s SourceStats
		var lastRunAt, status sql.NullString
		err := rows.Scan(&s.SourceID, &lastRunAt, &status,
			&s.TotalListings, &s.TotalBlocked, &s.SuccessRate, &s.AvgRunDuration)
		if err != nil {
			return nil, err
		}
		if lastRunAt.Valid {
			if t, ok := parseSQLiteTime(lastRunAt.String); ok {
				s.LastRunAt = &t
			}
		}
		if status.Valid {
			s.LastRunStatus = &status.String
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (c *Client) GetRecentRuns(limit int) ([]IngestRun, error) {
	rows, err := c.sqlite.Query(`
		SELECT id, source_id, started_at, finished_at, status,
			COALESCE(urls_found, 0), COALESCE(docs_fetched, 0), COALESCE(docs_parsed, 0),
			COALESCE(docs_blocked, 0), COALESCE(rows_written, 0), COALESCE(errors_count, 0)
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []IngestRun
	for rows.Next() {
		var r IngestRun
		var started string
		var finished sql.NullString
		err := rows.Scan(&r.ID, &r.SourceID, &started, &finished, &r.Status,
			&r.URLsFound, &r.DocsFetched, &r.DocsParsed,
			&r.DocsBlocked, &r.RowsWritten, &r.ErrorsCount)
		if err != nil {
			return nil, err
		}
		r.StartedAt, _ = parseSQLiteTime(started)
		if finished.Valid {
			if t, ok := parseSQLiteTime(finished.String); ok {
				r.FinishedAt = &t
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (c *Client) GetRecentLogs(limit int, level *string) ([]IngestLog, error) {
	var rows *sql.Rows
	var err error

	if level != nil && *level != "all" {
		rows, err = c.sqlite.Query(`
			SELECT id, run_id, timestamp, level, message, source_id
			FROM ingest_logs
			WHERE LOWER(level) = LOWER(?)
			ORDER BY timestamp DESC
			LIMIT ?
		`, *level, limit)
	} else {
		rows, err = c.sqlite.Query(`
			SELECT id, run_id, timestamp, level, message, source_id
			FROM ingest_logs
			ORDER BY timestamp DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []IngestLog
	for rows.Next() {
		var l IngestLog
		var ts string
		var sourceID sql.NullString
		err := rows.Scan(&l.ID, &l.RunID, &ts, &l.Level, &l.Message, &sourceID)
		if err != nil {
			return nil, err
		}
		l.Timestamp, _ = parseSQLiteTime(ts)
		if sourceID.Valid && sourceID.String != "" {
			l.SourceID = &sourceID.String
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Commands go through SQLite; the daemon polls them every few seconds.
func (c *Client) SendCommand(command string) error {
	_, err := c.sqlite.Exec(`
		INSERT INTO commands (command, params, created_at)
		VALUES (?, NULL, datetime('now'))
	`, command)
	return err
}

func (c *Client) RunNow() error {
	return c.SendCommand("run_now")
}

func (c *Client) RunMedia() error {
	return c.SendCommand("run_media")
}

func (c *Client) RunRefresh() error {
	return c.SendCommand("run_refresh")
}

// ============================================================
// Warehouse (Postgres)
// ============================================================

func (c *Client) GetPropertyCount() (int, error) {
	if c.pg == nil {
		return 0, nil
	}
	var count int
	err := c.pg.QueryRow(c.ctx, "SELECT COUNT(*) FROM properties").Scan(&count)
	return count, err
}

func (c *Client) GetListingCount() (int, error) {
	if c.pg == nil {
		return 0, nil
	}
	var count int
	err := c.pg.QueryRow(c.ctx, "SELECT COUNT(*) FROM listings").Scan(&count)
	return count, err
}

func (c *Client) GetActiveListingCount() (int, error) {
	if c.pg == nil {
		return 0, nil
	}
	var count int
	err := c.pg.QueryRow(c.ctx, "SELECT COUNT(*) FROM listings WHERE status = 'active'").Scan(&count)
	return count, err
}

func (c *Client) GetPendingMediaCount() (int, error) {
	if c.pg == nil {
		return 0, nil
	}
	var count int
	err := c.pg.QueryRow(c.ctx, "SELECT COUNT(*) FROM media_assets WHERE status = 'pending'").Scan(&count)
	return count, err
}

func (c *Client) GetCityStats() ([]CityStats, error) {
	if c.pg == nil {
		return nil, nil
	}
	rows, err := c.pg.Query(c.ctx, `
		SELECT
			COALESCE(p.city, 'Unknown') as city,
			COALESCE(p.state, '') as state,
			COUNT(DISTINCT p.property_id)::int as property_count,
			COUNT(l.listing_id)::int as listing_count,
			COUNT(l.listing_id) FILTER (WHERE l.status = 'active')::int as active_count,
			COALESCE(AVG(l.list_price) FILTER (WHERE l.status = 'active'), 0)::bigint as avg_price
		FROM properties p
		LEFT JOIN listings l ON l.property_id = p.property_id
		GROUP BY p.city, p.state
		HAVING COUNT(DISTINCT p.property_id) > 0
		ORDER BY COUNT(DISTINCT p.property_id) DESC
		LIMIT 6
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CityStats
	for rows.Next() {
		var s CityStats
		err := rows.Scan(&s.City, &s.State, &s.PropertyCount, &s.ListingCount, &s.ActiveCount, &s.AvgPrice)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func (c *Client) GetProperties(limit, offset int, activeOnly bool) ([]Property, error) {
	if c.pg == nil {
		return nil, nil
	}
	query := `
		SELECT
			p.property_id,
			COALESCE(p.street_address, '') || CASE WHEN COALESCE(p.unit_number, '') <> '' THEN ' ' || p.unit_number ELSE '' END,
			COALESCE(p.city, ''),
			COALESCE(p.state, ''),
			COALESCE(p.postal_code, ''),
			COALESCE(p.beds, 0),
			COALESCE(p.baths, 0),
			COALESCE(p.interior_area_sqft, 0),
			COALESCE(p.property_type, ''),
			COALESCE(p.year_built, 0),
			COALESCE(p.updated_at, NOW()),
			(SELECT COUNT(*) FROM listings WHERE property_id = p.property_id)::int,
			COALESCE((
				SELECT l.list_price
				FROM listings l
				WHERE l.property_id = p.property_id AND l.list_price IS NOT NULL
				ORDER BY l.scraped_timestamp DESC LIMIT 1
			), 0)
		FROM properties p
	`
	if activeOnly {
		query += ` WHERE EXISTS (SELECT 1 FROM listings l WHERE l.property_id = p.property_id AND l.status = 'active')`
	}
	query += ` ORDER BY p.updated_at DESC LIMIT $1 OFFSET $2`

	rows, err := c.pg.Query(c.ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []Property
	for rows.Next() {
		var p Property
		err := rows.Scan(&p.PropertyID, &p.Address, &p.City, &p.State, &p.PostalCode,
			&p.Beds, &p.Baths, &p.Sqft, &p.PropertyType, &p.YearBuilt,
			&p.LastSeenAt, &p.ListingCount, &p.LatestPrice)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, nil
}

func (c *Client) GetListingsForProperty(propertyID string) ([]Listing, error) {
	if c.pg == nil {
		return nil, nil
	}
	rows, err := c.pg.Query(c.ctx, `
		SELECT
			l.listing_id,
			l.property_id,
			COALESCE(l.source_id, ''),
			COALESCE(l.source_url, ''),
			COALESCE(l.status, ''),
			COALESCE(l.list_date, ''),
			COALESCE(l.list_price, 0),
			COALESCE(l.days_on_market, 0),
			COALESCE(l.description, ''),
			COALESCE(l.scraped_timestamp, NOW()),
			a.agent_name,
			a.phone,
			a.brokerage
		FROM listings l
		LEFT JOIN agents a ON a.listing_id = l.listing_id
		WHERE l.property_id = $1
		ORDER BY l.scraped_timestamp DESC
	`, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var l Listing
		var agentName, agentPhone, agentBrokerage *string

		err := rows.Scan(&l.ListingID, &l.PropertyID, &l.SourceID, &l.SourceURL,
			&l.Status, &l.ListDate, &l.Price, &l.DaysOnMarket,
			&l.Description, &l.ScrapedAt,
			&agentName, &agentPhone, &agentBrokerage)
		if err != nil {
			return nil, err
		}

		if agentName != nil && *agentName != "" {
			l.Agent = &AgentInfo{
				Name:      *agentName,
				Phone:     deref(agentPhone),
				Brokerage: deref(agentBrokerage),
			}
		}

		listings = append(listings, l)
	}
	return listings, nil
}

func (c *Client) GetPriceHistory(listingID string) ([]PricePoint, error) {
	if c.pg == nil {
		return nil, nil
	}
	rows, err := c.pg.Query(c.ctx, `
		SELECT COALESCE(event_date, ''), COALESCE(event_type, ''), COALESCE(price, 0)
		FROM price_history
		WHERE listing_id = $1
		ORDER BY event_date DESC
		LIMIT 20
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		err := rows.Scan(&p.EventDate, &p.EventType, &p.Price)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// parseSQLiteTime handles the datetime renderings the daemon's driver
// writes: RFC3339 and the space-separated SQLite default.
func parseSQLiteTime(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
