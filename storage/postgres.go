package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"propsift/models"
)

// PostgresStore is the warehouse: the ten projected tables plus match
// candidates and media assets. Identity-keyed upserts make re-ingestion
// idempotent, so every write path assumes it may run again for the same
// listing.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Migration
// =============================================================================

func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		listing_id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		batch_id TEXT,
		source_id TEXT,
		source_url TEXT,
		crawl_method TEXT,
		scraped_timestamp TIMESTAMPTZ,
		list_date TEXT,
		days_on_market INTEGER,
		description TEXT,
		listing_type TEXT,
		status TEXT,
		title TEXT,
		list_price BIGINT,
		price_per_sqft DOUBLE PRECISION
	);

	CREATE TABLE IF NOT EXISTS properties (
		property_id TEXT PRIMARY KEY,
		street_address TEXT,
		unit_number TEXT,
		city TEXT,
		state TEXT,
		postal_code TEXT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		interior_area_sqft INTEGER,
		lot_size_sqft INTEGER,
		year_built INTEGER,
		beds DOUBLE PRECISION,
		baths DOUBLE PRECISION,
		property_type TEXT,
		property_subtype TEXT,
		condition TEXT,
		features JSONB,
		created_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS media (
		listing_id TEXT NOT NULL,
		media_url TEXT NOT NULL,
		caption TEXT,
		display_order INTEGER,
		is_primary BOOLEAN,
		created_at TIMESTAMPTZ,
		media_type TEXT,
		UNIQUE(listing_id, media_url)
	);

	CREATE TABLE IF NOT EXISTS agents (
		listing_id TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		phone TEXT,
		brokerage TEXT,
		email TEXT,
		UNIQUE(listing_id, agent_name)
	);

	CREATE TABLE IF NOT EXISTS price_history (
		listing_id TEXT NOT NULL,
		event_date TEXT,
		event_type TEXT,
		price BIGINT,
		notes TEXT,
		UNIQUE(listing_id, event_date, event_type)
	);

	CREATE TABLE IF NOT EXISTS locations (
		location_id TEXT PRIMARY KEY,
		street_address TEXT,
		unit_number TEXT,
		city TEXT,
		state TEXT,
		postal_code TEXT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		geohash TEXT
	);

	CREATE TABLE IF NOT EXISTS engagement (
		listing_id TEXT PRIMARY KEY,
		views INTEGER,
		saves INTEGER,
		shares INTEGER
	);

	CREATE TABLE IF NOT EXISTS financials (
		listing_id TEXT PRIMARY KEY,
		hoa_fee INTEGER,
		property_taxes_annual INTEGER,
		down_payment INTEGER,
		loan_interest DOUBLE PRECISION,
		monthly_principal_interest INTEGER,
		monthly_mortgage_insurance INTEGER,
		monthly_property_taxes INTEGER,
		monthly_home_insurance INTEGER,
		monthly_hoa_fees INTEGER,
		monthly_utilities INTEGER,
		currency TEXT
	);

	CREATE TABLE IF NOT EXISTS community_attributes (
		listing_id TEXT PRIMARY KEY,
		climate_risks INTEGER[],
		amenities TEXT[],
		walk_score INTEGER
	);

	CREATE TABLE IF NOT EXISTS similar_properties (
		listing_id TEXT NOT NULL,
		similar_url TEXT NOT NULL,
		UNIQUE(listing_id, similar_url)
	);

	CREATE TABLE IF NOT EXISTS property_matches (
		id BIGSERIAL PRIMARY KEY,
		matched_id TEXT NOT NULL,
		incoming_id TEXT NOT NULL,
		confidence REAL,
		match_reasons JSONB,
		status TEXT DEFAULT 'pending',
		reviewed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE(matched_id, incoming_id)
	);

	CREATE TABLE IF NOT EXISTS media_assets (
		id UUID PRIMARY KEY,
		listing_id TEXT,
		original_url TEXT UNIQUE,
		media_type TEXT,
		status TEXT DEFAULT 'pending',
		s3_key TEXT,
		content_hash TEXT,
		size_bytes BIGINT,
		attempts INTEGER DEFAULT 0,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_listings_stale ON listings(status, scraped_timestamp);
	CREATE INDEX IF NOT EXISTS idx_listings_source ON listings(source_id);
	CREATE INDEX IF NOT EXISTS idx_listings_property ON listings(property_id);
	CREATE INDEX IF NOT EXISTS idx_properties_postal ON properties(postal_code);
	CREATE INDEX IF NOT EXISTS idx_properties_city ON properties(city);
	CREATE INDEX IF NOT EXISTS idx_matches_status ON property_matches(status);
	CREATE INDEX IF NOT EXISTS idx_media_assets_pending ON media_assets(status, attempts);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// Row set persistence
// =============================================================================

// SaveRowSet upserts every row of the set inside one transaction. Conflict
// targets are the deterministic ids, so re-running a batch merges instead
// of duplicating. Returns the number of rows written.
func (s *PostgresStore) SaveRowSet(ctx context.Context, rs *models.RowSet) (int, error) {
	if rs == nil {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	written := 0

	for _, r := range rs.Listings {
		if err := upsertListing(ctx, tx, &r); err != nil {
			return written, fmt.Errorf("listings %s: %w", r.ListingID, err)
		}
		written++
	}
	for _, r := range rs.Properties {
		if err := upsertProperty(ctx, tx, &r); err != nil {
			return written, fmt.Errorf("properties %s: %w", r.PropertyID, err)
		}
		written++
	}
	for _, r := range rs.Media {
		if err := upsertMedia(ctx, tx, &r); err != nil {
			return written, fmt.Errorf("media %s: %w", r.MediaURL, err)
		}
		written++
	}
	for _, r := range rs.Agents {
		if err := upsertAgent(ctx, tx, &r); err != nil {
			return written, fmt.Errorf("agents %s: %w", r.AgentName, err)
		}
		written++
	}
	for _, r := range rs.PriceHistory {
		if err := upsertPriceEvent(ctx, tx, &r); err != nil {
			return written, fmt.Errorf("price_history %s: %w", r.ListingID, err)
		}
		written++
	}
	for _, r := range rs.Locations {
		if err := upsertLocation(ctx, tx, &r); err != nil {
			return written, fmt.Errorf("locations %s: %w", r.LocationID, err)
		}
		written++
	}
	for _, r := range rs.Engagement {
		if err := upsertEngagement(ctx, tx, &r); err != nil {
			return written, fmt.Errorf("engagement %s: %w", r.ListingID, err)
		}
		written++
	}
	for _, r := range rs.Financials {
		if err := upsertFinancial(ctx, tx, &r); err != nil {
			return written, fmt.Errorf("financials %s: %w", r.ListingID, err)
		}
		written++
	}
	for _, r := range rs.CommunityAttributes {
		if err := upsertCommunity(ctx, tx, &r); err != nil {
			return written, fmt.Errorf("community_attributes %s: %w", r.ListingID, err)
		}
		written++
	}
	for _, r := range rs.SimilarProperties {
		if err := upsertSimilar(ctx, tx, &r); err != nil {
			return written, fmt.Errorf("similar_properties %s: %w", r.ListingID, err)
		}
		written++
	}

	if err := tx.Commit(ctx); err != nil {
		return written, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func upsertListing(ctx context.Context, tx pgx.Tx, r *models.ListingRow) error {
	query := `
		INSERT INTO listings (
			listing_id, property_id, batch_id, source_id, source_url, crawl_method,
			scraped_timestamp, list_date, days_on_market, description, listing_type,
			status, title, list_price, price_per_sqft
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (listing_id) DO UPDATE SET
			batch_id = EXCLUDED.batch_id,
			crawl_method = EXCLUDED.crawl_method,
			scraped_timestamp = EXCLUDED.scraped_timestamp,
			list_date = COALESCE(EXCLUDED.list_date, listings.list_date),
			days_on_market = COALESCE(EXCLUDED.days_on_market, listings.days_on_market),
			description = COALESCE(NULLIF(EXCLUDED.description, ''), listings.description),
			listing_type = EXCLUDED.listing_type,
			status = EXCLUDED.status,
			title = COALESCE(NULLIF(EXCLUDED.title, ''), listings.title),
			list_price = COALESCE(EXCLUDED.list_price, listings.list_price),
			price_per_sqft = COALESCE(EXCLUDED.price_per_sqft, listings.price_per_sqft)`

	_, err := tx.Exec(ctx, query,
		r.ListingID, r.PropertyID, r.BatchID, r.SourceID, r.SourceURL, r.CrawlMethod,
		r.ScrapedTimestamp, r.ListDate, r.DaysOnMarket, r.Description, r.ListingType,
		r.Status, r.Title, r.ListPrice, r.PricePerSqft,
	)
	return err
}

func upsertProperty(ctx context.Context, tx pgx.Tx, r *models.PropertyRow) error {
	query := `
		INSERT INTO properties (
			property_id, street_address, unit_number, city, state, postal_code,
			latitude, longitude, interior_area_sqft, lot_size_sqft, year_built,
			beds, baths, property_type, property_subtype, condition, features,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (property_id) DO UPDATE SET
			street_address = COALESCE(NULLIF(EXCLUDED.street_address, ''), properties.street_address),
			unit_number = COALESCE(NULLIF(EXCLUDED.unit_number, ''), properties.unit_number),
			city = COALESCE(NULLIF(EXCLUDED.city, ''), properties.city),
			state = COALESCE(NULLIF(EXCLUDED.state, ''), properties.state),
			postal_code = COALESCE(NULLIF(EXCLUDED.postal_code, ''), properties.postal_code),
			latitude = COALESCE(EXCLUDED.latitude, properties.latitude),
			longitude = COALESCE(EXCLUDED.longitude, properties.longitude),
			interior_area_sqft = COALESCE(EXCLUDED.interior_area_sqft, properties.interior_area_sqft),
			lot_size_sqft = COALESCE(EXCLUDED.lot_size_sqft, properties.lot_size_sqft),
			year_built = COALESCE(EXCLUDED.year_built, properties.year_built),
			beds = COALESCE(EXCLUDED.beds, properties.beds),
			baths = COALESCE(EXCLUDED.baths, properties.baths),
			property_type = COALESCE(NULLIF(EXCLUDED.property_type, ''), properties.property_type),
			property_subtype = COALESCE(NULLIF(EXCLUDED.property_subtype, ''), properties.property_subtype),
			condition = COALESCE(NULLIF(EXCLUDED.condition, ''), properties.condition),
			features = EXCLUDED.features,
			updated_at = EXCLUDED.updated_at`

	_, err := tx.Exec(ctx, query,
		r.PropertyID, r.StreetAddress, r.UnitNumber, r.City, r.State, r.PostalCode,
		r.Latitude, r.Longitude, r.InteriorAreaSqft, r.LotSizeSqft, r.YearBuilt,
		r.Beds, r.Baths, r.PropertyType, r.PropertySubtype, r.Condition, r.Features,
		r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func upsertMedia(ctx context.Context, tx pgx.Tx, r *models.MediaRow) error {
	query := `
		INSERT INTO media (listing_id, media_url, caption, display_order, is_primary, created_at, media_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (listing_id, media_url) DO UPDATE SET
			caption = COALESCE(NULLIF(EXCLUDED.caption, ''), media.caption),
			display_order = EXCLUDED.display_order,
			is_primary = EXCLUDED.is_primary`

	_, err := tx.Exec(ctx, query,
		r.ListingID, r.MediaURL, r.Caption, r.DisplayOrder, r.IsPrimary, r.CreatedAt, r.MediaType,
	)
	return err
}

func upsertAgent(ctx context.Context, tx pgx.Tx, r *models.AgentRow) error {
	query := `
		INSERT INTO agents (listing_id, agent_name, phone, brokerage, email)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (listing_id, agent_name) DO UPDATE SET
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), agents.phone),
			brokerage = COALESCE(NULLIF(EXCLUDED.brokerage, ''), agents.brokerage),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), agents.email)`

	_, err := tx.Exec(ctx, query, r.ListingID, r.AgentName, r.Phone, r.Brokerage, r.Email)
	return err
}

func upsertPriceEvent(ctx context.Context, tx pgx.Tx, r *models.PriceHistoryRow) error {
	query := `
		INSERT INTO price_history (listing_id, event_date, event_type, price, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (listing_id, event_date, event_type) DO UPDATE SET
			price = COALESCE(EXCLUDED.price, price_history.price),
			notes = COALESCE(NULLIF(EXCLUDED.notes, ''), price_history.notes)`

	_, err := tx.Exec(ctx, query, r.ListingID, r.EventDate, r.EventType, r.Price, r.Notes)
	return err
}

func upsertLocation(ctx context.Context, tx pgx.Tx, r *models.LocationRow) error {
	// The id hashes the full tuple, so a conflict means an identical row.
	query := `
		INSERT INTO locations (location_id, street_address, unit_number, city, state, postal_code, latitude, longitude, geohash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (location_id) DO NOTHING`

	_, err := tx.Exec(ctx, query,
		r.LocationID, r.StreetAddress, r.UnitNumber, r.City, r.State, r.PostalCode,
		r.Latitude, r.Longitude, r.Geohash,
	)
	return err
}

func upsertEngagement(ctx context.Context, tx pgx.Tx, r *models.EngagementRow) error {
	query := `
		INSERT INTO engagement (listing_id, views, saves, shares)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (listing_id) DO UPDATE SET
			views = COALESCE(EXCLUDED.views, engagement.views),
			saves = COALESCE(EXCLUDED.saves, engagement.saves),
			shares = COALESCE(EXCLUDED.shares, engagement.shares)`

	_, err := tx.Exec(ctx, query, r.ListingID, r.Views, r.Saves, r.Shares)
	return err
}

func upsertFinancial(ctx context.Context, tx pgx.Tx, r *models.FinancialRow) error {
	query := `
		INSERT INTO financials (
			listing_id, hoa_fee, property_taxes_annual, down_payment, loan_interest,
			monthly_principal_interest, monthly_mortgage_insurance, monthly_property_taxes,
			monthly_home_insurance, monthly_hoa_fees, monthly_utilities, currency
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (listing_id) DO UPDATE SET
			hoa_fee = COALESCE(EXCLUDED.hoa_fee, financials.hoa_fee),
			property_taxes_annual = COALESCE(EXCLUDED.property_taxes_annual, financials.property_taxes_annual),
			down_payment = COALESCE(EXCLUDED.down_payment, financials.down_payment),
			loan_interest = COALESCE(EXCLUDED.loan_interest, financials.loan_interest),
			monthly_principal_interest = COALESCE(EXCLUDED.monthly_principal_interest, financials.monthly_principal_interest),
			monthly_mortgage_insurance = COALESCE(EXCLUDED.monthly_mortgage_insurance, financials.monthly_mortgage_insurance),
			monthly_property_taxes = COALESCE(EXCLUDED.monthly_property_taxes, financials.monthly_property_taxes),
			monthly_home_insurance = COALESCE(EXCLUDED.monthly_home_insurance, financials.monthly_home_insurance),
			monthly_hoa_fees = COALESCE(EXCLUDED.monthly_hoa_fees, financials.monthly_hoa_fees),
			monthly_utilities = COALESCE(EXCLUDED.monthly_utilities, financials.monthly_utilities),
			currency = COALESCE(NULLIF(EXCLUDED.currency, ''), financials.currency)`

	_, err := tx.Exec(ctx, query,
		r.ListingID, r.HOAFee, r.PropertyTaxesAnnual, r.DownPayment, r.LoanInterest,
		r.MonthlyPrincipalInterest, r.MonthlyMortgageInsurance, r.MonthlyPropertyTaxes,
		r.MonthlyHomeInsurance, r.MonthlyHOAFees, r.MonthlyUtilities, r.Currency,
	)
	return err
}

func upsertCommunity(ctx context.Context, tx pgx.Tx, r *models.CommunityRow) error {
	query := `
		INSERT INTO community_attributes (listing_id, climate_risks, amenities, walk_score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (listing_id) DO UPDATE SET
			climate_risks = COALESCE(EXCLUDED.climate_risks, community_attributes.climate_risks),
			amenities = COALESCE(EXCLUDED.amenities, community_attributes.amenities),
			walk_score = COALESCE(EXCLUDED.walk_score, community_attributes.walk_score)`

	_, err := tx.Exec(ctx, query, r.ListingID, r.ClimateRisks, r.Amenities, r.WalkScore)
	return err
}

func upsertSimilar(ctx context.Context, tx pgx.Tx, r *models.SimilarRow) error {
	query := `
		INSERT INTO similar_properties (listing_id, similar_url)
		VALUES ($1, $2)
		ON CONFLICT (listing_id, similar_url) DO NOTHING`

	_, err := tx.Exec(ctx, query, r.ListingID, r.SimilarURL)
	return err
}

// =============================================================================
// Refresh queries
// =============================================================================

// StaleListing is the slice of a listing the refresh worker needs to
// re-fetch it.
type StaleListing struct {
	ListingID string
	SourceID  string
	SourceURL string
}

func (s *PostgresStore) GetStaleListings(ctx context.Context, staleDuration time.Duration, limit int) ([]StaleListing, error) {
	query := `
		SELECT listing_id, source_id, source_url
		FROM listings
		WHERE status = 'active' AND scraped_timestamp < $1 AND source_url <> ''
		ORDER BY scraped_timestamp
		LIMIT $2`

	staleTime := time.Now().Add(-staleDuration)
	rows, err := s.pool.Query(ctx, query, staleTime, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []StaleListing
	for rows.Next() {
		var l StaleListing
		if err := rows.Scan(&l.ListingID, &l.SourceID, &l.SourceURL); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) UpdateListingStatus(ctx context.Context, listingID string, status models.ListingStatus) error {
	query := `UPDATE listings SET status = $2 WHERE listing_id = $1`
	_, err := s.pool.Exec(ctx, query, listingID, string(status))
	return err
}

// =============================================================================
// Media assets
// =============================================================================

func (s *PostgresStore) GetMediaAssetByURL(ctx context.Context, url string) (*models.MediaAsset, error) {
	query := `
		SELECT id, listing_id, original_url, media_type, status, s3_key, content_hash,
			size_bytes, attempts, created_at, updated_at
		FROM media_assets WHERE original_url = $1`

	var m models.MediaAsset
	err := s.pool.QueryRow(ctx, query, url).Scan(
		&m.ID, &m.ListingID, &m.OriginalURL, &m.MediaType, &m.Status, &m.S3Key, &m.ContentHash,
		&m.SizeBytes, &m.Attempts, &m.CreatedAt, &m.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) InsertMediaAsset(ctx context.Context, m *models.MediaAsset) error {
	query := `
		INSERT INTO media_assets (id, listing_id, original_url, media_type, status, content_hash, size_bytes, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (original_url) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.ListingID, m.OriginalURL, m.MediaType, m.Status, m.ContentHash, m.SizeBytes, m.Attempts, m.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetPendingMediaAssets(ctx context.Context, limit int) ([]models.MediaAsset, error) {
	query := `
		SELECT id, listing_id, original_url, media_type, status, s3_key, content_hash,
			size_bytes, attempts, created_at, updated_at
		FROM media_assets
		WHERE status = 'pending' AND attempts < 3
		ORDER BY created_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []models.MediaAsset
	for rows.Next() {
		var m models.MediaAsset
		if err := rows.Scan(
			&m.ID, &m.ListingID, &m.OriginalURL, &m.MediaType, &m.Status, &m.S3Key, &m.ContentHash,
			&m.SizeBytes, &m.Attempts, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		assets = append(assets, m)
	}
	return assets, rows.Err()
}

func (s *PostgresStore) UpdateMediaAssetStatus(ctx context.Context, id uuid.UUID, status models.MediaStatus, s3Key *string, contentHash string, sizeBytes int64, attempts int) error {
	query := `
		UPDATE media_assets SET
			status = $2,
			s3_key = COALESCE($3, s3_key),
			content_hash = COALESCE(NULLIF($4, ''), content_hash),
			size_bytes = COALESCE(NULLIF($5::BIGINT, 0), size_bytes),
			attempts = $6,
			updated_at = NOW()
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, id, string(status), s3Key, contentHash, sizeBytes, attempts)
	return err
}

func (s *PostgresStore) GetMediaQueueDepth(ctx context.Context) (int, error) {
	var depth int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM media_assets WHERE status = 'pending' AND attempts < 3`).Scan(&depth)
	return depth, err
}

// =============================================================================
// Property matches
// =============================================================================

func (s *PostgresStore) InsertPropertyMatch(ctx context.Context, pm *models.PropertyMatch) error {
	query := `
		INSERT INTO property_matches (matched_id, incoming_id, confidence, match_reasons, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (matched_id, incoming_id) DO NOTHING
		RETURNING id`

	err := s.pool.QueryRow(ctx, query,
		pm.MatchedID, pm.IncomingID, pm.Confidence, pm.MatchReasons, pm.Status, pm.CreatedAt,
	).Scan(&pm.ID)

	if err == pgx.ErrNoRows {
		return nil // conflict, no insert
	}
	return err
}

// =============================================================================
// Stats
// =============================================================================

// GetTableCounts reports row counts for the ten projected tables. Table
// names come from the fixed contract list, never from input.
func (s *PostgresStore) GetTableCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(models.TableNames))
	for _, table := range models.TableNames {
		var n int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
