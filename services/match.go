package services

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"propsift/identity"
	"propsift/models"
	"propsift/storage"
)

// MatchService flags near-duplicate properties across sources. Exact
// duplicates already collapse onto one property_id, so candidates here are
// addresses that normalize differently but look like the same building.
// Matches are written for review, never auto-merged.
type MatchService struct {
	store *storage.PostgresStore
}

func NewMatchService(store *storage.PostgresStore) *MatchService {
	return &MatchService{store: store}
}

type matchCandidate struct {
	PropertyID    string
	StreetAddress string
	UnitNumber    string
	City          string
	PostalCode    string
	Beds          *float64
	Baths         *float64
	AreaSqft      *int
	PropertyType  string
}

// InsertPotentialMatches scores the incoming property against stored
// properties that share its city, postal code, or address prefix and were
// ingested from a different source. Returns how many match rows landed.
func (s *MatchService) InsertPotentialMatches(ctx context.Context, incoming *models.PropertyRow, sourceID string) (int, error) {
	if incoming == nil || incoming.StreetAddress == "" {
		return 0, nil
	}

	normalized := identity.NormalizeAddress(composedAddress(incoming.StreetAddress, incoming.UnitNumber))
	prefix := addressPrefix(normalized, 2)
	if incoming.PostalCode == "" && prefix == "" {
		return 0, nil
	}

	query := `
		SELECT DISTINCT p.property_id, p.street_address, p.unit_number, p.city, p.postal_code,
			p.beds, p.baths, p.interior_area_sqft, p.property_type
		FROM properties p
		JOIN listings l ON l.property_id = p.property_id
		WHERE p.property_id != $1`
	args := []interface{}{incoming.PropertyID}
	argNum := 2

	if sourceID != "" {
		query += " AND l.source_id != $" + itoa(argNum)
		args = append(args, sourceID)
		argNum++
	}
	if incoming.City != "" {
		query += " AND LOWER(p.city) = $" + itoa(argNum)
		args = append(args, strings.ToLower(incoming.City))
		argNum++
	}
	if incoming.PostalCode != "" {
		query += " AND p.postal_code = $" + itoa(argNum)
		args = append(args, incoming.PostalCode)
		argNum++
	}
	if prefix != "" {
		query += " AND LOWER(p.street_address) LIKE $" + itoa(argNum)
		args = append(args, prefix+"%")
		argNum++
	}

	rows, err := s.store.Pool().Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	baseIncoming := baseAddress(normalized)
	inserted := 0
	now := time.Now()

	for rows.Next() {
		var candidate matchCandidate
		if err := rows.Scan(
			&candidate.PropertyID, &candidate.StreetAddress, &candidate.UnitNumber,
			&candidate.City, &candidate.PostalCode, &candidate.Beds,
			&candidate.Baths, &candidate.AreaSqft, &candidate.PropertyType,
		); err != nil {
			return inserted, err
		}

		confidence, reasons, ok := scorePotentialMatch(incoming, &candidate, normalized, baseIncoming)
		if !ok {
			continue
		}

		reasonsJSON, _ := json.Marshal(reasons)
		match := &models.PropertyMatch{
			MatchedID:    candidate.PropertyID,
			IncomingID:   incoming.PropertyID,
			Confidence:   confidence,
			MatchReasons: reasonsJSON,
			Status:       "pending",
			CreatedAt:    now,
		}

		if err := s.store.InsertPropertyMatch(ctx, match); err != nil {
			return inserted, err
		}
		inserted++
	}

	return inserted, rows.Err()
}

// scorePotentialMatch builds the reason list and confidence for one
// candidate pair. Address agreement is the strong signal; postal code,
// property type, and close specs only ever add to it. Without a strong
// address the pair must line up on postal, type, and two specs before it
// scores at all.
func scorePotentialMatch(incoming *models.PropertyRow, candidate *matchCandidate, incomingNorm, baseIncoming string) (float64, []string, bool) {
	reasons := []string{}
	strongAddress := false
	sameAddress := false

	candidateNorm := identity.NormalizeAddress(composedAddress(candidate.StreetAddress, candidate.UnitNumber))

	if incomingNorm != "" && candidateNorm != "" && incomingNorm == candidateNorm {
		reasons = append(reasons, "same_address")
		strongAddress = true
		sameAddress = true
	} else if baseIncoming != "" {
		baseCandidate := baseAddress(candidateNorm)
		if baseCandidate != "" && baseCandidate == baseIncoming {
			reasons = append(reasons, "same_base_address")
			strongAddress = true
		}
	}

	samePostal := incoming.PostalCode != "" && candidate.PostalCode != "" &&
		incoming.PostalCode == candidate.PostalCode
	if samePostal {
		reasons = append(reasons, "same_postal")
	}

	sameType := incoming.PropertyType != "" && candidate.PropertyType != "" &&
		strings.EqualFold(incoming.PropertyType, candidate.PropertyType)
	if sameType {
		reasons = append(reasons, "same_property_type")
	}

	closeAttrCount := 0
	if incoming.Beds != nil && candidate.Beds != nil {
		diff := absFloat(*incoming.Beds - *candidate.Beds)
		if diff < 0.01 {
			reasons = append(reasons, "same_beds")
			closeAttrCount++
		} else if diff <= 1 {
			reasons = append(reasons, "close_beds")
			closeAttrCount++
		}
	}
	if incoming.Baths != nil && candidate.Baths != nil {
		diff := absFloat(*incoming.Baths - *candidate.Baths)
		if diff < 0.01 {
			reasons = append(reasons, "same_baths")
			closeAttrCount++
		} else if diff <= 1 {
			reasons = append(reasons, "close_baths")
			closeAttrCount++
		}
	}
	if incoming.InteriorAreaSqft != nil && candidate.AreaSqft != nil &&
		closeSqFt(*incoming.InteriorAreaSqft, *candidate.AreaSqft) {
		reasons = append(reasons, "close_sqft")
		closeAttrCount++
	}

	if !strongAddress {
		if !(samePostal && sameType && closeAttrCount >= 2) {
			return 0, nil, false
		}
		confidence := 0.55 + 0.05*float64(closeAttrCount)
		if confidence > 0.85 {
			confidence = 0.85
		}
		return confidence, reasons, true
	}

	confidence := 0.75
	if sameAddress {
		confidence = 0.9
	}
	confidence += 0.03 * float64(closeAttrCount)
	if samePostal {
		confidence += 0.03
	}
	if sameType {
		confidence += 0.03
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	return confidence, reasons, true
}

func composedAddress(street, unit string) string {
	if unit == "" {
		return street
	}
	return street + " " + unit
}

// addressPrefix returns the first N tokens of a normalized address.
func addressPrefix(normalized string, minTokens int) string {
	parts := strings.Fields(normalized)
	if len(parts) < minTokens {
		return ""
	}
	return strings.Join(parts[:minTokens], " ")
}

// baseAddress strips the unit designator and, on long addresses, a bare
// trailing number so "12 main st apt 4" and "12 main st 6" collapse to the
// same building.
func baseAddress(normalized string) string {
	parts := strings.Fields(normalized)
	if len(parts) == 0 {
		return ""
	}

	unitTokens := map[string]bool{
		"apt":  true,
		"unit": true,
		"ste":  true,
		"fl":   true,
		"bldg": true,
	}

	for i, part := range parts {
		if unitTokens[part] {
			parts = parts[:i]
			break
		}
	}

	if len(parts) >= 4 && isNumericToken(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}

	return strings.Join(parts, " ")
}

func isNumericToken(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func closeSqFt(a, b int) bool {
	if a <= 0 || b <= 0 {
		return false
	}
	diff := absInt(a - b)
	if diff <= 200 {
		return true
	}
	maxVal := a
	if b > maxVal {
		maxVal = b
	}
	return float64(diff) <= 0.1*float64(maxVal)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
