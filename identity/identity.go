package identity

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"propsift/models"
)

// All identifiers here are pure functions of their inputs. Re-running
// extraction over a later fetch of the same listing must reproduce the same
// ids, so the storage layer can upsert instead of merging.

var nonAlnumRegex = regexp.MustCompile(`[^a-z0-9]+`)

var streetReplacements = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"boulevard": "blvd",
	"drive":     "dr",
	"road":      "rd",
	"court":     "ct",
	"place":     "pl",
	"lane":      "ln",
	"terrace":   "ter",
	"circle":    "cir",
	"highway":   "hwy",
	"parkway":   "pkwy",
	"apartment": "apt",
	"suite":     "ste",
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
}

// StableID hashes the non-empty parts joined with "|". Same inputs produce
// the same id in any process on any run.
func StableID(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	sum := sha1.Sum([]byte(strings.Join(kept, "|")))
	return hex.EncodeToString(sum[:])
}

// ListingID derives the listing identifier from the source and the site's
// native id, falling back to the canonical URL. The property id is the same
// value: one listing row per property row per document.
func ListingID(sourceID, externalID, sourceURL string) string {
	sid := strings.ToLower(strings.TrimSpace(sourceID))
	if sid == "" {
		sid = "unknown"
	}
	key := strings.TrimSpace(externalID)
	if key == "" {
		key = strings.TrimSpace(sourceURL)
	}
	return StableID(sid, key)
}

// LocationID hashes the full address tuple. Unlike StableID, empty
// components keep their slot in the join so that ("", "boston") and
// ("boston", "") hash differently.
func LocationID(addr *models.Address) string {
	key := strings.Join([]string{
		addr.Street,
		addr.Unit,
		addr.City,
		addr.State,
		addr.PostalCode,
		formatCoord(addr.Latitude),
		formatCoord(addr.Longitude),
	}, "|")
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// NormalizeAddress lowercases, folds unicode to its NFKD form, strips
// punctuation, and shortens common street words so the same address spelled
// differently on two sites compares equal.
func NormalizeAddress(address string) string {
	normalized := strings.ToLower(norm.NFKD.String(address))
	normalized = nonAlnumRegex.ReplaceAllString(normalized, " ")

	words := strings.Fields(normalized)
	for i, w := range words {
		if repl, ok := streetReplacements[w]; ok {
			words[i] = repl
		}
	}
	return strings.Join(words, " ")
}

// AddressHash is a short md5 digest of the normalized address, used as a
// fallback external id when a site exposes no native listing id.
func AddressHash(address string) string {
	sum := md5.Sum([]byte(NormalizeAddress(address)))
	return hex.EncodeToString(sum[:])[:12]
}

// PropertyFingerprint keys a property by its physical identity for
// cross-source match candidates.
func PropertyFingerprint(addr *models.Address, beds, baths float64, sqft int, propertyType string) string {
	normalized := NormalizeAddress(strings.TrimSpace(addr.Street + " " + addr.Unit))
	input := fmt.Sprintf("%s|%s|%.1f|%.1f|%d|%s",
		normalized, strings.ToLower(addr.PostalCode), beds, baths, sqft, strings.ToLower(propertyType))
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}
