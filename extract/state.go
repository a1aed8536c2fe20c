package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propsift/models"
	"propsift/normalize"
	"propsift/sites"
)

// Embedded-state extractor: finds serialized hydration objects in script
// tags (assignment form `window.__REDUX_STATE__ = {...}` or a JSON script
// body keyed by element id, as __NEXT_DATA__ ships), repairs JS-flavored
// JSON, and walks the token stream depth-first in document order. The first
// occurrence of a known field wins, within a blob and across blobs.

// stateScalarKeys maps site-state property names onto canonical fields.
// A known key whose value turns out to be composite is descended into
// instead of captured, so `"state": {...}` containers don't collide with
// `"state": "NY"`.
var stateScalarKeys = map[string]string{
	"zpid":       fieldExternalID,
	"propertyId": fieldExternalID,

	"streetAddress": fieldStreet,
	"streetLine":    fieldStreet,
	"unitNumber":    fieldUnit,
	"unit":          fieldUnit,
	"city":          fieldCity,
	"state":         fieldState,
	"stateCode":     fieldState,
	"zipcode":       fieldPostalCode,
	"zip":           fieldPostalCode,
	"postalCode":    fieldPostalCode,
	"latitude":      fieldLatitude,
	"longitude":     fieldLongitude,

	"price":     fieldListPrice,
	"listPrice": fieldListPrice,

	"bedrooms":   fieldBeds,
	"beds":       fieldBeds,
	"bathrooms":  fieldBaths,
	"baths":      fieldBaths,
	"bathsTotal": fieldBaths,

	"livingArea":   fieldInteriorArea,
	"finishedSqFt": fieldInteriorArea,
	"squareFeet":   fieldInteriorArea,
	"sqFt":         fieldInteriorArea,
	"sqft":         fieldInteriorArea,
	"lotSize":      fieldLotSize,

	"yearBuilt":    fieldYearBuilt,
	"homeType":     fieldPropertyType,
	"propertyType": fieldPropertyType,

	"homeStatus":          fieldStatus,
	"datePosted":          fieldListDate,
	"listDate":            fieldListDate,
	"daysOnZillow":        fieldDaysOnMarket,
	"daysOnMarket":        fieldDaysOnMarket,
	"propertyDescription": fieldDescription,

	// Walk Score ships both casings: "walkScore" as a scalar on some sites,
	// "walkscore" inside a score object on others.
	"walkScore": fieldWalkScore,
	"walkscore": fieldWalkScore,

	// Agent attribution scalars, assembled into one Agent after the walk.
	"agentName":         stateAgentName,
	"agentPhoneNumber":  stateAgentPhone,
	"brokerName":        stateAgentBrokerage,
	"brokerPhoneNumber": stateBrokerPhone,
}

// Assembly-only keys, removed from the field set before merging.
const (
	stateAgentName      = "_agent_name"
	stateAgentPhone     = "_agent_phone"
	stateAgentBrokerage = "_agent_brokerage"
	stateBrokerPhone    = "_broker_phone"
)

var statePhotoKeys = map[string]bool{"photos": true, "photoGallery": true}

// ExtractState probes the document for embedded hydration state and returns
// the fields it could collect. Malformed payloads are skipped, never fatal.
func ExtractState(doc *Document, g sites.Grammar) Fields {
	f := Fields{}

	var payloads []string
	dom := doc.DOM()
	for _, key := range g.StateKeys() {
		if dom != nil {
			dom.Find(`script[id="` + key + `"]`).Each(func(_ int, s *goquery.Selection) {
				if text := strings.TrimSpace(s.Text()); text != "" {
					payloads = append(payloads, text)
				}
			})
		}
		payloads = append(payloads, findAssignedObjects(doc.HTML, key)...)
	}
	if dom != nil {
		payloads = append(payloads, g.StatePayloads(dom)...)
	}

	for _, blob := range payloads {
		data := parseTolerant(blob)
		if data == nil {
			debugf("state: unparsable payload skipped (%d bytes)", len(blob))
			continue
		}
		walkStateValue(data, f)
	}

	assembleStateAgent(f)
	return f
}

// findAssignedObjects collects the balanced object literals assigned to the
// given identifier anywhere in the HTML, e.g. `window.KEY = {...};`.
func findAssignedObjects(html, key string) []string {
	var out []string
	pos := 0
	for {
		i := strings.Index(html[pos:], key)
		if i < 0 {
			return out
		}
		i += pos
		after := i + len(key)
		// the assignment operator sits close to the identifier
		window := after + 200
		if window > len(html) {
			window = len(html)
		}
		eq := strings.Index(html[after:window], "=")
		if eq >= 0 {
			if obj := balancedSlice(html, after+eq); obj != "" {
				out = append(out, obj)
			}
		}
		pos = after
	}
}

// balancedSlice returns the first balanced {...} literal at or after from,
// tracking string literals of both quote styles so braces inside text don't
// unbalance the scan. Returns "" when no balanced object is found.
func balancedSlice(s string, from int) string {
	start := strings.Index(s[from:], "{")
	if start < 0 {
		return ""
	}
	start += from

	depth := 0
	var inStr byte
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\':
			escaped = true
		case inStr != 0:
			if ch == inStr {
				inStr = 0
			}
		case ch == '"' || ch == '\'':
			inStr = ch
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// parseTolerant turns a JS-ish object literal into valid JSON bytes: strict
// parse first, then a repaired pass (comments, trailing commas, single
// quotes), then the same over a balanced slice. nil when nothing parses.
func parseTolerant(blob string) []byte {
	raw := []byte(blob)
	if json.Valid(raw) {
		return raw
	}
	if repaired := repairJSON(blob); json.Valid(repaired) {
		return repaired
	}
	if slice := balancedSlice(blob, 0); slice != "" && slice != blob {
		if repaired := repairJSON(slice); json.Valid(repaired) {
			return repaired
		}
	}
	return nil
}

// repairJSON rewrites the common JS artifacts in one string-aware pass:
// block and line comments dropped, single-quoted strings requoted, trailing
// commas removed. Content inside double-quoted strings is never touched, so
// apostrophes and URL slashes survive.
func repairJSON(s string) []byte {
	var out bytes.Buffer
	out.Grow(len(s))

	i := 0
	for i < len(s) {
		ch := s[i]
		switch ch {
		case '"':
			// copy the double-quoted string verbatim
			out.WriteByte(ch)
			i++
			for i < len(s) {
				c := s[i]
				out.WriteByte(c)
				i++
				if c == '\\' && i < len(s) {
					out.WriteByte(s[i])
					i++
					continue
				}
				if c == '"' {
					break
				}
			}
		case '\'':
			// requote as a double-quoted string, escaping inner quotes
			out.WriteByte('"')
			i++
			for i < len(s) {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					next := s[i+1]
					if next == '\'' {
						out.WriteByte('\'')
					} else {
						out.WriteByte('\\')
						out.WriteByte(next)
					}
					i += 2
					continue
				}
				if c == '\'' {
					i++
					break
				}
				if c == '"' {
					out.WriteString(`\"`)
				} else {
					out.WriteByte(c)
				}
				i++
			}
			out.WriteByte('"')
		case '/':
			if i+1 < len(s) && s[i+1] == '*' {
				if end := strings.Index(s[i+2:], "*/"); end >= 0 {
					i += 2 + end + 2
				} else {
					i = len(s)
				}
			} else if i+1 < len(s) && s[i+1] == '/' {
				for i < len(s) && s[i] != '\n' {
					i++
				}
			} else {
				out.WriteByte(ch)
				i++
			}
		case ',':
			// drop the comma when the next significant char closes a scope
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				i++
				continue
			}
			out.WriteByte(ch)
			i++
		default:
			out.WriteByte(ch)
			i++
		}
	}
	return out.Bytes()
}

// walkStateValue walks one JSON value depth-first in document order using
// the token stream, so "first occurrence wins" follows the document, not a
// map's iteration order.
func walkStateValue(raw []byte, f Fields) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	t, err := dec.Token()
	if err != nil {
		return
	}
	delim, ok := t.(json.Delim)
	if !ok {
		return
	}
	switch delim {
	case '{':
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return
			}
			key, _ := kt.(string)
			var vraw json.RawMessage
			if err := dec.Decode(&vraw); err != nil {
				return
			}
			handleStateKey(key, vraw, f)
		}
	case '[':
		for dec.More() {
			var vraw json.RawMessage
			if err := dec.Decode(&vraw); err != nil {
				return
			}
			walkStateValue(vraw, f)
		}
	}
}

func handleStateKey(key string, raw json.RawMessage, f Fields) {
	if statePhotoKeys[key] {
		if urls := photoURLs(raw); len(urls) > 0 {
			f.set(fieldImages, urls)
		}
		return
	}
	if key == "priceHistory" {
		if events := statePriceEvents(raw); len(events) > 0 {
			f.set(fieldPriceHistory, events)
		}
		return
	}
	if key == "agent" && len(raw) > 0 && raw[0] == '{' {
		if stateAgentObject(raw, f) {
			return
		}
	}
	if target, known := stateScalarKeys[key]; known {
		if v, scalar := scalarValue(raw); scalar {
			if target == fieldExternalID {
				f.set(target, idString(v))
			} else {
				f.set(target, v)
			}
			return
		}
		// known name holding a container: descend, don't capture
	}
	if len(raw) > 0 && (raw[0] == '{' || raw[0] == '[') {
		walkStateValue(raw, f)
	}
}

// scalarValue unmarshals raw when it is a JSON scalar.
func scalarValue(raw json.RawMessage) (any, bool) {
	if len(raw) == 0 || raw[0] == '{' || raw[0] == '[' {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// idString renders a scalar external id; numeric ids drop any float suffix.
func idString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// photoURLs flattens a photo array whose elements are URL strings or
// objects carrying url/rawUrl, preserving gallery order.
func photoURLs(raw json.RawMessage) []string {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var urls []string
	for _, item := range items {
		switch t := item.(type) {
		case string:
			if strings.HasPrefix(t, "http") {
				urls = append(urls, t)
			}
		case map[string]any:
			for _, k := range []string{"url", "rawUrl", "href"} {
				if u, ok := t[k].(string); ok && strings.HasPrefix(u, "http") {
					urls = append(urls, u)
					break
				}
			}
		}
	}
	return urls
}

// statePriceEvents converts a priceHistory array into price events; date
// strings stay raw here and are normalized after the cascade.
func statePriceEvents(raw json.RawMessage) []models.PriceEvent {
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var events []models.PriceEvent
	for _, item := range items {
		date, _ := item["date"].(string)
		label, _ := item["event"].(string)
		if date == "" && label == "" {
			continue
		}
		events = append(events, models.PriceEvent{
			Date:  date,
			Type:  classifyEvent(label),
			Price: normalize.ToInt(item["price"]),
			Notes: label,
		})
	}
	return events
}

// classifyEvent maps a site's event label onto the event vocabulary.
func classifyEvent(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "sold"):
		return models.EventSold
	case strings.Contains(l, "listed"):
		return models.EventListed
	case strings.Contains(l, "price"):
		return models.EventPriceChange
	default:
		return models.EventListed
	}
}

// stateAgentObject reads a nested {name, company, phone, email} agent node.
// Returns false when the object carries none of those keys, letting the
// walk descend instead.
func stateAgentObject(raw json.RawMessage, f Fields) bool {
	var node struct {
		Name    string `json:"name"`
		Company string `json:"company"`
		Phone   string `json:"phone"`
		Email   string `json:"email"`
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		return false
	}
	if node.Name == "" && node.Company == "" && node.Phone == "" {
		return false
	}
	f.set(fieldAgents, []models.Agent{{
		Name:      node.Name,
		Phone:     node.Phone,
		Brokerage: node.Company,
		Email:     node.Email,
	}})
	return true
}

// assembleStateAgent folds the attribution scalars into a single agent
// entry and drops the assembly keys.
func assembleStateAgent(f Fields) {
	name := f.str(stateAgentName)
	phone := f.str(stateAgentPhone)
	brokerage := f.str(stateAgentBrokerage)
	delete(f, stateAgentName)
	delete(f, stateAgentPhone)
	delete(f, stateAgentBrokerage)
	delete(f, stateBrokerPhone)

	if name == "" && phone == "" && brokerage == "" {
		return
	}
	f.set(fieldAgents, []models.Agent{{Name: name, Phone: phone, Brokerage: brokerage}})
}
