package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propsift/models"
	"propsift/normalize"
)

// Text-probe extractor: regex passes over the rendered markdown (or the
// visible text when no markdown was captured). This is the stage that keeps
// a record usable when a site ships no structured data at all, so every
// probe tolerates absence and sets nothing on a miss.

const (
	imageCandidateLimit = 80
	priceEventWindow    = 160
)

var (
	dollarRegex  = regexp.MustCompile(`\$\s*([\d,]+)`)
	bedsRegex    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*beds?\b`)
	bathsRegex   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*baths?\b`)
	areaRegex    = regexp.MustCompile(`(?i)([\d,]+)\s*(?:sq\.?\s?ft|sqft|square\s?feet)`)
	addressRegex = regexp.MustCompile(`(\d+\s+[A-Za-z0-9\s.#\-]+),\s*([A-Za-z\s]+),\s*([A-Z]{2})\s*(\d{5})`)

	yearBuiltRegex    = regexp.MustCompile(`(?i)Built in (\d{4})`)
	propertyKindRegex = regexp.MustCompile(`(?i)Single Family Residence|Condo|Apartment|Townhouse|House|Multi[- ]?Family`)
	statusWordRegex   = regexp.MustCompile(`(?i)\b(Active|Pending|Contingent|Sold|Withdrawn)\b`)
	descriptionRegex  = regexp.MustCompile(`(?i)##\s*(?:What's special|Description)\s*\n+([\s\S]+?)(?:\n##|\z)`)

	boldStatRegex  = regexp.MustCompile(`(?i)\*\*([\d,]+)\*\*\s*(views|saves|days)`)
	plainStatRegex = regexp.MustCompile(`(?i)\b([\d,]+)\s+(views|saves|favorites)\b`)

	walkScoreTrailRegex = regexp.MustCompile(`(?i)walk score(?:®|\(r\))?\s*:?\s*\*{0,2}(\d{1,3})\b`)
	walkScoreLeadRegex  = regexp.MustCompile(`(?i)\*\*(\d{1,3})\*\*\s*(?:/\s*100\s*)?walk score`)

	listedByRegex     = regexp.MustCompile(`(?im)^\s*(?:Listing by|Listed by)\s*:?\s*(.+)$`)
	agentSectionRegex = regexp.MustCompile(`(?i)##\s*Agent information[\s\S]+?(?:\n##|\z)`)
	agentSplitRegex   = regexp.MustCompile(`\s[-–|]\s`)
	leadingPrepRegex  = regexp.MustCompile(`(?i)^(?:at|with|from)\s+`)

	monthlySectionRegex = regexp.MustCompile(`(?i)##\s*Monthly cost[\s\S]+?(?:\n##|\z)`)
	utilitiesRegex      = regexp.MustCompile(`(?i)Utilities\s*([^\n]+)`)

	markdownImageRegex = regexp.MustCompile(`!\[[^\]]*\]\((https?://[^\s)]+)\)`)

	streetHashRegex = regexp.MustCompile(`^#\s*`)
	multiSpaceRegex = regexp.MustCompile(`\s{2,}`)
)

// ExtractHeuristic runs the text probes and the image harvest.
func ExtractHeuristic(doc *Document) Fields {
	f := Fields{}
	text := doc.Text()
	if text != "" {
		probeListPrice(text, f)
		probeSpecs(text, f)
		probeAddress(text, f)
		probeVocabulary(text, f)
		probeDescription(text, f)
		probeEngagement(text, f)
		probeWalkScore(text, f)
		probeMonthlyCosts(text, f)
		probeAgent(text, f)
		probePriceHistory(text, f)
	}
	if dom := doc.DOM(); dom != nil {
		f.set(fieldTitle, strings.TrimSpace(dom.Find("title").First().Text()))
	}
	if urls := harvestImages(doc); len(urls) > 0 {
		f.set(fieldImages, urls)
	}
	return f
}

// probeListPrice takes the maximum dollar amount on the page. Listings quote
// the asking price larger than any monthly cost or fee beside it.
func probeListPrice(text string, f Fields) {
	var best *float64
	for _, m := range dollarRegex.FindAllStringSubmatch(text, -1) {
		if v := normalize.ToFloat(m[1]); v != nil && (best == nil || *v > *best) {
			best = v
		}
	}
	if best != nil {
		f.set(fieldListPrice, *best)
	}
}

func probeSpecs(text string, f Fields) {
	if m := bedsRegex.FindStringSubmatch(text); m != nil {
		f.set(fieldBeds, m[1])
	}
	if m := bathsRegex.FindStringSubmatch(text); m != nil {
		f.set(fieldBaths, m[1])
	}
	if m := areaRegex.FindStringSubmatch(text); m != nil {
		f.set(fieldInteriorArea, m[1])
	}
}

// probeAddress matches the "123 Main St, Springfield, IL 62704" shape and
// cleans markdown artifacts out of the street.
func probeAddress(text string, f Fields) {
	m := addressRegex.FindStringSubmatch(text)
	if m == nil {
		return
	}
	street := strings.ReplaceAll(m[1], "\n", " ")
	street = streetHashRegex.ReplaceAllString(strings.TrimSpace(street), "")
	street = multiSpaceRegex.ReplaceAllString(street, " ")
	f.set(fieldStreet, street)
	f.set(fieldCity, strings.TrimSpace(m[2]))
	f.set(fieldState, m[3])
	f.set(fieldPostalCode, m[4])
}

func probeVocabulary(text string, f Fields) {
	if m := yearBuiltRegex.FindStringSubmatch(text); m != nil {
		f.set(fieldYearBuilt, m[1])
	}
	if m := propertyKindRegex.FindString(text); m != "" {
		f.set(fieldPropertyType, m)
	}
	if m := statusWordRegex.FindStringSubmatch(text); m != nil {
		f.set(fieldStatus, strings.ToLower(m[1]))
	}
}

func probeDescription(text string, f Fields) {
	if m := descriptionRegex.FindStringSubmatch(text); m != nil {
		f.set(fieldDescription, strings.TrimSpace(m[1]))
	}
}

// probeEngagement reads the bolded stat strip first ("**1,234** views"),
// then plain-text mentions. "days" is time on market, not engagement.
func probeEngagement(text string, f Fields) {
	record := func(count, label string) {
		switch strings.ToLower(label) {
		case "views":
			f.set(fieldViews, count)
		case "saves", "favorites":
			f.set(fieldSaves, count)
		case "days":
			f.set(fieldDaysOnMarket, count)
		}
	}
	for _, m := range boldStatRegex.FindAllStringSubmatch(text, -1) {
		record(m[1], m[2])
	}
	for _, m := range plainStatRegex.FindAllStringSubmatch(text, -1) {
		record(m[1], m[2])
	}
}

// probeWalkScore reads "Walk Score®: 87" and the markdown-bold stat form
// "**87** Walk Score". Scores above 100 are display noise, not scores.
func probeWalkScore(text string, f Fields) {
	var m []string
	if m = walkScoreTrailRegex.FindStringSubmatch(text); m == nil {
		m = walkScoreLeadRegex.FindStringSubmatch(text)
	}
	if m == nil {
		return
	}
	if v := normalize.ToInt(m[1]); v != nil && *v <= 100 {
		f.set(fieldWalkScore, *v)
	}
}

// probeMonthlyCosts parses the "## Monthly cost" section into its labeled
// line items.
func probeMonthlyCosts(text string, f Fields) {
	sect := monthlySectionRegex.FindString(text)
	if sect == "" {
		return
	}
	pick := func(label string) *int {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) + `\s*\$([\d,]+)`)
		if m := re.FindStringSubmatch(sect); m != nil {
			return normalize.ToInt(m[1])
		}
		return nil
	}
	mc := &models.MonthlyCosts{
		PrincipalAndInterest: pick("Principal & interest"),
		MortgageInsurance:    pick("Mortgage insurance"),
		PropertyTaxes:        pick("Property taxes"),
		HomeInsurance:        pick("Home insurance"),
		HOAFees:              pick("HOA fees"),
		Currency:             "USD",
	}
	if m := utilitiesRegex.FindStringSubmatch(sect); m != nil {
		mc.Utilities = strings.TrimSpace(m[1])
	}
	if mc.PrincipalAndInterest == nil && mc.MortgageInsurance == nil && mc.PropertyTaxes == nil &&
		mc.HomeInsurance == nil && mc.HOAFees == nil && mc.Utilities == "" {
		return
	}
	f.set(fieldMonthly, mc)
}

// probeAgent reads the "Listed by"/"Listing by" line, or the first line of
// an "## Agent information" section. With a phone present the line splits
// around it, brokerage left and agent right; without one it splits on a
// spaced dash or pipe.
func probeAgent(text string, f Fields) {
	var line string
	if m := listedByRegex.FindStringSubmatch(text); m != nil {
		line = strings.TrimSpace(m[1])
	} else if sect := agentSectionRegex.FindString(text); sect != "" {
		for _, ln := range strings.Split(sect, "\n") {
			ln = strings.TrimSpace(ln)
			if ln != "" && !strings.HasPrefix(ln, "##") {
				line = ln
				break
			}
		}
	}
	if line == "" {
		return
	}

	agent := models.Agent{}
	if phone := normalize.FindPhone(line); phone != "" {
		parts := strings.SplitN(line, phone, 2)
		// "(917-573-5102" happens when only the opening paren made the
		// match; the paren belongs to the line, not the number
		if strings.HasPrefix(phone, "(") && !strings.Contains(phone, ")") {
			phone = phone[1:]
		}
		agent.Phone = phone
		left := strings.Trim(parts[0], " -–|•(")
		left = strings.TrimSpace(leadingPrepRegex.ReplaceAllString(left, ""))
		agent.Brokerage = left
		if len(parts) > 1 {
			agent.Name = strings.Trim(parts[1], " -–|•)")
		}
	} else {
		chunks := agentSplitRegex.Split(line, -1)
		agent.Brokerage = strings.TrimSpace(chunks[0])
		if len(chunks) > 1 {
			agent.Name = strings.TrimSpace(chunks[1])
		}
	}
	if agent.Name == "" && agent.Brokerage == "" && agent.Phone == "" {
		return
	}
	f.set(fieldAgents, []models.Agent{agent})
}

// probePriceHistory pairs long-form dates with a dollar amount inside a
// bounded window. Classification reads only the segment from the date to
// its amount, so one row's keywords never color the row before it. Repeated
// date+price pairs collapse to one event.
func probePriceHistory(text string, f Fields) {
	seen := map[string]bool{}
	var events []models.PriceEvent
	for _, loc := range normalize.LongDateRegex.FindAllStringIndex(text, -1) {
		end := loc[1] + priceEventWindow
		if end > len(text) {
			end = len(text)
		}
		window := text[loc[0]:end]
		idx := dollarRegex.FindStringSubmatchIndex(window)
		if idx == nil {
			continue
		}
		segment := window[:idx[1]]
		amount := window[idx[2]:idx[3]]
		date := text[loc[0]:loc[1]]
		key := date + "|" + amount
		if seen[key] {
			continue
		}
		seen[key] = true
		events = append(events, models.PriceEvent{
			Date:  date,
			Type:  classifyEvent(segment),
			Price: normalize.ToInt(amount),
		})
	}
	if len(events) > 0 {
		f.set(fieldPriceHistory, events)
	}
}

// harvestImages gathers candidate URLs from img tags (lazy-load attributes
// included) and markdown image links. Relative references resolve against
// the page origin; site-specific filtering and upgrades come later, in
// media resolution.
func harvestImages(doc *Document) []string {
	seen := map[string]bool{}
	var urls []string
	add := func(raw string) {
		if len(urls) >= imageCandidateLimit {
			return
		}
		u := doc.ResolveURL(strings.TrimSpace(raw))
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	if dom := doc.DOM(); dom != nil {
		dom.Find("img").Each(func(_ int, s *goquery.Selection) {
			for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-original"} {
				if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
					add(v)
					break
				}
			}
		})
	}
	for _, m := range markdownImageRegex.FindAllStringSubmatch(doc.Markdown, -1) {
		add(m[1])
	}
	return urls
}
