// Package receipt extracts trip data from pasted receipt text. Parsing
// is best-effort: every invocation returns a result, never an error,
// and the caller inspects the confidence label and errors list.
package receipt

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/driveradar/driveradar/internal/model"
)

// Confidence labels how much of the receipt parsed cleanly.
type Confidence string

const (
	// ConfidenceHigh: amount and date both parsed with no errors.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium: some non-amount field failed.
	ConfidenceMedium Confidence = "medium"
	// ConfidenceLow: the amount itself failed; Amount is zero and the
	// caller must treat the result as an error state.
	ConfidenceLow Confidence = "low"
)

// Parsed is the outcome of one parse attempt.
type Parsed struct {
	ID          string         `json:"id"`
	Platform    model.Platform `json:"platform"`
	TimestampMs int64          `json:"timestampMs"`
	Amount      float64        `json:"amount"`
	// DurationMin is nil when no duration was found.
	DurationMin *float64   `json:"durationMin,omitempty"`
	Currency    string     `json:"currency"`
	RawText     string     `json:"rawText"`
	Confidence  Confidence `json:"parseConfidence"`
	Errors      []string   `json:"errors,omitempty"`
}

type patternSet struct {
	date     []*regexp.Regexp
	amount   []*regexp.Regexp
	duration []*regexp.Regexp
}

var uberPatterns = patternSet{
	date: []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d{1,2}[/.]\d{1,2}[/.]\d{2,4})\s*[,\s]+(\d{1,2}:\d{2})`),
		regexp.MustCompile(`(?i)(\d{4}-\d{2}-\d{2})\s*[T\s](\d{2}:\d{2})`),
		regexp.MustCompile(`(?i)(\d{1,2}\s+\w+\s+\d{4})\s*[,\s]+(\d{1,2}:\d{2})`),
		regexp.MustCompile(`(?i)Trip\s+on\s+(\w+\s+\d{1,2},?\s+\d{4})`),
	},
	amount: []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Total|Amount|Fare)[:\s]*(?:PLN|zł|€|EUR|\$)?\s*(\d+[.,]\d{2})`),
		regexp.MustCompile(`(?i)(\d+[.,]\d{2})\s*(?:PLN|zł|€|EUR)`),
		regexp.MustCompile(`(?i)(?:PLN|zł|€|EUR)\s*(\d+[.,]\d{2})`),
		regexp.MustCompile(`(?i)Zapłacono[:\s]*(\d+[.,]\d{2})`),
	},
	duration: []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Trip\s+time|Duration|Czas)[:\s]*(\d+)\s*(?:min|m)`),
		regexp.MustCompile(`(?i)(\d+)\s*min(?:utes?)?`),
		regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(?:hrs?|hours?)`),
	},
}

var boltPatterns = patternSet{
	date: []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d{1,2}[/.]\d{1,2}[/.]\d{2,4})\s*[,\s]+(\d{1,2}:\d{2})`),
		regexp.MustCompile(`(?i)(\d{4}-\d{2}-\d{2})\s*[T\s](\d{2}:\d{2})`),
		regexp.MustCompile(`(?i)Ride\s+on\s+(\d{1,2}\s+\w+\s+\d{4})`),
	},
	amount: []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Total|Suma|Price|Cena)[:\s]*(?:PLN|zł|€|EUR)?\s*(\d+[.,]\d{2})`),
		regexp.MustCompile(`(?i)(\d+[.,]\d{2})\s*(?:PLN|zł)`),
		regexp.MustCompile(`(?i)(?:PLN|zł)\s*(\d+[.,]\d{2})`),
	},
	duration: []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Duration|Czas\s+przejazdu)[:\s]*(\d+)\s*(?:min|m)`),
		regexp.MustCompile(`(?i)(\d+)\s*min`),
	},
}

var freenowPatterns = patternSet{
	date: []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d{1,2}[/.]\d{1,2}[/.]\d{2,4})\s*[,\s]+(\d{1,2}:\d{2})`),
		regexp.MustCompile(`(?i)(\d{4}-\d{2}-\d{2})\s*[T\s](\d{2}:\d{2})`),
		regexp.MustCompile(`(?i)Trip\s+(\d{1,2}\s+\w+\s+\d{4})`),
	},
	amount: []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Total|Suma|Fare)[:\s]*(?:PLN|zł|€|EUR)?\s*(\d+[.,]\d{2})`),
		regexp.MustCompile(`(?i)(\d+[.,]\d{2})\s*(?:PLN|zł|€)`),
	},
	duration: []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Trip\s+duration|Czas)[:\s]*(\d+)\s*(?:min|m)`),
		regexp.MustCompile(`(?i)(\d+)\s*min`),
	},
}

var patternsByPlatform = map[model.Platform]patternSet{
	model.PlatformUber:    uberPatterns,
	model.PlatformBolt:    boltPatterns,
	model.PlatformFreeNow: freenowPatterns,
}

const (
	maxRawTextLen      = 500
	maxPlausibleMinute = 300
	defaultCurrency    = "PLN"
)

func parseAmount(text string, patterns []*regexp.Regexp) (float64, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil && v > 0 {
			return v, true
		}
	}
	return 0, false
}

func parseDuration(text string, patterns []*regexp.Regexp) (float64, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) > 2 && m[2] != "" {
			// HH:MM hours form.
			hours, err1 := strconv.Atoi(m[1])
			minutes, err2 := strconv.Atoi(m[2])
			if err1 == nil && err2 == nil {
				return float64(hours*60 + minutes), true
			}
			continue
		}
		minutes, err := strconv.Atoi(m[1])
		if err == nil && minutes > 0 && minutes < maxPlausibleMinute {
			return float64(minutes), true
		}
	}
	return 0, false
}

var dateLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2/1/2006 15:04",
	"2.1.2006 15:04",
	"2 January 2006 15:04",
	"January 2, 2006",
	"January 2 2006",
}

var dmyParts = regexp.MustCompile(`(\d+)[/.,-](\d+)[/.,-](\d{2,4})`)
var hmParts = regexp.MustCompile(`(\d{1,2}):(\d{2})`)

func parseDate(text string, patterns []*regexp.Regexp) (time.Time, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		dateStr := m[1]
		if len(m) > 2 && m[2] != "" {
			dateStr += " " + m[2]
		}
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, dateStr, time.Local); err == nil {
				return t, true
			}
		}
		// Manual D/M/Y fallback, defaulting to noon when no time is
		// present.
		if parts := dmyParts.FindStringSubmatch(m[1]); parts != nil {
			day, _ := strconv.Atoi(parts[1])
			month, _ := strconv.Atoi(parts[2])
			year, _ := strconv.Atoi(parts[3])
			if year < 100 {
				year += 2000
			}
			hour, minute := 12, 0
			if len(m) > 2 {
				if tm := hmParts.FindStringSubmatch(m[2]); tm != nil {
					hour, _ = strconv.Atoi(tm[1])
					minute, _ = strconv.Atoi(tm[2])
				}
			}
			if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
				return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local), true
			}
		}
	}
	return time.Time{}, false
}

// detectCurrency sniffs a currency code from symbols in the text and
// validates it as a real ISO 4217 unit.
func detectCurrency(text string) string {
	var code string
	switch {
	case regexp.MustCompile(`(?i)PLN|zł|złoty`).MatchString(text):
		code = "PLN"
	case regexp.MustCompile(`€|EUR`).MatchString(text):
		code = "EUR"
	case regexp.MustCompile(`\$|USD`).MatchString(text):
		code = "USD"
	default:
		return defaultCurrency
	}
	if _, err := currency.ParseISO(code); err != nil {
		return defaultCurrency
	}
	return code
}

// Parse extracts amount, duration, timestamp, and currency from
// receipt text using the platform's pattern list.
func Parse(text string, platform model.Platform, now time.Time) Parsed {
	patterns, ok := patternsByPlatform[platform]
	if !ok {
		patterns = uberPatterns
	}

	var errs []string

	amount, amountOK := parseAmount(text, patterns.amount)
	if !amountOK {
		errs = append(errs, "could not parse amount")
	}
	duration, durationOK := parseDuration(text, patterns.duration)
	date, dateOK := parseDate(text, patterns.date)
	if !dateOK {
		errs = append(errs, "could not parse date/time")
		date = now
	}

	confidence := ConfidenceHigh
	if len(errs) > 0 {
		confidence = ConfidenceMedium
	}
	if !amountOK {
		confidence = ConfidenceLow
	}

	// Truncate by runes so a trailing multi-byte character is kept whole.
	raw := text
	if runes := []rune(raw); len(runes) > maxRawTextLen {
		raw = string(runes[:maxRawTextLen])
	}

	parsed := Parsed{
		ID:          "receipt-" + uuid.New().String(),
		Platform:    platform,
		TimestampMs: date.UnixMilli(),
		Amount:      amount,
		Currency:    detectCurrency(text),
		RawText:     raw,
		Confidence:  confidence,
		Errors:      errs,
	}
	if durationOK {
		parsed.DurationMin = &duration
	}
	return parsed
}

// AutoDetectPlatform guesses the platform from keywords in the text.
// Returns "" when nothing matches.
func AutoDetectPlatform(text string) model.Platform {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "uber"):
		return model.PlatformUber
	case strings.Contains(lower, "bolt"):
		return model.PlatformBolt
	case strings.Contains(lower, "freenow"), strings.Contains(lower, "free now"), strings.Contains(lower, "mytaxi"):
		return model.PlatformFreeNow
	}
	return ""
}

// ToEarningsLog converts a parsed receipt into an earnings log for the
// given zone. The caller is expected to reject low-confidence parses.
func (p Parsed) ToEarningsLog(zoneID string) model.EarningsLog {
	log := model.EarningsLog{
		ID:          uuid.New().String(),
		Platform:    p.Platform,
		Amount:      p.Amount,
		Zone:        zoneID,
		TimestampMs: p.TimestampMs,
	}
	if p.DurationMin != nil {
		log.DurationMin = *p.DurationMin
	}
	return log
}
