package transform

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const isoDate = "2006-01-02"

// dateFormats are tried in order after strict ISO validation fails. The
// first successful parse wins, so a date like 03/04/2024 is read as
// DD/MM/YYYY by list position, never flagged as ambiguous.
var dateFormats = []string{
	"02/01/2006", // DD/MM/YYYY
	"01/02/2006", // MM/DD/YYYY
	"2006/01/02", // YYYY/MM/DD
	"02-01-2006",
	"01-02-2006",
	"02.01.2006",
	"2006.01.02",
	"2 January 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// FixDate validates or repairs a date string to canonical YYYY-MM-DD.
// When no known format matches, it returns today's date and logs a warning
// tagged with contextID (typically the invoice number) for audit. Never fails.
func FixDate(raw, contextID string) string {
	s := strings.TrimSpace(raw)
	if s != "" {
		if t, err := time.Parse(isoDate, s); err == nil {
			return t.Format(isoDate)
		}
		for _, layout := range dateFormats {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(isoDate)
			}
		}
	}

	today := time.Now().Format(isoDate)
	log.Warn().
		Str("invoice", contextID).
		Str("raw_date", raw).
		Str("fallback", today).
		Msg("unparseable invoice date, defaulting to today")
	return today
}
