package verify

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"
)

// DateFormatter renders ISO instants as locale specific dates: two-digit
// month and day, four-digit year.
type DateFormatter struct {
	layout string
	loc    *time.Location
}

// regions that write the month before the day
var monthFirstRegions = map[string]bool{
	"US": true,
	"PH": true,
	"FM": true,
	"MH": true,
	"PW": true,
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// NewDateFormatter builds a formatter for region. region accepts a bare
// region code ("AU") or a BCP 47 tag ("en-AU"). dateFormat overrides the
// region layout only when it is a complete DD, MM and YYYY pattern; any
// other value is ignored.
// A nil loc means time.Local.
func NewDateFormatter(region, dateFormat string, loc *time.Location) *DateFormatter {
	if loc == nil {
		loc = time.Local
	}

	layout := layoutFromPattern(dateFormat)
	if layout == "" {
		layout = layoutForRegion(region)
	}

	return &DateFormatter{layout: layout, loc: loc}
}

// Layout returns the Go time layout in use
func (f *DateFormatter) Layout() string {
	return f.layout
}

// Format converts an ISO instant to the configured layout. Values that do
// not parse as a date are returned unchanged. Instants without a zone are
// read in the formatter's location.
func (f *DateFormatter) Format(value string) string {
	trimmed := strings.TrimSpace(value)

	for _, layout := range isoLayouts {
		t, err := time.ParseInLocation(layout, trimmed, f.loc)
		if err != nil {
			continue
		}

		return t.In(f.loc).Format(f.layout)
	}

	return value
}

func layoutForRegion(region string) string {
	code := regionCode(region)

	switch {
	case monthFirstRegions[code]:
		return "01/02/2006"
	case code == "CA":
		return "2006-01-02"
	case code == "ZA":
		return "2006/01/02"
	default:
		return "02/01/2006"
	}
}

func regionCode(region string) string {
	region = strings.TrimSpace(region)
	if region == "" {
		return ""
	}

	if r, err := language.ParseRegion(region); err == nil {
		return r.String()
	}

	tag, err := language.Parse(region)
	if err != nil {
		return strings.ToUpper(region)
	}

	r, _ := tag.Region()

	return r.String()
}

// patternTokens maps the date format tokens accepted as an override
var patternTokens = map[string]string{
	"YYYY": "2006",
	"yyyy": "2006",
	"MM":   "01",
	"DD":   "02",
	"dd":   "02",
}

// layoutFromPattern converts a "DD/MM/YYYY" style pattern to a Go layout.
// The pattern must hold a four-digit year, two-digit month and two-digit
// day exactly once, separated by non-alphanumeric characters; anything
// else returns "" so the region layout applies.
func layoutFromPattern(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return ""
	}

	var (
		layout strings.Builder
		seen   = make(map[string]bool)
	)

	runes := []rune(pattern)

	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case unicode.IsLetter(r):
			end := i
			for end < len(runes) && runes[end] == r {
				end++
			}

			token := string(runes[i:end])

			value, ok := patternTokens[token]
			if !ok || seen[value] {
				return ""
			}

			seen[value] = true
			layout.WriteString(value)
			i = end
		case unicode.IsDigit(r) || r == '_':
			return ""
		default:
			layout.WriteRune(r)
			i++
		}
	}

	if len(seen) != 3 {
		return ""
	}

	return layout.String()
}
