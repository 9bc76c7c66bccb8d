package verify

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestDateFormatter(t *testing.T) {
	sydney, err := time.LoadLocation("Australia/Sydney")
	assert.NoError(t, err)

	tests := []struct {
		name       string
		region     string
		dateFormat string
		loc        *time.Location
		input      string
		want       string
	}{
		{name: "day first", region: "AU", loc: time.UTC, input: "2024-03-05T10:00:00.000Z", want: "05/03/2024"},
		{name: "month first", region: "US", loc: time.UTC, input: "2024-03-05T10:00:00.000Z", want: "03/05/2024"},
		{name: "philippines", region: "PH", loc: time.UTC, input: "2024-03-05T10:00:00Z", want: "03/05/2024"},
		{name: "bcp47 tag", region: "en-GB", loc: time.UTC, input: "2024-03-05T10:00:00Z", want: "05/03/2024"},
		{name: "canada", region: "CA", loc: time.UTC, input: "2024-03-05T10:00:00Z", want: "2024-03-05"},
		{name: "south africa", region: "ZA", loc: time.UTC, input: "2024-03-05T10:00:00Z", want: "2024/03/05"},
		{name: "timezone shifts the day", region: "AU", loc: sydney, input: "2024-03-05T20:00:00.000Z", want: "06/03/2024"},
		{name: "explicit format", region: "US", dateFormat: "YYYY.MM.DD", loc: time.UTC, input: "2024-03-05T10:00:00Z", want: "2024.03.05"},
		{name: "lowercase format", region: "US", dateFormat: "dd-MM-yyyy", loc: time.UTC, input: "2024-03-05T10:00:00Z", want: "05-03-2024"},
		{name: "single letter tokens fall back", region: "AU", dateFormat: "M/D/YYYY", loc: time.UTC, input: "2024-03-05T10:00:00.000Z", want: "05/03/2024"},
		{name: "month name falls back", region: "AU", dateFormat: "DD-MMM-YYYY", loc: time.UTC, input: "2024-03-05T10:00:00.000Z", want: "05/03/2024"},
		{name: "lowercase minutes fall back", region: "AU", dateFormat: "d/m/yyyy", loc: time.UTC, input: "2024-03-05T10:00:00.000Z", want: "05/03/2024"},
		{name: "missing year falls back", region: "US", dateFormat: "DD/MM", loc: time.UTC, input: "2024-03-05T10:00:00Z", want: "03/05/2024"},
		{name: "two digit year falls back", region: "US", dateFormat: "DD/MM/YY", loc: time.UTC, input: "2024-03-05T10:00:00Z", want: "03/05/2024"},
		{name: "date only", region: "AU", loc: sydney, input: "2024-03-05", want: "05/03/2024"},
		{name: "not a date", region: "AU", loc: time.UTC, input: "Alice", want: "Alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDateFormatter(tt.region, tt.dateFormat, tt.loc)
			assert.Equal(t, tt.want, f.Format(tt.input))
		})
	}
}

func TestDateFormatter_Layout(t *testing.T) {
	assert.Equal(t, "02/01/2006", NewDateFormatter("AU", "", time.UTC).Layout())
	assert.Equal(t, "02/01/2006", NewDateFormatter("AU", "DD.MM.YYYY.MM", time.UTC).Layout())
	assert.Equal(t, "2006.01.02", NewDateFormatter("AU", " YYYY.MM.DD ", time.UTC).Layout())
}
