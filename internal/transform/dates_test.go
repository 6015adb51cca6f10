package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"already canonical", "2024-03-15", "2024-03-15"},
		{"day first slashes", "15/03/2024", "2024-03-15"},
		{"month first when day is impossible", "03/15/2024", "2024-03-15"},
		{"year first slashes", "2024/03/15", "2024-03-15"},
		{"dotted", "15.03.2024", "2024-03-15"},
		{"dashes", "15-03-2024", "2024-03-15"},
		{"long month name", "15 March 2024", "2024-03-15"},
		{"us month name", "March 15, 2024", "2024-03-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FixDate(tt.raw, "INV-1"))
		})
	}
}

func TestFixDateAmbiguousPrefersDayFirst(t *testing.T) {
	// 03/04/2024 parses under both DD/MM and MM/DD; list order decides.
	assert.Equal(t, "2024-04-03", FixDate("03/04/2024", "INV-1"))
}

func TestFixDateUnparseableFallsBackToToday(t *testing.T) {
	today := time.Now().Format("2006-01-02")

	// 31/02/2024 names a day that does not exist in any supported format.
	assert.Equal(t, today, FixDate("31/02/2024", "INV-1"))
	assert.Equal(t, today, FixDate("not a date", "INV-1"))
	assert.Equal(t, today, FixDate("", "INV-1"))
}
