package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{in: "2026-02-25", want: "2026-02-25", valid: true},
		{in: "2026-02-25T10:00:00Z", want: "2026-02-25", valid: true},
		{in: "2026-02-25T23:30:00+01:00", want: "2026-02-25", valid: true},
		{in: "25.02.2026", want: "2026-02-25", valid: true},
		{in: "5.3.2026", want: "2026-03-05", valid: true},
		{in: " 2026-03-07 ", want: "2026-03-07", valid: true},
		{in: "2026-02-30", valid: false},
		{in: "31.04.2026", valid: false},
		{in: "2026/02/25", valid: false},
		{in: "Mittwoch", valid: false},
		{in: "", valid: false},
		{in: "T", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := ParseDate(tt.in)
			assert.Equal(t, tt.valid, d.Valid())
			if tt.valid {
				assert.Equal(t, tt.want, d.String())
			} else {
				assert.Equal(t, "", d.String())
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	for _, in := range []string{"2026-02-25", "2026-02-25T10:00:00Z", "25.02.2026"} {
		assert.Equal(t, "2026-02-25", Canonical(in), in)
	}
	assert.Equal(t, "demnächst", Canonical("demnächst"))
}

func TestDateOrdering(t *testing.T) {
	a := ParseDate("2026-02-25")
	b := ParseDate("2026-03-01")
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))

	today := DateOf(time.Date(2026, 2, 25, 18, 45, 0, 0, time.UTC))
	assert.Equal(t, "2026-02-25", today.String())
}
