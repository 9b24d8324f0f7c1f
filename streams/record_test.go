package streams

import (
	"testing"
	"time"
)

func TestRecord_SetStartedAt(t *testing.T) {
	intPtr := func(n int) *int { return &n }

	tests := []struct {
		name        string
		raw         string
		wantHour    *int
		wantWeekday string
		wantWeekend bool
		wantZero    bool
	}{
		{
			name:        "saturday afternoon",
			raw:         "2024-03-09T14:30:00Z",
			wantHour:    intPtr(14),
			wantWeekday: "Saturday",
			wantWeekend: true,
		},
		{
			name:        "sunday is weekend",
			raw:         "2024-03-10T03:15:00Z",
			wantHour:    intPtr(3),
			wantWeekday: "Sunday",
			wantWeekend: true,
		},
		{
			name:        "monday is weekday",
			raw:         "2024-03-11T23:59:59Z",
			wantHour:    intPtr(23),
			wantWeekday: "Monday",
			wantWeekend: false,
		},
		{
			name:        "offset timestamps normalize to UTC",
			raw:         "2024-03-09T23:30:00-05:00", // 04:30 UTC Sunday
			wantHour:    intPtr(4),
			wantWeekday: "Sunday",
			wantWeekend: true,
		},
		{
			name:     "empty value leaves temporal state unknown",
			raw:      "",
			wantZero: true,
		},
		{
			name:     "unparsable value leaves temporal state unknown",
			raw:      "not-a-timestamp",
			wantZero: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{ID: "1"}
			r.SetStartedAt(tt.raw)

			if tt.wantZero {
				if r.HourOfDay != nil {
					t.Errorf("HourOfDay = %d, want nil", *r.HourOfDay)
				}
				if r.Weekday != "" {
					t.Errorf("Weekday = %q, want empty", r.Weekday)
				}
				if r.IsWeekend {
					t.Error("IsWeekend = true, want false")
				}
				if !r.StartedAt.IsZero() {
					t.Errorf("StartedAt = %v, want zero", r.StartedAt)
				}
				return
			}

			if r.HourOfDay == nil {
				t.Fatal("HourOfDay = nil, want value")
			}
			if *r.HourOfDay != *tt.wantHour {
				t.Errorf("HourOfDay = %d, want %d", *r.HourOfDay, *tt.wantHour)
			}
			if r.Weekday != tt.wantWeekday {
				t.Errorf("Weekday = %q, want %q", r.Weekday, tt.wantWeekday)
			}
			if r.IsWeekend != tt.wantWeekend {
				t.Errorf("IsWeekend = %v, want %v", r.IsWeekend, tt.wantWeekend)
			}
			if r.StartedAt.Location() != time.UTC {
				t.Errorf("StartedAt location = %v, want UTC", r.StartedAt.Location())
			}
		})
	}
}

func TestRecord_SetStartedAtOverwritesPrevious(t *testing.T) {
	r := Record{ID: "1"}
	r.SetStartedAt("2024-03-09T14:30:00Z")
	if r.HourOfDay == nil {
		t.Fatal("expected derived hour before overwrite")
	}

	// A later unparsable value must reset, not keep stale derivations.
	r.SetStartedAt("garbage")
	if r.HourOfDay != nil || r.Weekday != "" || r.IsWeekend {
		t.Errorf("stale temporal attributes survived: hour=%v weekday=%q weekend=%v",
			r.HourOfDay, r.Weekday, r.IsWeekend)
	}
}
