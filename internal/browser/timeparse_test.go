package browser

import (
	"errors"
	"testing"
	"time"
)

func TestParseSlotTime(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		dateLabel string
		startTime string
		wantMonth time.Month
		wantDay   int
		wantHour  int
		wantMin   int
	}{
		{
			name:      "afternoon slot",
			dateLabel: "Monday, January 4 - Times available",
			startTime: "2:30pm",
			wantMonth: time.January, wantDay: 4, wantHour: 14, wantMin: 30,
		},
		{
			name:      "midnight",
			dateLabel: "Friday, July 17 - Times available",
			startTime: "12:00am",
			wantMonth: time.July, wantDay: 17, wantHour: 0, wantMin: 0,
		},
		{
			name:      "noon",
			dateLabel: "December 25",
			startTime: "12:15 PM",
			wantMonth: time.December, wantDay: 25, wantHour: 12, wantMin: 15,
		},
		{
			name:      "morning with surrounding space",
			dateLabel: "Tuesday, September 1 - Times available",
			startTime: "  9:05 am ",
			wantMonth: time.September, wantDay: 1, wantHour: 9, wantMin: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSlotTime(tt.dateLabel, tt.startTime, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := time.Date(now.Year(), tt.wantMonth, tt.wantDay, tt.wantHour, tt.wantMin, 0, 0, now.Location())
			if !got.Equal(want) {
				t.Fatalf("got %v, want %v", got, want)
			}
		})
	}
}

func TestParseSlotTimeMalformed(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		dateLabel string
		startTime string
	}{
		{"empty time", "Monday, January 4", ""},
		{"24h time", "Monday, January 4", "14:30"},
		{"garbage time", "Monday, January 4", "soonish"},
		{"hour out of range", "Monday, January 4", "13:30pm"},
		{"minute out of range", "Monday, January 4", "2:75pm"},
		{"no month in label", "Tomorrow", "2:30pm"},
		{"empty label", "", "2:30pm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSlotTime(tt.dateLabel, tt.startTime, now)
			if !errors.Is(err, ErrMalformedSlotTime) {
				t.Fatalf("expected ErrMalformedSlotTime, got %v", err)
			}
		})
	}
}
