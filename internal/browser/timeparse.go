package browser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// e.g. "2:30pm", "12:00 AM"
	slotTimeRe = regexp.MustCompile(`(?i)^\s*(\d{1,2}):(\d{2})\s*([ap]m)\s*$`)

	// e.g. "Monday, January 4 - Times available" -> "January", "4"
	dateLabelRe = regexp.MustCompile(`(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2})`)
)

var monthIndex = map[string]time.Month{
	"January": time.January, "February": time.February, "March": time.March,
	"April": time.April, "May": time.May, "June": time.June,
	"July": time.July, "August": time.August, "September": time.September,
	"October": time.October, "November": time.November, "December": time.December,
}

// ParseSlotTime combines a calendar date label with a 12-hour start time into
// one absolute timestamp in the local zone, using now's year. The date label
// only needs to contain a month name and a day number somewhere inside it.
func ParseSlotTime(dateLabel, startTime string, now time.Time) (time.Time, error) {
	dateMatch := dateLabelRe.FindStringSubmatch(dateLabel)
	if dateMatch == nil {
		return time.Time{}, fmt.Errorf("%w: no month/day in date label %q", ErrMalformedSlotTime, dateLabel)
	}

	month := monthIndex[dateMatch[1]]
	day, err := strconv.Atoi(dateMatch[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad day in date label %q", ErrMalformedSlotTime, dateLabel)
	}

	timeMatch := slotTimeRe.FindStringSubmatch(startTime)
	if timeMatch == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedSlotTime, startTime)
	}

	hour, err := strconv.Atoi(timeMatch[1])
	if err != nil || hour < 1 || hour > 12 {
		return time.Time{}, fmt.Errorf("%w: hour out of range in %q", ErrMalformedSlotTime, startTime)
	}
	minute, err := strconv.Atoi(timeMatch[2])
	if err != nil || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: minute out of range in %q", ErrMalformedSlotTime, startTime)
	}

	// 12am -> 0, 12pm -> 12, everything else shifts by 12 in the afternoon.
	meridiem := strings.ToLower(timeMatch[3])
	if hour == 12 {
		hour = 0
	}
	if meridiem == "pm" {
		hour += 12
	}

	return time.Date(now.Year(), month, day, hour, minute, 0, 0, now.Location()), nil
}
