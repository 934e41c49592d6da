package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date/time parsers for the temporal extraction stage. All parsers are
// deterministic: same subject + same clock = same instant. Failures are
// soft (nil result), never errors. Output instants are always UTC.

// tzAbbrevZones maps trailing timezone abbreviations in calendar-style
// subjects to canonical IANA zones.
var tzAbbrevZones = map[string]string{
	"EST": "America/New_York",
	"EDT": "America/New_York",
	"CST": "America/Chicago",
	"CDT": "America/Chicago",
	"MST": "America/Denver",
	"MDT": "America/Denver",
	"PST": "America/Los_Angeles",
	"PDT": "America/Los_Angeles",
	"GMT": "UTC",
	"UTC": "UTC",
}

var monthsByName = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdaysByName = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// calendarSubjectRe matches Google-Calendar-style subjects:
//
//	@ Fri Nov 21, 2025 6:30pm - 8pm (EST)
//
// Year, minutes, end time, and the timezone abbreviation are optional.
var calendarSubjectRe = regexp.MustCompile(
	`@\s*(?:Mon|Tue|Wed|Thu|Fri|Sat|Sun)[a-z]*\s+` +
		`(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(\d{1,2})` +
		`(?:,\s*(\d{4}))?` +
		`\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)` +
		`(?:\s*-\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm))?` +
		`(?:\s*\(([A-Z]{2,4})\))?`)

// parseCalendarSubject extracts event start and optional end from a
// calendar-style subject. A trailing (TZ) abbreviation picks the zone;
// otherwise the times are read in now's zone. Missing year means the
// current year.
func parseCalendarSubject(subject string, now time.Time) (start, end *time.Time) {
	m := calendarSubjectRe.FindStringSubmatch(subject)
	if m == nil {
		return nil, nil
	}

	month, ok := monthsByName[strings.ToLower(m[1])]
	if !ok {
		return nil, nil
	}
	day, err := strconv.Atoi(m[2])
	if err != nil || day < 1 || day > 31 {
		return nil, nil
	}
	year := now.Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
	}

	loc := now.Location()
	if zone, ok := tzAbbrevZones[m[10]]; ok {
		if l, err := time.LoadLocation(zone); err == nil {
			loc = l
		}
	}

	hour, minute, ok := clockFrom(m[4], m[5], m[6])
	if !ok {
		return nil, nil
	}
	s := time.Date(year, month, day, hour, minute, 0, 0, loc).UTC()
	start = &s

	if m[7] != "" {
		if eh, em, ok := clockFrom(m[7], m[8], m[9]); ok {
			e := time.Date(year, month, day, eh, em, 0, 0, loc).UTC()
			if e.Before(s) {
				// 11pm - 1am crosses midnight
				e = e.Add(24 * time.Hour)
			}
			end = &e
		}
	}
	return start, end
}

// clockFrom converts H, MM, am/pm captures to a 24h clock.
func clockFrom(hourStr, minStr, meridiem string) (hour, minute int, ok bool) {
	h, err := strconv.Atoi(hourStr)
	if err != nil || h < 1 || h > 12 {
		return 0, 0, false
	}
	m := 0
	if minStr != "" {
		m, err = strconv.Atoi(minStr)
		if err != nil || m > 59 {
			return 0, 0, false
		}
	}
	switch strings.ToLower(meridiem) {
	case "pm":
		if h != 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	default:
		return 0, 0, false
	}
	return h, m, true
}

var deliveryCues = []string{
	"delivered", "delivery", "arriving", "out for delivery", "package", "shipment",
}

// isDeliverySubject reports whether the subject carries any delivery cue.
func isDeliverySubject(subject string) bool {
	lower := strings.ToLower(subject)
	for _, cue := range deliveryCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// parseDeliveryDate derives the delivery date from subject cues:
// "delivered" means the received date, "arriving today"/"arriving
// tomorrow" mean local midnight of that day, anything else falls back to
// the received date.
func parseDeliveryDate(subject string, received, now time.Time) *time.Time {
	lower := strings.ToLower(subject)
	var d time.Time
	switch {
	case strings.Contains(lower, "delivered"):
		d = received.UTC()
	case strings.Contains(lower, "arriving today"):
		d = midnightOf(now).UTC()
	case strings.Contains(lower, "arriving tomorrow"):
		d = midnightOf(now.AddDate(0, 0, 1)).UTC()
	default:
		d = received.UTC()
	}
	return &d
}

var receiptCues = []string{"receipt", "order", "payment", "confirmation", "invoice"}

// isReceiptSubject reports whether the subject carries any purchase cue.
func isReceiptSubject(subject string) bool {
	lower := strings.ToLower(subject)
	for _, cue := range receiptCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// parsePurchaseDate derives the purchase date for a receipt: when a
// weekday name appears in the subject, the most recent occurrence of that
// weekday relative to now; otherwise the received date.
func parsePurchaseDate(subject string, received, now time.Time) *time.Time {
	lower := strings.ToLower(subject)
	for name, wd := range weekdaysByName {
		if strings.Contains(lower, name) {
			d := mostRecentWeekday(now, wd).UTC()
			return &d
		}
	}
	d := received.UTC()
	return &d
}

// mostRecentWeekday returns local midnight of the most recent occurrence
// of wd at or before ref.
func mostRecentWeekday(ref time.Time, wd time.Weekday) time.Time {
	back := (int(ref.Weekday()) - int(wd) + 7) % 7
	return midnightOf(ref.AddDate(0, 0, -back))
}

// nextWeekday returns local midnight of the next occurrence of wd at or
// after ref. "This Friday" received on a Friday means that same day.
func nextWeekday(ref time.Time, wd time.Weekday) time.Time {
	fwd := (int(wd) - int(ref.Weekday()) + 7) % 7
	return midnightOf(ref.AddDate(0, 0, fwd))
}

func midnightOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Generic date scanner patterns, tried in order over subject + snippet.
var (
	thisWeekdayRe = regexp.MustCompile(`(?i)\bthis\s+(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	todayAtRe     = regexp.MustCompile(`(?i)\btoday\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	tomorrowAtRe  = regexp.MustCompile(`(?i)\btomorrow\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	monthDayRe    = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,)?\s+(\d{4})(?:\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm))?`)
	shortDateRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`)
)

// scanGenericDate scans free text for the first recognisable date phrase
// and returns the instant in UTC. received anchors relative phrases
// ("This Friday"); now anchors today/tomorrow and year inference. loc is
// the zone times are read in.
func scanGenericDate(text string, received, now time.Time, loc *time.Location) *time.Time {
	localNow := now.In(loc)

	if m := thisWeekdayRe.FindStringSubmatch(text); m != nil {
		wd := weekdaysByName[strings.ToLower(m[1])]
		anchor := received
		if anchor.IsZero() {
			anchor = now
		}
		d := nextWeekday(anchor.In(loc), wd).UTC()
		return &d
	}

	if m := todayAtRe.FindStringSubmatch(text); m != nil {
		if h, mm, ok := clockFrom(m[1], m[2], m[3]); ok {
			d := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), h, mm, 0, 0, loc).UTC()
			return &d
		}
	}

	if m := tomorrowAtRe.FindStringSubmatch(text); m != nil {
		if h, mm, ok := clockFrom(m[1], m[2], m[3]); ok {
			tm := localNow.AddDate(0, 0, 1)
			d := time.Date(tm.Year(), tm.Month(), tm.Day(), h, mm, 0, 0, loc).UTC()
			return &d
		}
	}

	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		month := monthsByName[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if day >= 1 && day <= 31 {
			hour, minute := 0, 0
			if m[4] != "" {
				if h, mm, ok := clockFrom(m[4], m[5], m[6]); ok {
					hour, minute = h, mm
				}
			}
			d := time.Date(year, month, day, hour, minute, 0, 0, loc).UTC()
			return &d
		}
	}

	if m := shortDateRe.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			anchor := received
			if anchor.IsZero() {
				anchor = now
			}
			year := anchor.In(loc).Year()
			d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
			// Year inference: roll forward when the date lands more than
			// 30 days before the anchor.
			if d.Before(anchor.AddDate(0, 0, -30)) {
				d = d.AddDate(1, 0, 0)
			}
			du := d.UTC()
			return &du
		}
	}

	return nil
}
