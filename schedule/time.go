package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseGTFSTime parses a GTFS time-of-day (HH:MM:SS or H:MM:SS) into seconds
// since service-day midnight. Hours may exceed 24 for next-day service; the
// raw value is preserved so cross-midnight trips keep their day offset.
func ParseGTFSTime(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, fmt.Errorf("malformed hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("malformed minute in %q", s)
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("malformed second in %q", s)
	}
	return h*3600 + m*60 + sec, nil
}

// ClockString formats seconds-since-midnight as HH:MM, normalized modulo 24h
// for display of next-day service.
func ClockString(sec int) string {
	sec %= 86400
	if sec < 0 {
		sec += 86400
	}
	return fmt.Sprintf("%02d:%02d", sec/3600, (sec%3600)/60)
}

// ServiceDayStart returns midnight of t's calendar day in t's location.
func ServiceDayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// TimeOnServiceDay converts raw GTFS seconds to a wall-clock time on the
// given service day. Values past 86400 land on the next calendar day, which
// is what fallback matching against live epoch times needs.
func TimeOnServiceDay(sec int, day time.Time) time.Time {
	return ServiceDayStart(day).Add(time.Duration(sec) * time.Second)
}

// DepartureAt is TimeOnServiceDay for the stop time's departure.
func (st StopTime) DepartureAt(day time.Time) time.Time {
	return TimeOnServiceDay(st.DepartureSec, day)
}

// ArrivalAt is TimeOnServiceDay for the stop time's arrival.
func (st StopTime) ArrivalAt(day time.Time) time.Time {
	return TimeOnServiceDay(st.ArrivalSec, day)
}

// DepartureClock is the display form of the departure time.
func (st StopTime) DepartureClock() string {
	return ClockString(st.DepartureSec)
}

// RunsOn reports whether the service operates on the given day, honoring
// calendar_dates exceptions over the weekly pattern.
func (s *Service) RunsOn(day time.Time) bool {
	if s == nil {
		return true
	}
	date := day.Format("20060102")
	if s.Removed[date] {
		return false
	}
	if s.Added[date] {
		return true
	}
	if s.StartDate != "" && date < s.StartDate {
		return false
	}
	if s.EndDate != "" && date > s.EndDate {
		return false
	}
	return s.Weekdays[int(day.Weekday())]
}
