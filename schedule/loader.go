package schedule

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// TableStats counts the outcome of loading one static table.
type TableStats struct {
	Loaded  int
	Skipped int
}

// LoadStats reports per-table load outcomes. Malformed rows are skipped,
// never fatal.
type LoadStats struct {
	Stops     TableStats
	Routes    TableStats
	Trips     TableStats
	StopTimes TableStats
	Services  TableStats
}

// Load builds a Store from a GTFS zip file or a directory of .txt tables.
func Load(path string, logger *slog.Logger) (*Store, LoadStats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("static schedule: %w", err)
	}
	if info.IsDir() {
		return loadDir(path, logger)
	}
	return loadZip(path, logger)
}

var staticTables = []string{
	"stops.txt", "routes.txt", "trips.txt", "stop_times.txt",
	"calendar.txt", "calendar_dates.txt",
}

func loadDir(dir string, logger *slog.Logger) (*Store, LoadStats, error) {
	b := newBuilder(logger)
	for _, name := range staticTables {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			continue // optional table
		}
		b.consume(name, f)
		_ = f.Close()
	}
	return b.finish()
}

func loadZip(path string, logger *slog.Logger) (*Store, LoadStats, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("static schedule: %w", err)
	}
	defer zr.Close()
	b := newBuilder(logger)
	for _, f := range zr.File {
		name := strings.ToLower(filepath.Base(f.Name))
		if !tableWanted(name) {
			continue
		}
		r, err := f.Open()
		if err != nil {
			continue
		}
		b.consume(name, r)
		_ = r.Close()
	}
	return b.finish()
}

func tableWanted(name string) bool {
	for _, t := range staticTables {
		if name == t {
			return true
		}
	}
	return false
}

type builder struct {
	store  *Store
	stats  LoadStats
	logger *slog.Logger
}

func newBuilder(logger *slog.Logger) *builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &builder{store: newStore(), logger: logger}
}

func (b *builder) consume(name string, r io.Reader) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rec, err := cr.ReadAll()
	if err != nil || len(rec) == 0 {
		b.logger.Warn("static table unreadable", slog.String("table", name))
		return
	}
	head := rec[0]
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				return i
			}
		}
		return -1
	}
	field := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	switch name {
	case "stops.txt":
		b.consumeStops(rec[1:], idx, field)
	case "routes.txt":
		b.consumeRoutes(rec[1:], idx, field)
	case "trips.txt":
		b.consumeTrips(rec[1:], idx, field)
	case "stop_times.txt":
		b.consumeStopTimes(rec[1:], idx, field)
	case "calendar.txt":
		b.consumeCalendar(rec[1:], idx, field)
	case "calendar_dates.txt":
		b.consumeCalendarDates(rec[1:], idx, field)
	}
}

type fieldFn func([]string, int) string

func (b *builder) consumeStops(rows [][]string, idx func(string) int, field fieldFn) {
	cID, cName := idx("stop_id"), idx("stop_name")
	cLat, cLon := idx("stop_lat"), idx("stop_lon")
	cParent := idx("parent_station")
	for _, row := range rows {
		id := field(row, cID)
		if id == "" {
			b.stats.Stops.Skipped++
			continue
		}
		lat, err := strconv.ParseFloat(field(row, cLat), 64)
		if err != nil {
			b.stats.Stops.Skipped++
			continue
		}
		lon, err := strconv.ParseFloat(field(row, cLon), 64)
		if err != nil {
			b.stats.Stops.Skipped++
			continue
		}
		b.store.stops[id] = &Stop{
			ID:            id,
			Name:          field(row, cName),
			Lat:           lat,
			Lon:           lon,
			ParentStation: field(row, cParent),
		}
		b.stats.Stops.Loaded++
	}
}

func (b *builder) consumeRoutes(rows [][]string, idx func(string) int, field fieldFn) {
	cID := idx("route_id")
	cShort, cLong := idx("route_short_name"), idx("route_long_name")
	cType := idx("route_type")
	cColor, cText := idx("route_color"), idx("route_text_color")
	for _, row := range rows {
		id := field(row, cID)
		if id == "" {
			b.stats.Routes.Skipped++
			continue
		}
		rt := RouteTypeBus // default when route_type is absent or garbled
		if s := field(row, cType); s != "" {
			if v, err := strconv.Atoi(s); err == nil {
				rt = RouteType(v)
			}
		}
		b.store.routes[id] = &Route{
			ID:        id,
			ShortName: field(row, cShort),
			LongName:  field(row, cLong),
			Type:      rt,
			Color:     field(row, cColor),
			TextColor: field(row, cText),
		}
		b.stats.Routes.Loaded++
	}
}

func (b *builder) consumeTrips(rows [][]string, idx func(string) int, field fieldFn) {
	cTrip, cRoute := idx("trip_id"), idx("route_id")
	cService, cHeadsign := idx("service_id"), idx("trip_headsign")
	cDir := idx("direction_id")
	for _, row := range rows {
		id := field(row, cTrip)
		routeID := field(row, cRoute)
		if id == "" || routeID == "" {
			b.stats.Trips.Skipped++
			continue
		}
		dir := DirectionUnknown
		if s := field(row, cDir); s != "" {
			if v, err := strconv.Atoi(s); err == nil && (v == 0 || v == 1) {
				dir = v
			}
		}
		b.store.trips[id] = &Trip{
			ID:        id,
			RouteID:   routeID,
			ServiceID: field(row, cService),
			Headsign:  field(row, cHeadsign),
			Direction: dir,
		}
		b.stats.Trips.Loaded++
	}
}

func (b *builder) consumeStopTimes(rows [][]string, idx func(string) int, field fieldFn) {
	cTrip, cStop, cSeq := idx("trip_id"), idx("stop_id"), idx("stop_sequence")
	cArr, cDep := idx("arrival_time"), idx("departure_time")
	cPickup, cDrop := idx("pickup_type"), idx("drop_off_type")
	for _, row := range rows {
		tripID := field(row, cTrip)
		stopID := field(row, cStop)
		if tripID == "" || stopID == "" {
			b.stats.StopTimes.Skipped++
			continue
		}
		seq, err := strconv.Atoi(field(row, cSeq))
		if err != nil {
			b.stats.StopTimes.Skipped++
			continue
		}
		arr, errA := ParseGTFSTime(field(row, cArr))
		dep, errD := ParseGTFSTime(field(row, cDep))
		if errA != nil && errD != nil {
			b.stats.StopTimes.Skipped++
			continue
		}
		// one of the two may be blank; mirror the other
		if errA != nil {
			arr = dep
		}
		if errD != nil {
			dep = arr
		}
		pickup, dropOff := PolicyRegular, PolicyRegular
		if s := field(row, cPickup); s != "" {
			if v, err := strconv.Atoi(s); err == nil {
				pickup = v
			}
		}
		if s := field(row, cDrop); s != "" {
			if v, err := strconv.Atoi(s); err == nil {
				dropOff = v
			}
		}
		b.store.rawStopTimes = append(b.store.rawStopTimes, StopTime{
			TripID:       tripID,
			StopID:       stopID,
			Sequence:     seq,
			ArrivalSec:   arr,
			DepartureSec: dep,
			Pickup:       pickup,
			DropOff:      dropOff,
		})
		b.stats.StopTimes.Loaded++
	}
}

func (b *builder) consumeCalendar(rows [][]string, idx func(string) int, field fieldFn) {
	cID := idx("service_id")
	days := []int{
		idx("sunday"), idx("monday"), idx("tuesday"), idx("wednesday"),
		idx("thursday"), idx("friday"), idx("saturday"),
	}
	cStart, cEnd := idx("start_date"), idx("end_date")
	for _, row := range rows {
		id := field(row, cID)
		if id == "" {
			b.stats.Services.Skipped++
			continue
		}
		svc := b.store.serviceFor(id)
		for wd, col := range days {
			svc.Weekdays[wd] = field(row, col) == "1"
		}
		svc.StartDate = field(row, cStart)
		svc.EndDate = field(row, cEnd)
		b.stats.Services.Loaded++
	}
}

func (b *builder) consumeCalendarDates(rows [][]string, idx func(string) int, field fieldFn) {
	cID, cDate, cType := idx("service_id"), idx("date"), idx("exception_type")
	for _, row := range rows {
		id := field(row, cID)
		date := field(row, cDate)
		if id == "" || date == "" {
			b.stats.Services.Skipped++
			continue
		}
		svc := b.store.serviceFor(id)
		switch field(row, cType) {
		case "1":
			svc.Added[date] = true
		case "2":
			svc.Removed[date] = true
		default:
			b.stats.Services.Skipped++
		}
	}
}

func (b *builder) finish() (*Store, LoadStats, error) {
	b.store.build()
	b.logger.Info("static schedule loaded",
		slog.Int("stops", b.stats.Stops.Loaded),
		slog.Int("routes", b.stats.Routes.Loaded),
		slog.Int("trips", b.stats.Trips.Loaded),
		slog.Int("stop_times", b.stats.StopTimes.Loaded),
		slog.Int("skipped", b.stats.Stops.Skipped+b.stats.Routes.Skipped+
			b.stats.Trips.Skipped+b.stats.StopTimes.Skipped+b.stats.Services.Skipped),
	)
	return b.store, b.stats, nil
}
