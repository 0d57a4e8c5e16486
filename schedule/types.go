package schedule

// RouteType is the numeric GTFS transit mode.
type RouteType int

const (
	RouteTypeTram      RouteType = 0
	RouteTypeMetro     RouteType = 1
	RouteTypeRail      RouteType = 2
	RouteTypeBus       RouteType = 3
	RouteTypeFerry     RouteType = 4
	RouteTypeCableCar  RouteType = 5
	RouteTypeGondola   RouteType = 6
	RouteTypeFunicular RouteType = 7
)

// Pickup/dropoff policy codes (0=regular, 1=none, 2=phone, 3=coordinate).
const (
	PolicyRegular    = 0
	PolicyNone       = 1
	PolicyPhone      = 2
	PolicyCoordinate = 3
)

// DirectionUnknown marks a trip with no direction_id in the static tables.
const DirectionUnknown = -1

// Stop is one boarding location. Immutable after load.
type Stop struct {
	ID            string
	Name          string
	Lat           float64
	Lon           float64
	ParentStation string
}

// Route is one transit line. Immutable after load.
type Route struct {
	ID        string
	ShortName string
	LongName  string
	Type      RouteType
	Color     string
	TextColor string
}

// Trip is one scheduled run of a vehicle along a route. StopTimes are
// attached after load by joining on the trip identifier, ordered by
// sequence.
type Trip struct {
	ID        string
	RouteID   string
	ServiceID string
	Headsign  string
	Direction int
	StopTimes []StopTime
}

// StopTime is one scheduled call of a trip at a stop. ArrivalSec and
// DepartureSec keep the raw GTFS value in seconds since service-day
// midnight; for next-day service the hour exceeds 24 and the value exceeds
// 86400. Display formatting normalizes modulo 24h, epoch conversion does
// not.
type StopTime struct {
	TripID       string
	StopID       string
	Sequence     int
	ArrivalSec   int
	DepartureSec int
	Pickup       int
	DropOff      int
}

// Service is one row of calendar.txt: a weekly pattern bounded by dates,
// possibly amended by calendar_dates.txt exceptions.
type Service struct {
	ID        string
	Weekdays  [7]bool         // indexed by time.Weekday
	StartDate string          // YYYYMMDD
	EndDate   string          // YYYYMMDD
	Added     map[string]bool // date -> explicitly added
	Removed   map[string]bool // date -> explicitly removed
}
