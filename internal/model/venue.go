package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Venue is the catalog row a bookable service belongs to.  Venues are
// managed by the catalog layer; this service only reads them.
//
// Fields:
//  ID                        – primary key identifier.
//  OwnerID                   – user who owns and manages the venue.
//  Name                      – display name.
//  DefaultDepositRatePercent – deposit rate used when a service has none.
//  Currency                  – ISO 4217 code charged for every service.
//  Timezone                  – IANA zone the venue's wall clock runs in.
//  IsActive                  – whether the venue accepts bookings.
type Venue struct {
	ID                        uint64          // venues.id
	OwnerID                   uint64          // venues.owner_user_id
	Name                      string          // venues.name
	DefaultDepositRatePercent decimal.Decimal // venues.default_deposit_rate_percent
	Currency                  string          // venues.currency
	Timezone                  string          // venues.timezone
	IsActive                  bool            // venues.is_active
}

// Location resolves the venue's timezone.  An empty or unknown zone
// falls back to UTC so that a bad catalog row never blocks bookings.
func (v Venue) Location() *time.Location {
	if strings.TrimSpace(v.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(v.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Service is a bookable offering of a venue.
//
// Fields:
//  ID                 – primary key identifier.
//  VenueID            – venue offering the service.
//  Name               – display name.
//  Price              – price per person.
//  DurationMinutes    – length of one slot.
//  MinPartySize       – smallest allowed party (nil means 1).
//  MaxPartySize       – largest allowed party (nil means MinPartySize).
//  DepositRatePercent – deposit rate override (nil means venue default).
//  IsActive           – whether the service accepts bookings.
type Service struct {
	ID                 uint64           // venue_services.id
	VenueID            uint64           // venue_services.venue_id
	Name               string           // venue_services.name
	Price              decimal.Decimal  // venue_services.price
	DurationMinutes    int              // venue_services.duration_minutes
	MinPartySize       *int             // venue_services.min_party_size (nullable)
	MaxPartySize       *int             // venue_services.max_party_size (nullable)
	DepositRatePercent *decimal.Decimal // venue_services.deposit_rate_percent (nullable)
	IsActive           bool             // venue_services.is_active
}

// PartyBounds returns the inclusive party size range with the catalog
// defaults applied.
func (s Service) PartyBounds() (int, int) {
	lo := 1
	if s.MinPartySize != nil {
		lo = *s.MinPartySize
	}
	hi := lo
	if s.MaxPartySize != nil {
		hi = *s.MaxPartySize
	}
	return lo, hi
}

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay accepts the MySQL TIME forms "HH:MM" and "HH:MM:SS".
// Seconds are truncated.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m, sec int
	s = strings.TrimSpace(s)
	n, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec)
	if err != nil && n < 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// TimeOfDayOf returns the wall-clock time of t in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// BusinessHour is one opening window of a venue on a weekday.  Several
// windows may exist for the same day; the catalog keeps them disjoint.
//
// Fields:
//  ID        – primary key identifier.
//  VenueID   – venue the window belongs to.
//  DayOfWeek – 0=Sunday .. 6=Saturday.
//  Open      – opening time.
//  Close     – closing time.
type BusinessHour struct {
	ID        uint64    // business_hours.id
	VenueID   uint64    // business_hours.venue_id
	DayOfWeek int       // business_hours.day_of_week
	Open      TimeOfDay // business_hours.open_time
	Close     TimeOfDay // business_hours.close_time
}

// AvailabilityBlock closes part of a single calendar date.
//
// Fields:
//  ID      – primary key identifier.
//  VenueID – venue the block applies to.
//  Date    – calendar date (midnight UTC carrying the local date).
//  Start   – start of the closure.
//  End     – end of the closure.
//  Reason  – optional note shown to owners.
type AvailabilityBlock struct {
	ID      uint64    // availability_blocks.id
	VenueID uint64    // availability_blocks.venue_id
	Date    time.Time // availability_blocks.block_date
	Start   TimeOfDay // availability_blocks.start_time
	End     TimeOfDay // availability_blocks.end_time
	Reason  *string   // availability_blocks.reason (nullable)
}

// CatalogSnapshot is everything a booking decision needs to know about a
// service, read as of the request instant.  Hours are those of the
// requested weekday and blocks those of the requested date.
type CatalogSnapshot struct {
	Service Service
	Venue   Venue
	Hours   []BusinessHour
	Blocks  []AvailabilityBlock
}
