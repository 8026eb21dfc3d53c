package holidays

import (
	"context"
	"time"
)

// Store is the persistence boundary for zones and their holiday records.
// Lookups return (nil, nil) when nothing matches.
//
// Point lookups (FindHolidayOnDate, FindRecurringHoliday) exist separately
// from ListHolidays so the hot eligibility path can hit an index instead of
// scanning the zone's whole calendar.
type Store interface {
	GetZone(ctx context.Context, id string) (*Zone, error)
	GetZoneByCode(ctx context.Context, organisationID, code string) (*Zone, error)
	SaveZone(ctx context.Context, zone *Zone) error
	ListZones(ctx context.Context, organisationID string) ([]Zone, error)

	SaveHoliday(ctx context.Context, holiday *Holiday) error
	ListHolidays(ctx context.Context, zoneID string) ([]Holiday, error)
	// FindHolidayOnDate matches one-off holidays on the exact date.
	FindHolidayOnDate(ctx context.Context, zoneID string, date time.Time) (*Holiday, error)
	// FindRecurringHoliday matches recurring holidays on month+day, any year.
	FindRecurringHoliday(ctx context.Context, zoneID string, month time.Month, day int) (*Holiday, error)
}
