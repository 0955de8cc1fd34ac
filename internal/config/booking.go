package config

import (
    "log"
    "os"
    "time"

    "github.com/iliyamo/restaurant-reservation/internal/availability"
    "github.com/iliyamo/restaurant-reservation/internal/booking"
    "github.com/iliyamo/restaurant-reservation/internal/schedule"
)

// BookingConfig holds the house rules of the dining room.
//
// Fields:
//  MaxCapacity  – guests seated per (date, time) slot.
//  LeadTime     – minimum notice for a same-day booking.
//  Granularity  – spacing between two slots.
//  Location     – restaurant time zone; "today" and slot instants use it.
//  MaxAttempts  – write attempts before a busy slot is reported as a conflict.
type BookingConfig struct {
    MaxCapacity int
    LeadTime    time.Duration
    Granularity time.Duration
    Location    *time.Location
    MaxAttempts int
}

// LoadBookingConfig reads MAX_CAPACITY, BOOKING_LEAD_TIME, SLOT_GRANULARITY,
// RESTAURANT_TZ and BOOKING_MAX_ATTEMPTS.  An unknown time zone or a
// granularity that does not divide an hour is fatal.
func LoadBookingConfig() BookingConfig {
    cfg := BookingConfig{
        MaxCapacity: envInt("MAX_CAPACITY", availability.DefaultMaxCapacity),
        LeadTime:    envDur("BOOKING_LEAD_TIME", 2*time.Hour),
        Granularity: envDur("SLOT_GRANULARITY", 15*time.Minute),
        MaxAttempts: envInt("BOOKING_MAX_ATTEMPTS", booking.DefaultMaxAttempts),
    }
    tz := envStr("RESTAURANT_TZ", "Europe/Paris")
    loc, err := time.LoadLocation(tz)
    if err != nil {
        log.Fatalf("invalid RESTAURANT_TZ %q: %v", tz, err)
    }
    cfg.Location = loc
    if cfg.MaxCapacity < 1 {
        log.Fatalf("invalid MAX_CAPACITY %q: must be positive", os.Getenv("MAX_CAPACITY"))
    }
    if cfg.Granularity < time.Minute || time.Hour%cfg.Granularity != 0 {
        log.Fatalf("invalid SLOT_GRANULARITY %s: must divide one hour", cfg.Granularity)
    }
    if cfg.LeadTime < 0 {
        cfg.LeadTime = 0
    }
    return cfg
}

// Rules returns the opening-hour rules with the configured slot policy.
func (c BookingConfig) Rules() schedule.Rules {
    r := schedule.DefaultRules(c.Location)
    r.Granularity = c.Granularity
    r.LeadTime = c.LeadTime
    return r
}
