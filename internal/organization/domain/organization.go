package domain

import (
	"errors"
	"time"
)

// Org is an organization raising funds through its product catalog.
// Raised may exceed Target; nothing caps it.
type Org struct {
	ID          string
	Name        string
	Description string
	Target      float64
	Raised      float64
	Location    *Location // nil when the organization has not set a position
	Status      OrgStatus
	CreatedAt   time.Time
}

// Location is a WGS84 coordinate.
type Location struct {
	Latitude  float64
	Longitude float64
}

type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
)

// Validate validates the organization for persistence. Returns an error describing the first validation failure.
func (o *Org) Validate() error {
	if o.Name == "" {
		return errors.New("name is required")
	}
	if o.Target < 0 {
		return errors.New("target must not be negative")
	}
	if o.Raised < 0 {
		return errors.New("raised must not be negative")
	}
	if o.Location != nil {
		if err := o.Location.Validate(); err != nil {
			return err
		}
	}
	if o.Status == "" {
		o.Status = OrgStatusActive
	}
	return nil
}

// Progress returns Raised/Target. It is not capped at 1. A zero target yields 0.
func (o *Org) Progress() float64 {
	if o.Target <= 0 {
		return 0
	}
	return o.Raised / o.Target
}

// Validate checks that the coordinate is within WGS84 bounds.
func (l *Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return errors.New("latitude out of range")
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return errors.New("longitude out of range")
	}
	return nil
}
