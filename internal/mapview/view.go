// Package mapview builds the organization map: markers for every located organization and a
// center that follows the device only after the user grants geolocation.
package mapview

import (
	"context"
	"log"
	"sort"
	"sync"

	"danus-dashboard/backend/internal/consent"
	"danus-dashboard/backend/internal/organization/domain"
)

// DefaultCenter is used until the device position is known. Central Jakarta.
var DefaultCenter = domain.Location{Latitude: -6.2088, Longitude: 106.8456}

// Locator reads the device position. It is only called after the user allows geolocation.
type Locator interface {
	Locate(ctx context.Context) (domain.Location, error)
}

// Marker is one organization pin.
type Marker struct {
	OrgID    string          `json:"org_id"`
	Name     string          `json:"name"`
	Location domain.Location `json:"location"`
	Progress float64         `json:"progress"`
}

// View is one mount of the map.
type View struct {
	ctx     context.Context
	locator Locator
	prompt  *consent.Prompt
	markers []Marker

	mu        sync.Mutex
	center    domain.Location
	onDevice  bool
	locateErr error
}

// Mount builds the markers and opens the geolocation prompt. The view keeps DefaultCenter
// unless the prompt is allowed and the locator succeeds. Denying never re-prompts within
// this mount.
func Mount(ctx context.Context, locator Locator, orgs []*domain.Org) *View {
	v := &View{
		ctx:     ctx,
		locator: locator,
		markers: markersFor(orgs),
		center:  DefaultCenter,
	}
	v.prompt = consent.NewPrompt(consent.CapabilityGeolocation, v.locate, nil)
	return v
}

// Prompt returns the geolocation prompt for this mount.
func (v *View) Prompt() *consent.Prompt { return v.prompt }

// Markers returns one marker per organization with coordinates, ordered by name.
func (v *View) Markers() []Marker { return v.markers }

// Center returns the map center and whether it is the device position.
func (v *View) Center() (domain.Location, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.center, v.onDevice
}

// LocateErr returns the locator failure, if the prompt was allowed and locating failed.
func (v *View) LocateErr() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.locateErr
}

func (v *View) locate() {
	if v.locator == nil {
		return
	}
	loc, err := v.locator.Locate(v.ctx)
	if err == nil {
		err = loc.Validate()
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		log.Printf("mapview: locate device: %v", err)
		v.locateErr = err
		return
	}
	v.center = loc
	v.onDevice = true
}

func markersFor(orgs []*domain.Org) []Marker {
	markers := make([]Marker, 0, len(orgs))
	for _, o := range orgs {
		if o == nil || o.Location == nil {
			continue
		}
		markers = append(markers, Marker{OrgID: o.ID, Name: o.Name, Location: *o.Location, Progress: o.Progress()})
	}
	sort.SliceStable(markers, func(i, j int) bool { return markers[i].Name < markers[j].Name })
	return markers
}

// StaticLocator returns a fixed position, e.g. one reported by the client.
type StaticLocator domain.Location

func (s StaticLocator) Locate(ctx context.Context) (domain.Location, error) {
	return domain.Location(s), nil
}
