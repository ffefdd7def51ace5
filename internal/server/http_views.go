package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"danus-dashboard/backend/internal/consent"
	"danus-dashboard/backend/internal/dashboard"
	"danus-dashboard/backend/internal/mapview"
	orgdomain "danus-dashboard/backend/internal/organization/domain"
	"danus-dashboard/backend/internal/session/gate"
	"danus-dashboard/backend/internal/telemetry"
	userdomain "danus-dashboard/backend/internal/user/domain"
)

type orgView struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Target      float64             `json:"target"`
	Raised      float64             `json:"raised"`
	Progress    float64             `json:"progress"`
	Location    *orgdomain.Location `json:"location,omitempty"`
}

func newOrgView(o *orgdomain.Org) orgView {
	return orgView{
		ID:          o.ID,
		Name:        o.Name,
		Description: o.Description,
		Target:      o.Target,
		Raised:      o.Raised,
		Progress:    o.Progress(),
		Location:    o.Location,
	}
}

// guarded renders a protected view behind a per-request session gate and view guard. The
// guard watches the restore, so content runs once the gate settles with a user.
func (s *HTTPServer) guarded(w http.ResponseWriter, r *http.Request, content func(g *gate.Gate, u *userdomain.User)) {
	g := s.newGate(w, r)
	guard := gate.NewViewGuard(g, &httpNavigator{w: w, r: r}, &headerNotifier{w: w}, s.deps.SignInPath)
	stop := guard.Watch(func(u *userdomain.User) { content(g, u) })
	g.Restore(r.Context())
	stop()
	if guard.Redirected() {
		s.viewGuardRedirected(r)
	}
}

func (s *HTTPServer) viewGuardRedirected(r *http.Request) {
	ev := telemetry.NewEvent(telemetry.EventGuardRedirect, "").With("path", r.URL.Path)
	ev.Source = "view_guard"
	ev.IP = clientIP(r)
	telemetry.EmitAsync(s.deps.Events, ev)
}

type membershipView struct {
	Org  orgView `json:"org"`
	Role string  `json:"role"`
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.guarded(w, r, func(_ *gate.Gate, u *userdomain.User) {
		ctx := r.Context()
		ms, err := s.deps.Memberships.ListByUser(ctx, u.ID)
		if err != nil {
			log.Printf("http: list memberships user=%s: %v", u.ID, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		seen := make(map[string]bool, len(ms))
		out := make([]membershipView, 0, len(ms))
		for _, m := range ms {
			if seen[m.OrgID] {
				continue
			}
			seen[m.OrgID] = true
			v := s.deps.Resolver.Verdict(ctx, u.ID, m.OrgID)
			if !v.IsMember() {
				continue
			}
			org, err := s.deps.Orgs.GetOrganizationByID(ctx, m.OrgID)
			if err != nil || org == nil {
				if err != nil {
					log.Printf("http: load organization %s: %v", m.OrgID, err)
				}
				continue
			}
			out = append(out, membershipView{Org: newOrgView(org), Role: v.Role.String()})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Org.Name < out[j].Org.Name })
		writeJSON(w, http.StatusOK, map[string]any{
			"user":          newUserView(u),
			"organizations": out,
		})
	})
}

type orgDashboardView struct {
	Org                orgView  `json:"org"`
	Role               string   `json:"role"`
	IsAdmin            bool     `json:"is_admin"`
	IsModeratorOrAbove bool     `json:"is_moderator_or_above"`
	IsMember           bool     `json:"is_member"`
	Actions            []string `json:"actions"`
}

func (s *HTTPServer) handleOrgDashboard(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	s.guarded(w, r, func(g *gate.Gate, u *userdomain.User) {
		view := dashboard.Mount(r.Context(), g, s.deps.Resolver, s.deps.Actions, s.deps.Orgs, orgID)
		defer view.Unmount()
		st, err := view.Wait(r.Context())
		if err == nil {
			err = st.Err
		}
		switch {
		case err == nil:
		case errors.Is(err, dashboard.ErrOrgNotFound):
			writeError(w, http.StatusNotFound, "organization not found")
			return
		case errors.Is(err, dashboard.ErrForbidden):
			s.roleDenied(r, u.ID, orgID)
			writeError(w, http.StatusForbidden, "not a member of this organization")
			return
		case errors.Is(err, context.Canceled):
			return
		default:
			log.Printf("http: org dashboard org=%s: %v", orgID, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		actions := st.Actions
		if actions == nil {
			actions = []string{}
		}
		writeJSON(w, http.StatusOK, orgDashboardView{
			Org:                newOrgView(st.Org),
			Role:               st.Verdict.Role.String(),
			IsAdmin:            st.Verdict.IsAdmin(),
			IsModeratorOrAbove: st.Verdict.IsModeratorOrAbove(),
			IsMember:           st.Verdict.IsMember(),
			Actions:            actions,
		})
	})
}

func (s *HTTPServer) roleDenied(r *http.Request, userID, orgID string) {
	ev := telemetry.NewEvent(telemetry.EventRoleDenied, userID).With("path", r.URL.Path)
	ev.OrgID = orgID
	ev.Source = "dashboard"
	ev.IP = clientIP(r)
	telemetry.EmitAsync(s.deps.Events, ev)
}

type mapResponse struct {
	Center        orgdomain.Location `json:"center"`
	OnDevice      bool               `json:"on_device"`
	Prompt        string             `json:"prompt"`
	PromptVisible bool               `json:"prompt_visible"`
	Markers       []mapview.Marker   `json:"markers"`
}

// handleMap renders the map. The client reports the prompt decision with ?location=allow
// (plus lat and lng), ?location=deny or ?location=dismiss; without it the prompt stays open.
func (s *HTTPServer) handleMap(w http.ResponseWriter, r *http.Request) {
	s.guarded(w, r, func(_ *gate.Gate, u *userdomain.User) {
		orgs, err := s.deps.Orgs.ListOrganizations(r.Context())
		if err != nil {
			log.Printf("http: list organizations: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		q := r.URL.Query()
		var locator mapview.Locator
		if q.Get("location") == "allow" {
			lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
			lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
			if latErr != nil || lngErr != nil {
				writeError(w, http.StatusBadRequest, "lat and lng are required when location is allowed")
				return
			}
			locator = mapview.StaticLocator{Latitude: lat, Longitude: lng}
		}
		view := mapview.Mount(r.Context(), locator, orgs)
		prompt := view.Prompt()
		switch q.Get("location") {
		case "allow":
			_ = prompt.Allow()
		case "deny":
			_ = prompt.Deny()
		case "dismiss":
			_ = prompt.Dismiss()
		case "":
		default:
			writeError(w, http.StatusBadRequest, "location must be allow, deny or dismiss")
			return
		}
		if !prompt.Visible() {
			s.capabilityDecided(r, u, prompt)
		}
		center, onDevice := view.Center()
		writeJSON(w, http.StatusOK, mapResponse{
			Center:        center,
			OnDevice:      onDevice,
			Prompt:        prompt.State().String(),
			PromptVisible: prompt.Visible(),
			Markers:       view.Markers(),
		})
	})
}

func (s *HTTPServer) capabilityDecided(r *http.Request, u *userdomain.User, p *consent.Prompt) {
	ev := telemetry.NewEvent(telemetry.EventCapabilityDecided, u.ID).
		With("capability", string(p.Capability())).
		With("decision", p.State().String())
	ev.Source = "mapview"
	ev.IP = clientIP(r)
	telemetry.EmitAsync(s.deps.Events, ev)
}
