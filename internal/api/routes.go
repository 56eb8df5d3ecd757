package api

import (
	"net/http"

	"github.com/stayward/console-core/internal/auth"
)

// Route maps a screen path to the module that owns it. The table is the
// declarative source the router mounts guards from; leaf screens trust
// that they are never rendered without a passing guard chain.
type Route struct {
	Path   string        `json:"path"`
	Module auth.ModuleID `json:"module"`
	Name   string        `json:"name"`
}

// screenRoutes is the route table: one entry screen per module. The
// paginated CRUD pages below each entry are opaque to the core and are
// served by the UI bundle.
var screenRoutes = []Route{
	{Path: "/reservation", Module: auth.ModuleReservation, Name: "Reservations"},
	{Path: "/backoffice", Module: auth.ModuleBackOffice, Name: "Back Office"},
	{Path: "/frontdesk", Module: auth.ModuleFrontDesk, Name: "Front Desk"},
	{Path: "/pos", Module: auth.ModulePOS, Name: "Point of Sale"},
	{Path: "/housekeeping", Module: auth.ModuleHousekeeping, Name: "Housekeeping"},
	{Path: "/kds", Module: auth.ModuleKDS, Name: "Kitchen Display"},
	{Path: "/report", Module: auth.ModuleReport, Name: "Reports"},
	{Path: "/inventory", Module: auth.ModuleInventory, Name: "Inventory"},
	{Path: "/booking-engine", Module: auth.ModuleBookingEngine, Name: "Booking Engine"},
}

// ScreenRoutes returns the route table.
func ScreenRoutes() []Route {
	out := make([]Route, len(screenRoutes))
	copy(out, screenRoutes)
	return out
}

// routeForModule returns the route table entry owned by the module.
func routeForModule(id auth.ModuleID) *Route {
	for i := range screenRoutes {
		if screenRoutes[i].Module == id {
			return &screenRoutes[i]
		}
	}
	return nil
}

// handleScreen serves the screen descriptor for one guarded route. By the
// time it runs, requireSession and requireModule have both passed.
func (s *Server) handleScreen(route Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"screen":          route.Name,
			"module":          route.Module,
			"path":            route.Path,
			"active_property": sess.ActiveProperty,
		})
	}
}
