package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stayward/console-core/internal/audit"
	"github.com/stayward/console-core/internal/auth"
)

// emptyGrantMessage is shown instead of a silently blank navigator.
const emptyGrantMessage = "no modules granted — contact your administrator"

// moduleTile is one navigator entry.
type moduleTile struct {
	ID   auth.ModuleID `json:"id"`
	Name string        `json:"name"`
	Path string        `json:"path"`
}

// handleListModules renders the module navigator: the grant decision is
// resolved fresh for this render pass and tiles come back in catalog order,
// never in grant-list order.
func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	granted := auth.Resolve(sess)

	tiles := make([]moduleTile, 0, len(granted))
	for _, id := range granted.Modules() {
		tile := moduleTile{ID: id, Name: string(id)}
		if rt := routeForModule(id); rt != nil {
			tile.Name = rt.Name
			tile.Path = rt.Path
		}
		tiles = append(tiles, tile)
	}

	payload := map[string]any{
		"modules":         tiles,
		"active_property": sess.ActiveProperty,
	}
	if len(tiles) == 0 {
		payload["message"] = emptyGrantMessage
	}

	writeJSON(w, http.StatusOK, payload)
}

// handleOpenModule authorises a tile activation. The grant decision is
// re-resolved at click time, so a module revoked between render and click
// (or a hand-crafted request for an ungranted tile) is turned away here
// with the same decision path the navigator rendered from.
func (s *Server) handleOpenModule(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	id := auth.ModuleID(chi.URLParam(r, "id"))

	if !auth.IsValidModule(id) {
		writeNotFound(w, "unknown module")
		return
	}

	if !auth.CanAccess(sess, id) {
		s.auditLog(r.Context(), audit.ActionAccessDenied, "module", string(id), sess)
		writeAccessDenied(w)
		return
	}

	rt := routeForModule(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"module": id,
		"route":  rt.Path,
	})
}
