package auth

// ModuleID identifies a top-level functional area of the console.
type ModuleID string

// Module catalog.
const (
	ModuleReservation   ModuleID = "reservation"
	ModuleBackOffice    ModuleID = "backoffice"
	ModuleFrontDesk     ModuleID = "frontdesk"
	ModulePOS           ModuleID = "pos"
	ModuleHousekeeping  ModuleID = "housekeeping"
	ModuleKDS           ModuleID = "kds"
	ModuleReport        ModuleID = "report"
	ModuleInventory     ModuleID = "inventory"
	ModuleBookingEngine ModuleID = "bookingEngine"
)

// moduleCatalog is the fixed catalog in display order. The navigator renders
// tiles in this order regardless of how a membership's grant list is stored,
// so layout stays stable across backends.
var moduleCatalog = []ModuleID{
	ModuleReservation,
	ModuleBackOffice,
	ModuleFrontDesk,
	ModulePOS,
	ModuleHousekeeping,
	ModuleKDS,
	ModuleReport,
	ModuleInventory,
	ModuleBookingEngine,
}

// Catalog returns the full module catalog in display order.
func Catalog() []ModuleID {
	out := make([]ModuleID, len(moduleCatalog))
	copy(out, moduleCatalog)
	return out
}

// IsValidModule returns true if the id belongs to the catalog.
func IsValidModule(id ModuleID) bool {
	for _, m := range moduleCatalog {
		if m == id {
			return true
		}
	}
	return false
}

// GrantSet is a resolved, point-in-time set of module identifiers.
// It is derived, never stored; recompute it on every access check.
type GrantSet map[ModuleID]struct{}

// NewGrantSet builds a set from the given ids, dropping unknown ones.
func NewGrantSet(ids ...ModuleID) GrantSet {
	gs := make(GrantSet, len(ids))
	for _, id := range ids {
		if IsValidModule(id) {
			gs[id] = struct{}{}
		}
	}
	return gs
}

// Has reports whether the module is in the set.
func (gs GrantSet) Has(id ModuleID) bool {
	_, ok := gs[id]
	return ok
}

// Modules returns the set's members in catalog order.
func (gs GrantSet) Modules() []ModuleID {
	out := make([]ModuleID, 0, len(gs))
	for _, id := range moduleCatalog {
		if gs.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Equal reports order-independent set equality.
func (gs GrantSet) Equal(other GrantSet) bool {
	if len(gs) != len(other) {
		return false
	}
	for id := range gs {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Resolve computes the grant decision for a session at its active property.
//
// This is the single source of truth for module access: the navigator's
// tile list and every navigation authorisation go through it, freshly, on
// each call. Precedence, in order:
//
//  1. No session: empty set.
//  2. Superadmin: the full catalog, bypassing membership lookups entirely.
//  3. The membership matching the active property supplies the candidate
//     set. No match, or an empty grant list, means the empty set: never a
//     fallback to another membership and never an implicit "all modules".
//  4. Back-office is stripped unless the role is superadmin. Step 2 already
//     guarantees this for legitimate data, but the strip is re-asserted so a
//     corrupted or hand-crafted membership payload naming "backoffice" can
//     never leak through.
func Resolve(s *Session) GrantSet {
	if s == nil {
		return NewGrantSet()
	}

	if s.Identity.IsSuperAdmin() {
		return NewGrantSet(moduleCatalog...)
	}

	m := s.MembershipFor(s.ActiveProperty)
	if m == nil {
		return NewGrantSet()
	}

	gs := NewGrantSet(m.Modules...)
	delete(gs, ModuleBackOffice)
	return gs
}

// CanAccess reports whether the session may open the given module right now.
// Thin wrapper over Resolve so callers re-checking at activation time use
// the identical decision path.
func CanAccess(s *Session, id ModuleID) bool {
	return Resolve(s).Has(id)
}
