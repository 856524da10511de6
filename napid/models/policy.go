package models

import (
	"slices"

	"github.com/netfabric/napi/napid/db"
)

// ownerAllowed is the owner match predicate: an empty owner list admits
// everyone, the configured admin UUID is admitted everywhere, otherwise the
// caller must appear in the list.
func (s *State) ownerAllowed(ownerUUIDs []string, owner string) bool {
	if len(ownerUUIDs) == 0 {
		return true
	}

	if owner != "" && owner == s.AdminUUID {
		return true
	}

	return slices.Contains(ownerUUIDs, owner)
}

// provisionableBy translates the provisionable_by list parameter into a
// bucket filter. The admin sees everything, so no filter applies.
func (s *State) provisionableBy(owner string) db.Filter {
	if owner == "" || owner == s.AdminUUID {
		return nil
	}

	return db.Or(db.Absent("owner_uuids"), db.Eq("owner_uuids", owner))
}
