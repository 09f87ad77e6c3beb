package realtime

import (
	"ridehail/internal/models"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SetAvailable makes the rider's session membership in the available pool
// and its gender pool match available. Both groups change under the same
// lock. Gender pools the session joined under a previous gender are left.
func (r *Registry) SetAvailable(riderID primitive.ObjectID, sessionID string, available bool, gender models.Gender) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return utils.NewNotFoundError("session")
	}
	if entry.actor.kind != models.ActorKindRider || entry.actor.id != riderID {
		return utils.NewForbiddenError("session does not belong to rider %s", riderID.Hex())
	}

	for g := range entry.groups {
		if g.kind == GroupKindGender && (!available || g != GenderPool(gender)) {
			r.leaveLocked(sessionID, g)
		}
	}

	if available {
		r.joinLocked(sessionID, AvailablePool())
		if gender.IsValid() {
			r.joinLocked(sessionID, GenderPool(gender))
		}
	} else {
		r.leaveLocked(sessionID, AvailablePool())
	}

	r.syncGaugesLocked()
	return nil
}

// AudienceForPreference resolves which pool receives a new ride request.
func AudienceForPreference(pref models.GenderPreference) GroupID {
	switch pref {
	case models.GenderPreferenceMale:
		return GenderPool(models.GenderMale)
	case models.GenderPreferenceFemale:
		return GenderPool(models.GenderFemale)
	default:
		return AvailablePool()
	}
}
