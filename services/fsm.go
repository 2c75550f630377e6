package services

import "service-marketplace-server/models"

var requestTransitions = map[models.RequestStatus]map[models.RequestStatus]struct{}{
	models.RequestStatusRequested: {
		models.RequestStatusAssigned: {},
	},
	models.RequestStatusAssigned: {
		models.RequestStatusCompleted: {},
	},
	models.RequestStatusCompleted: {},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to models.RequestStatus) bool {
	next, ok := requestTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Actor is the acting user as supplied by the identity layer.
type Actor struct {
	ID   uint
	Role models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }
