// Package policy decides which actions an actor may take on feedback.
package policy

import "credit-backend/internal/models"

// CanView allows privileged actors and both participants of the entry.
func CanView(actor models.Actor, entry *models.Feedback) bool {
	return actor.IsPrivileged() || entry.RaterID == actor.ID || entry.TargetID == actor.ID
}

// CanUpdate allows privileged actors only. Raters cannot edit their own
// entries after creation.
func CanUpdate(actor models.Actor) bool {
	return actor.IsPrivileged()
}

// CanDelete allows privileged actors and the original rater.
func CanDelete(actor models.Actor, entry *models.Feedback) bool {
	return actor.IsPrivileged() || entry.RaterID == actor.ID
}

// CanModify is the flag returned with listings.
func CanModify(actor models.Actor) bool {
	return actor.IsPrivileged()
}

func CanViewStats(actor models.Actor) bool {
	return actor.IsAdmin()
}

func CanViewReports(actor models.Actor) bool {
	return actor.IsAdmin()
}
