package services

import (
	"calificaciones-backend/db/models"
)

// ReassignOwnership applies the manual-takeover rule when an existing
// qualification is edited.
//
// Only file-origin records (batch-linked, owner null or not) are affected:
// a Corredor who edits one takes ownership and the file linkage is cleared,
// turning it into a manual record. An Administrador edits in place and the
// record keeps its exchange origin. Any other role leaves it untouched too.
func ReassignOwnership(q *models.Qualification, actorRole string, actor *models.User) {
	if q.ImportBatchID == nil {
		return
	}
	if actorRole == models.RoleBroker && actor != nil {
		q.ImportBatchID = nil
		q.UserID = &actor.ID
	}
}
