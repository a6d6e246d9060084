// Package repositories groups the PostgreSQL repositories of the server.
//
// Reads of note content are scoped in SQL: every statement carries the
// caller id and only returns rows when that caller has an active profile.
// Admin writes carry the same kind of predicate for an active admin. Rows
// the caller may not see are reported exactly like missing rows.
package repositories

import (
	"github.com/google/uuid"

	"github.com/dmitrijs2005/securenotes/internal/server/auth"
)

// ActiveReader is the predicate fragment requiring an active caller. The
// caller id is the positional parameter named by the format verb.
const ActiveReader = `EXISTS (SELECT 1 FROM profiles viewer WHERE viewer.id = %s AND viewer.status = 'active')`

// ActiveAdmin is the predicate fragment requiring an active admin caller.
const ActiveAdmin = `EXISTS (SELECT 1 FROM profiles admin WHERE admin.id = %s AND admin.role = 'admin' AND admin.status = 'active')`

// CallerArg returns the SQL argument for a session: nil for anonymous or
// malformed ids, which no profile row can match.
func CallerArg(s *auth.Session) any {
	return IDArg(s.ID())
}

// IDArg returns id when it is a well-formed UUID and nil otherwise.
func IDArg(id string) any {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	return id
}

// ValidID reports whether id can name a row at all.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
