package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_NilIsAnonymous(t *testing.T) {
	var s *Session
	assert.Equal(t, "", s.ID())
	assert.Equal(t, AnonymousLabel, s.Label())
}

func TestSession_Label(t *testing.T) {
	assert.Equal(t, "a@b.c", (&Session{UserID: "u", Email: "a@b.c"}).Label())
	assert.Equal(t, AnonymousLabel, (&Session{UserID: "u"}).Label())
}

func TestSessionContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	s := &Session{UserID: "u1"}
	assert.Same(t, s, FromContext(WithSession(ctx, s)))
}
