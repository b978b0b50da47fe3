package session

import (
	"context"
	"memberflow/authority"
	"time"

	"github.com/fundwit/go-commons/types"
)

type Identity struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Nickname string   `json:"nickname"`
}

type Session struct {
	Context context.Context `json:"-"`

	Token       string                `json:"token"`
	Identity    Identity              `json:"identity"`
	Perms       authority.Permissions `json:"perms"`
	SigningTime time.Time             `json:"signingTime"`
}

func (s *Session) Clone() Session {
	perms := make(authority.Permissions, len(s.Perms))
	copy(perms, s.Perms)
	return Session{
		Context:     s.Context,
		Token:       s.Token,
		Identity:    s.Identity,
		Perms:       perms,
		SigningTime: s.SigningTime,
	}
}
