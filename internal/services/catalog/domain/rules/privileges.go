package rules

import (
	"context"
	"strings"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/command"
)

// PrivilegeResolver reports an actor's catalog privilege.
type PrivilegeResolver interface {
	Privilege(ctx context.Context, actorID string) (command.Privilege, error)
}

// StaticPrivileges grants admin to a fixed set of actors and write to
// everyone else.
type StaticPrivileges struct {
	admins map[string]struct{}
}

// NewStaticPrivileges builds a resolver from admin actor ids. Blank ids are ignored.
func NewStaticPrivileges(admins []string) StaticPrivileges {
	set := make(map[string]struct{}, len(admins))
	for _, id := range admins {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return StaticPrivileges{admins: set}
}

// Privilege implements PrivilegeResolver.
func (p StaticPrivileges) Privilege(_ context.Context, actorID string) (command.Privilege, error) {
	if _, ok := p.admins[actorID]; ok {
		return command.PrivilegeAdmin, nil
	}
	return command.PrivilegeWrite, nil
}
