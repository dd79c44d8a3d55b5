// Package auth carries the authenticated actor through request contexts and
// decides who counts as an administrator.
package auth

import (
	"context"
	"slices"
	"strings"
)

type ctxKey string

const actorKey ctxKey = "actor"

// RoleAdmin is the role claim that grants admin access on its own.
const RoleAdmin = "admin"

// Actor is the currently authenticated user performing a request.
type Actor struct {
	ID    string   `json:"id"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext extracts the actor from the context.
// Returns false if the value is missing or has an empty id.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	if !ok || strings.TrimSpace(a.ID) == "" {
		return Actor{}, false
	}
	return a, true
}

// AdminPolicy decides whether an actor may use the admin surface. The email
// allowlist is loaded from configuration, never compiled in.
type AdminPolicy struct {
	emails map[string]struct{}
}

// NewAdminPolicy builds a policy from a list of admin emails. Matching is
// case-insensitive.
func NewAdminPolicy(emails []string) *AdminPolicy {
	p := &AdminPolicy{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			p.emails[e] = struct{}{}
		}
	}
	return p
}

// ParseEmailList splits a comma-separated ADMIN_EMAILS value.
func ParseEmailList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *AdminPolicy) IsAdmin(a Actor) bool {
	if a.HasRole(RoleAdmin) {
		return true
	}
	if p == nil || a.Email == "" {
		return false
	}
	_, ok := p.emails[strings.ToLower(strings.TrimSpace(a.Email))]
	return ok
}

func (p *AdminPolicy) Size() int {
	if p == nil {
		return 0
	}
	return len(p.emails)
}
