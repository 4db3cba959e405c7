// Package auth holds the caller identity and the capability checks every
// handler and service consults instead of comparing role strings.
package auth

import "context"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "cliente"
)

type Actor struct {
	ID   string
	Role Role
}

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool {
	return a.ID != ""
}

// CanManageOrders reports whether the actor may change order status and see
// every customer's orders.
func CanManageOrders(a Actor) bool {
	return a.Authenticated() && a.Role == RoleAdmin
}

// CanSeeOrder reports whether the actor may read an order owned by ownerID.
func CanSeeOrder(a Actor, ownerID string) bool {
	if !a.Authenticated() {
		return false
	}
	return CanManageOrders(a) || a.ID == ownerID
}

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok && a.Authenticated()
}
