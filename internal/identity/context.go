package identity

import "context"

type principalKey struct{}

// ContextWithUser attaches the authenticated principal to ctx.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, principalKey{}, u)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(principalKey{}).(*User)
	return u, ok && u != nil
}
