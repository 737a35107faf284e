// Package middleware provides HTTP authorization middleware for the retreat
// authorization engine.
package middleware

import (
	"encoding/json"

	"github.com/xraph/forge"

	"github.com/retreathq/authz"
)

// Require enforces a single permission. It resolves the user from the
// request context and the retreat scope from the retreatId path parameter
// (empty for routes outside a retreat).
func Require(eng *authz.Engine, permission string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			err := eng.Enforce(ctx.Context(), authz.Query{
				UserID:     resolveUser(ctx),
				Permission: permission,
				RetreatID:  ctx.Param("retreatId"),
			})
			if err != nil {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// RequireAny allows the request if ANY of the permissions is granted.
func RequireAny(eng *authz.Engine, permissions ...string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID := resolveUser(ctx)
			retreatID := ctx.Param("retreatId")
			for _, p := range permissions {
				verdict, err := eng.Decide(ctx.Context(), authz.Query{
					UserID:     userID,
					Permission: p,
					RetreatID:  retreatID,
				})
				if err == nil && verdict.Allowed {
					return next(ctx)
				}
			}
			return denyResponse(ctx)
		}
	}
}

// RequireAll allows the request only if ALL permissions are granted.
func RequireAll(eng *authz.Engine, permissions ...string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID := resolveUser(ctx)
			retreatID := ctx.Param("retreatId")
			for _, p := range permissions {
				err := eng.Enforce(ctx.Context(), authz.Query{
					UserID:     userID,
					Permission: p,
					RetreatID:  retreatID,
				})
				if err != nil {
					return denyResponse(ctx)
				}
			}
			return next(ctx)
		}
	}
}

// resolveUser extracts the user from context. Unauthenticated requests
// evaluate as the anonymous user, which holds no grants.
func resolveUser(ctx forge.Context) string {
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return userID
	}
	return "anonymous"
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(403)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
