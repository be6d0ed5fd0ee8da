package echoapi

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
	tokensvc "github.com/trezcool/academia/services/token"
)

const (
	contextTokenKey    = "accessToken"
	contextIdentityKey = "identity"
)

// guard authorizes requests in three steps: a valid access token, an active account, then a matching role.
type guard struct {
	jwt        echo.MiddlewareFunc
	accountSvc *account.Service
}

func newGuard(conf *core.Config, accountSvc *account.Service) *guard {
	return &guard{
		jwt: middleware.JWTWithConfig(middleware.JWTConfig{
			SigningKey:    []byte(conf.Auth.AccessKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(tokensvc.AccessClaims),
		}),
		accountSvc: accountSvc,
	}
}

// chain returns the guard middlewares for a route group, in the order they must run.
func (g *guard) chain(roles ...string) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{g.requireToken, g.requireActive, requireRoles(roles...)}
}

func (g *guard) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return g.jwt(attachIdentity(next))
}

// attachIdentity stores the account.Identity carried by the verified token.
func attachIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		token, ok := ctx.Get(contextTokenKey).(*jwt.Token)
		if !ok {
			return errUnauthorized
		}
		claims, ok := token.Claims.(*tokensvc.AccessClaims)
		if !ok {
			return errUnauthorized
		}
		ctx.Set(contextIdentityKey, claims.Identity())
		return next(ctx)
	}
}

// requireActive checks the account against the store on every request,
// so deactivation takes effect before the token expires.
func (g *guard) requireActive(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, ok := contextIdentity(ctx)
		if !ok {
			return errUnauthorized
		}
		if id.AccountID <= 0 {
			return errNoAccountID
		}

		active, err := g.accountSvc.Status(ctx.Request().Context(), id.AccountID)
		if err != nil {
			return errors.Wrap(err, "checking account status")
		}
		if !active {
			return errAccountDeactivated
		}
		return next(ctx)
	}
}

func requireRoles(roles ...string) echo.MiddlewareFunc {
	allowed := func(held []string) bool { return account.HasAnyRole(roles, held) }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, ok := contextIdentity(ctx)
			if !ok {
				return errUnauthorized
			}
			if len(id.Roles) == 0 || !allowed(id.Roles) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

func contextIdentity(ctx echo.Context) (account.Identity, bool) {
	id, ok := ctx.Get(contextIdentityKey).(account.Identity)
	return id, ok
}
