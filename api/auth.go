/*
auth.go - Caller identity and role gating

PURPOSE:
  Turns the Authorization header into an actionitem.Identity stored on the
  request context. Tokens are issued elsewhere; this server only verifies
  them.

TOKENS:
  HS256 JWT with claims:
    sub   user id
    role  one of the roles below
    exp   expiry (required)

DEVELOPMENT MODE:
  With an empty secret the middleware trusts X-User-ID and X-User-Role
  headers instead. Config refuses an empty secret in production.

ROLES:
  Coordinators (admin, ops_manager, sc_lead, study_coordinator) create,
  edit and delete items. Managers (admin, ops_manager) manage studies and
  SLA rules. Any authenticated role may read and move item status.

SEE ALSO:
  - server.go: where the middleware is mounted
  - config/config.go: JWT_SECRET
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/action-tracker/actionitem"
)

type Role string

const (
	RoleAdmin            Role = "admin"
	RoleOpsManager       Role = "ops_manager"
	RoleSCLead           Role = "sc_lead"
	RoleStudyCoordinator Role = "study_coordinator"
	RoleDataManager      Role = "data_manager"
	RoleQuality          Role = "quality"
	RoleFinance          Role = "finance"
	RoleReadonly         Role = "readonly"
)

var (
	CoordinatorRoles = []Role{RoleAdmin, RoleOpsManager, RoleSCLead, RoleStudyCoordinator}
	ManagerRoles     = []Role{RoleAdmin, RoleOpsManager}
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOpsManager, RoleSCLead, RoleStudyCoordinator,
		RoleDataManager, RoleQuality, RoleFinance, RoleReadonly:
		return true
	}
	return false
}

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

var ErrUnauthenticated = errors.New("authentication required")

// =============================================================================
// AUTHENTICATOR
// =============================================================================

// Authenticator verifies bearer tokens.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns an authenticator for the HS256 secret. An empty
// secret selects development mode.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// DevMode reports whether identity comes from plain headers.
func (a *Authenticator) DevMode() bool { return len(a.secret) == 0 }

// VerifyToken validates a token and returns the caller it names.
func (a *Authenticator) VerifyToken(tokenString string) (actionitem.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return actionitem.Identity{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return actionitem.Identity{}, errors.New("invalid token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return actionitem.Identity{}, errors.New("invalid sub in token")
	}
	roleStr, ok := claims["role"].(string)
	if !ok {
		return actionitem.Identity{}, errors.New("invalid role in token")
	}
	if !Role(roleStr).Valid() {
		return actionitem.Identity{}, fmt.Errorf("invalid role %q in token", roleStr)
	}
	return actionitem.Identity{UserID: sub, Role: roleStr}, nil
}

// Identify extracts the caller from a request.
func (a *Authenticator) Identify(r *http.Request) (actionitem.Identity, error) {
	if a.DevMode() {
		id := actionitem.Identity{
			UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Role:   strings.TrimSpace(r.Header.Get(HeaderUserRole)),
		}
		if id.UserID == "" {
			return id, ErrUnauthenticated
		}
		if id.Role == "" {
			id.Role = string(RoleReadonly)
		}
		if !Role(id.Role).Valid() {
			return actionitem.Identity{}, fmt.Errorf("unknown role %q", id.Role)
		}
		return id, nil
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return actionitem.Identity{}, ErrUnauthenticated
	}
	return a.VerifyToken(token)
}

// Middleware rejects unauthenticated requests with 401 and stores the
// identity on the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Identify(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole allows only the listed roles through; others get 403.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized", ErrUnauthenticated)
				return
			}
			for _, role := range roles {
				if Role(id.Role) == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Insufficient role", fmt.Errorf("role %q may not %s %s", id.Role, r.Method, r.URL.Path))
		})
	}
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id actionitem.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (actionitem.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(actionitem.Identity)
	return id, ok
}
