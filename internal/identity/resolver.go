package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/studyshelf/studyshelf/internal/fault"
	"github.com/studyshelf/studyshelf/internal/storage"
)

// Identity is the resolved caller: who they are and their current
// standing. Standing is read fresh from the store on every resolution;
// an allow-decision is never cached across calls.
type Identity struct {
	UserID      string
	Role        storage.Role
	IsAdmin     bool
	IsSuspended bool
}

// TokenValidator narrows TokenIssuer to what the resolver needs.
type TokenValidator interface {
	ValidateToken(tokenString string) (string, error)
}

// ResolverConfig describes the resolver dependencies.
type ResolverConfig struct {
	Validator TokenValidator
	Store     storage.Store
}

// Resolver turns an Authorization header value into an Identity.
type Resolver struct {
	validator TokenValidator
	store     storage.Store
}

// NewResolver constructs a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Validator == nil {
		return nil, errors.New("identity: token validator required")
	}
	if cfg.Store == nil {
		return nil, errors.New("identity: store required")
	}
	return &Resolver{validator: cfg.Validator, store: cfg.Store}, nil
}

// Resolve parses and validates the raw Authorization header value.
func (r *Resolver) Resolve(ctx context.Context, header string) (Identity, error) {
	if strings.TrimSpace(header) == "" {
		return Identity{}, FaultNoAuthHeader
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Identity{}, FaultInvalidAuthFormat
	}

	userID, err := r.validator.ValidateToken(parts[1])
	if err != nil {
		if f, ok := fault.From(err); ok {
			return Identity{}, f
		}
		return Identity{}, FaultInvalidToken
	}

	user, err := r.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Identity{}, FaultUserNotFound
		}
		return Identity{}, fault.Unavailable(err)
	}

	return Identity{
		UserID:      user.ID,
		Role:        user.Role,
		IsAdmin:     user.IsAdmin,
		IsSuspended: user.IsSuspended,
	}, nil
}

// RequireActive rejects suspended accounts. Mutating handlers call this
// on every request so a prior allow-decision never outlives suspension.
func (id Identity) RequireActive() error {
	if id.IsSuspended {
		return FaultAccountInactive
	}
	return nil
}
