package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/studyshelf/studyshelf/internal/fault"
	"github.com/studyshelf/studyshelf/internal/storage"
)

var noOpLogger = zap.NewNop()

// AccountServiceConfig describes the dependencies of the account surface.
type AccountServiceConfig struct {
	Store  storage.Store
	Issuer *TokenIssuer
	Clock  func() time.Time
	Logger *zap.Logger
}

// AccountService owns registration, login, and profile maintenance.
type AccountService struct {
	store  storage.Store
	issuer *TokenIssuer
	clock  func() time.Time
	logger *zap.Logger
}

// NewAccountService constructs the account service.
func NewAccountService(cfg AccountServiceConfig) (*AccountService, error) {
	if cfg.Store == nil {
		return nil, errors.New("identity: store required")
	}
	if cfg.Issuer == nil {
		return nil, errors.New("identity: token issuer required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &AccountService{store: cfg.Store, issuer: cfg.Issuer, clock: clock, logger: logger}, nil
}

// RegisterParams carries the registration payload.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Role     string
	Branch   string
	Section  string
	RollNo   string
}

// NormalizeEmail lowercases and trims an email for case-insensitive
// uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. Email uniqueness is enforced by the
// store's unique index; a duplicate surfaces as EmailTaken.
func (s *AccountService) Register(ctx context.Context, params RegisterParams) (*storage.User, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fault.Validation("NameRequired", "name is required")
	}
	email := NormalizeEmail(params.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fault.Validation("InvalidEmail", "a valid email is required")
	}
	if len(params.Password) < 6 {
		return nil, fault.Validation("WeakPassword", "password must be at least 6 characters")
	}

	role := storage.Role(strings.TrimSpace(params.Role))
	if role == "" {
		role = storage.RoleStudent
	}
	if role != storage.RoleStudent && role != storage.RoleTeacher {
		return nil, FaultInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &storage.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Branch:       strings.TrimSpace(params.Branch),
		Section:      strings.TrimSpace(params.Section),
		RollNo:       strings.TrimSpace(params.RollNo),
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, FaultEmailTaken
		}
		s.logger.Error("account create failed", zap.String("operation", "identity.register"), zap.Error(err))
		return nil, fault.Unavailable(err)
	}
	return user, nil
}

// Login verifies credentials and issues a bearer token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*storage.User, string, int64, error) {
	user, err := s.store.UserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", 0, FaultInvalidCredentials
		}
		return nil, "", 0, fault.Unavailable(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", 0, FaultInvalidCredentials
	}
	if user.IsSuspended {
		return nil, "", 0, FaultAccountInactive
	}

	token, expiresIn, err := s.issuer.IssueToken(user.ID)
	if err != nil {
		s.logger.Error("token issue failed", zap.String("operation", "identity.login"), zap.Error(err))
		return nil, "", 0, err
	}
	return user, token, expiresIn, nil
}

// Profile loads the caller's account.
func (s *AccountService) Profile(ctx context.Context, userID string) (*storage.User, error) {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, FaultUserNotFound
		}
		return nil, fault.Unavailable(err)
	}
	return user, nil
}

// ProfileUpdate carries the writable profile fields. Email, id, role,
// admin, and reputation-like fields are never accepted here; callers
// submitting them have those values silently dropped.
type ProfileUpdate struct {
	Name    *string
	Branch  *string
	Section *string
	RollNo  *string
}

// UpdateProfile applies the writable subset and returns the fresh profile.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*storage.User, error) {
	fields := map[string]any{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, fault.Validation("NameRequired", "name is required")
		}
		fields["name"] = name
	}
	if update.Branch != nil {
		fields["branch"] = strings.TrimSpace(*update.Branch)
	}
	if update.Section != nil {
		fields["section"] = strings.TrimSpace(*update.Section)
	}
	if update.RollNo != nil {
		fields["roll_no"] = strings.TrimSpace(*update.RollNo)
	}

	if len(fields) > 0 {
		if err := s.store.UpdateUserProfile(ctx, userID, fields); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, FaultUserNotFound
			}
			return nil, fault.Unavailable(err)
		}
	}
	return s.Profile(ctx, userID)
}
