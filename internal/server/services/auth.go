package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/logging"
	"github.com/dmitrijs2005/gophbank/internal/server/auth"
	"github.com/dmitrijs2005/gophbank/internal/server/metrics"
	"github.com/dmitrijs2005/gophbank/internal/server/models"
	"github.com/dmitrijs2005/gophbank/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const dateOfBirthLayout = "2006-01-02"

// RegisterInput is the registration request.
type RegisterInput struct {
	Username    string `validate:"required,alphanum,min=3,max=50"`
	FullName    string `validate:"required,max=100"`
	Email       string `validate:"required,email"`
	Password    string `validate:"required,min=8,max=72"`
	DateOfBirth string `validate:"required,datetime=2006-01-02"`
	Role        string `validate:"omitempty,oneof=ADMIN CUSTOMER"`
}

// LoginResult carries the issued pair and the public fields of the user.
// User.PasswordHash is always empty.
type LoginResult struct {
	User                  *models.User
	SessionID             string
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

type RefreshResult struct {
	SessionID            string
	AccessToken          string
	AccessTokenExpiresAt time.Time
}

// AuthServiceOptions holds the collaborators and token lifetimes of an
// AuthService. Logger and Metrics may be nil.
type AuthServiceOptions struct {
	Passwords       PasswordHasher
	Tokens          TokenIssuer
	TokenHasher     TokenHasher
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Logger          logging.Logger
	Metrics         *metrics.Metrics
}

// AuthService runs registration and the session lifecycle:
// login creates a session, refresh replaces its access token and revoke
// terminates it. Expiry is checked lazily.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	users       *UserService

	passwords   PasswordHasher
	tokens      TokenIssuer
	tokenHasher TokenHasher
	accessTTL   time.Duration
	refreshTTL  time.Duration

	logger  logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, users *UserService, opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &AuthService{
		db:          db,
		repomanager: m,
		users:       users,
		passwords:   opts.Passwords,
		tokens:      opts.Tokens,
		tokenHasher: opts.TokenHasher,
		accessTTL:   opts.AccessTokenTTL,
		refreshTTL:  opts.RefreshTokenTTL,
		logger:      logger.With("module", "auth"),
		metrics:     opts.Metrics,
		now:         time.Now,
	}
}

// Register is self-service sign-up: it validates in, hashes the password
// and stores the user as a customer. Any other role is a validation error.
// A taken username or email is reported as common.ErrorValidation wrapping
// common.ErrorConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (user *models.User, err error) {
	defer func() { s.metrics.RecordAuth("register", err) }()

	if in.Role != "" && in.Role != common.RoleCustomer {
		return nil, fmt.Errorf("%w: role can only be assigned by an admin", common.ErrorValidation)
	}
	return s.register(ctx, in)
}

// RegisterByAdmin registers a user with any role. actor must carry the
// admin role, otherwise common.ErrorUnauthorized is returned.
func (s *AuthService) RegisterByAdmin(ctx context.Context, actor *auth.Claims, in RegisterInput) (user *models.User, err error) {
	defer func() { s.metrics.RecordAuth("register", err) }()

	if actor == nil || actor.Role != common.RoleAdmin {
		s.logger.Warn(ctx, "register with role refused", "role", in.Role)
		return nil, common.ErrorUnauthorized
	}
	return s.register(ctx, in)
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	dob, err := time.ParseInLocation(dateOfBirthLayout, in.DateOfBirth, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: dateofbirth: %v", common.ErrorValidation, err)
	}
	if dob.After(s.now()) {
		return nil, fmt.Errorf("%w: dateofbirth is in the future", common.ErrorValidation)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	created, err := s.users.Create(ctx, &models.User{
		RoleName:     in.Role,
		UserName:     in.Username,
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		DateOfBirth:  dob,
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, fmt.Errorf("%w: username or email already taken: %w", common.ErrorValidation, err)
		}
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", created.ID, "role", created.RoleName)
	created.PasswordHash = ""
	return created, nil
}

// Login checks the credentials and opens a session. Unknown usernames and
// wrong passwords both yield common.ErrorBadCredentials. Tokens are returned
// only after the session row is stored.
func (s *AuthService) Login(ctx context.Context, username, password string) (res *LoginResult, err error) {
	defer func() { s.metrics.RecordAuth("login", err) }()

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
		// burn a compare so unknown users take as long as wrong passwords
		s.passwords.Compare(password, s.dummyPasswordHash())
		s.logger.Warn(ctx, "login failed", "reason", "unknown user")
		return nil, common.ErrorBadCredentials
	}

	if !s.passwords.Compare(password, user.PasswordHash) {
		s.logger.Warn(ctx, "login failed", "reason", "wrong password", "user_id", user.ID)
		return nil, common.ErrorBadCredentials
	}

	jti := uuid.NewString()

	var (
		accessToken, refreshToken         string
		accessExpiresAt, refreshExpiresAt time.Time
	)
	var issue errgroup.Group
	issue.Go(func() (err error) {
		accessToken, accessExpiresAt, err = s.tokens.Issue(user.ID, user.UserName, user.FullName, user.RoleName, s.accessTTL, jti)
		return err
	})
	issue.Go(func() (err error) {
		refreshToken, refreshExpiresAt, err = s.tokens.Issue(user.ID, user.UserName, user.FullName, user.RoleName, s.refreshTTL, jti)
		return err
	})
	if err := issue.Wait(); err != nil {
		return nil, fmt.Errorf("%w: issuing tokens: %v", common.ErrorInternal, err)
	}

	var accessHash, refreshHash string
	var hash errgroup.Group
	hash.Go(func() (err error) {
		accessHash, err = s.tokenHasher.Hash(accessToken)
		return err
	})
	hash.Go(func() (err error) {
		refreshHash, err = s.tokenHasher.Hash(refreshToken)
		return err
	})
	if err := hash.Wait(); err != nil {
		return nil, fmt.Errorf("%w: hashing tokens: %v", common.ErrorInternal, err)
	}

	session, err := s.repomanager.Sessions(s.db).Create(ctx, &models.Session{
		UserID:              user.ID,
		JTI:                 jti,
		TokenHash:           accessHash,
		RefreshTokenHash:    refreshHash,
		TokenExpired:        accessExpiresAt,
		RefreshTokenExpired: refreshExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: storing session: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "session created", "user_id", user.ID, "jti", session.JTI)

	user.PasswordHash = ""
	return &LoginResult{
		User:                  user,
		SessionID:             session.JTI,
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresAt:  accessExpiresAt,
		RefreshTokenExpiresAt: refreshExpiresAt,
	}, nil
}

// Refresh issues a new access token for the session named by already
// verified claims. The refresh token hash and expiry are kept.
func (s *AuthService) Refresh(ctx context.Context, claims *auth.Claims) (res *RefreshResult, err error) {
	defer func() { s.metrics.RecordAuth("refresh", err) }()

	session, err := s.activeSession(ctx, claims)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, claims, session)
}

// RefreshWithToken verifies refreshToken, checks it is the refresh token
// stored for its session and then behaves like Refresh.
func (s *AuthService) RefreshWithToken(ctx context.Context, refreshToken string) (res *RefreshResult, err error) {
	defer func() { s.metrics.RecordAuth("refresh", err) }()

	claims, err := s.tokens.Parse(refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, common.ErrRefreshTokenExpired
		}
		return nil, err
	}

	session, err := s.activeSession(ctx, claims)
	if err != nil {
		return nil, err
	}
	if !s.tokenHasher.Compare(refreshToken, session.RefreshTokenHash) {
		return nil, common.ErrInvalidToken
	}

	return s.refresh(ctx, claims, session)
}

func (s *AuthService) refresh(ctx context.Context, claims *auth.Claims, session *models.Session) (*RefreshResult, error) {
	token, expiresAt, err := s.tokens.Issue(claims.UserID(), claims.Username, claims.FullName, claims.Role, s.accessTTL, session.JTI)
	if err != nil {
		return nil, fmt.Errorf("%w: issuing token: %v", common.ErrorInternal, err)
	}

	hash, err := s.tokenHasher.Hash(token)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing token: %v", common.ErrorInternal, err)
	}

	if _, err := s.repomanager.Sessions(s.db).UpdateToken(ctx, session.JTI, hash, expiresAt); err != nil {
		s.logger.Error(ctx, "failed to update access token", "jti", session.JTI, "error", err)
		return nil, fmt.Errorf("%w: failed to update access token: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "access token refreshed", "user_id", session.UserID, "jti", session.JTI)
	return &RefreshResult{SessionID: session.JTI, AccessToken: token, AccessTokenExpiresAt: expiresAt}, nil
}

// Revoke terminates the session. Revoking twice is not an error.
func (s *AuthService) Revoke(ctx context.Context, jti string) (session *models.Session, err error) {
	defer func() { s.metrics.RecordAuth("revoke", err) }()

	session, err = s.repomanager.Sessions(s.db).Revoke(ctx, jti)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "session revoked", "user_id", session.UserID, "jti", jti)
	return session, nil
}

// RevokeAll terminates every live session of userID.
func (s *AuthService) RevokeAll(ctx context.Context, userID string) (n int64, err error) {
	defer func() { s.metrics.RecordAuth("revoke_all", err) }()

	n, err = s.repomanager.Sessions(s.db).RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

// Authenticate verifies accessToken and checks that it is the current access
// token of a live session. Access tokens replaced by a refresh stop working.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (claims *auth.Claims, err error) {
	defer func() { s.metrics.RecordAuth("authenticate", err) }()

	claims, err = s.tokens.Parse(accessToken)
	if err != nil {
		return nil, err
	}

	session, err := s.activeSession(ctx, claims)
	if err != nil {
		return nil, err
	}
	if !s.tokenHasher.Compare(accessToken, session.TokenHash) {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// activeSession loads the session of claims and requires it to be active and
// owned by the token subject.
func (s *AuthService) activeSession(ctx context.Context, claims *auth.Claims) (*models.Session, error) {
	session, err := s.repomanager.Sessions(s.db).FindByJTI(ctx, claims.SessionID())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if session.UserID != claims.UserID() {
		return nil, common.ErrInvalidToken
	}

	switch session.Status(s.now()) {
	case models.SessionRevoked:
		return nil, common.ErrorSessionRevoked
	case models.SessionExpired:
		return nil, common.ErrRefreshTokenExpired
	}
	return session, nil
}

func (s *AuthService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		pw, err := common.MakeRandHexString(16)
		if err != nil {
			pw = "gophbank-dummy-password"
		}
		s.dummyHash, _ = s.passwords.Hash(pw)
	})
	return s.dummyHash
}
