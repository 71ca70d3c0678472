package authcore

import (
	"context"
	"time"

	internalmetrics "github.com/pymesuite/authcore/internal/metrics"
	"github.com/pymesuite/authcore/permission"
	"github.com/pymesuite/authcore/session"
)

// UserRecord is the full account row. PasswordHash and TwoFactorSecret never
// leave the Engine.
type UserRecord struct {
	ID              int64
	Username        string
	Email           string
	PasswordHash    string
	Role            string
	IsActive        bool
	CreatedAt       time.Time
	LastLogin       *time.Time
	TwoFactorSecret string // base32; empty means no second factor
}

// CreateUserInput carries an already-hashed account to [UserStore.CreateUser].
type CreateUserInput struct {
	Username        string
	Email           string
	PasswordHash    string
	Role            string
	TwoFactorSecret string
	CreatedAt       time.Time
}

// UserStore is the credential store. Implementations must enforce unique
// usernames and emails and report violations as [ErrDuplicateIdentity].
//
// FindActiveUserByUsername returns [ErrUserNotFound] for absent and inactive
// accounts alike; FindUserByUsername and GetUserByID ignore is_active.
type UserStore interface {
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	FindActiveUserByUsername(ctx context.Context, username string) (UserRecord, error)
	FindUserByUsername(ctx context.Context, username string) (UserRecord, error)
	GetUserByID(ctx context.Context, id int64) (UserRecord, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdateRole(ctx context.Context, id int64, role string) error
	SetActive(ctx context.Context, id int64, active bool) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	SetTwoFactorSecret(ctx context.Context, id int64, secret string) error
}

// SessionStore persists session records keyed by token hash. Records are
// never deleted so a hash cannot be stored twice.
//
// FindSession returns [session.ErrNotFound] (or an error wrapping it) for
// unknown hashes; CreateSession assigns Session.ID.
type SessionStore interface {
	CreateSession(ctx context.Context, sess *session.Session) error
	FindSession(ctx context.Context, hash [32]byte) (*session.Session, error)
	RevokeSession(ctx context.Context, hash [32]byte, at time.Time) error
	RevokeUserSessions(ctx context.Context, userID int64, at time.Time) (int, error)
}

// PermissionStore holds the persisted permission table. SeedPermissions
// inserts rows whose (role, module) pair is absent and leaves the rest;
// UpsertPermissions overwrites them.
type PermissionStore interface {
	SeedPermissions(ctx context.Context, grants []permission.Grant) error
	UpsertPermissions(ctx context.Context, grants []permission.Grant) error
	LoadPermissions(ctx context.Context) ([]permission.Grant, error)
}

// LoginState is a step of the authentication state machine.
type LoginState uint8

const (
	// StateAwaitingCredentials is an exported constant or variable used by the authentication engine.
	StateAwaitingCredentials LoginState = iota
	// StateCredentialsVerified is an exported constant or variable used by the authentication engine.
	StateCredentialsVerified
	// StateExemptBypass is an exported constant or variable used by the authentication engine.
	StateExemptBypass
	// StateAwaitingSecondFactor is an exported constant or variable used by the authentication engine.
	StateAwaitingSecondFactor
	// StateAuthenticated is an exported constant or variable used by the authentication engine.
	StateAuthenticated
	// StateRejected is an exported constant or variable used by the authentication engine.
	StateRejected
)

func (s LoginState) String() string {
	switch s {
	case StateAwaitingCredentials:
		return "awaiting_credentials"
	case StateCredentialsVerified:
		return "credentials_verified"
	case StateExemptBypass:
		return "exempt_bypass"
	case StateAwaitingSecondFactor:
		return "awaiting_second_factor"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// AuthStatus is the externally visible outcome of a login step.
type AuthStatus uint8

const (
	// StatusRejected is an exported constant or variable used by the authentication engine.
	StatusRejected AuthStatus = iota
	// StatusNeedsSecondFactor is an exported constant or variable used by the authentication engine.
	StatusNeedsSecondFactor
	// StatusAuthenticated is an exported constant or variable used by the authentication engine.
	StatusAuthenticated
)

func (s AuthStatus) String() string {
	switch s {
	case StatusNeedsSecondFactor:
		return "needs_second_factor"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "rejected"
	}
}

// Pending is the caller-held state between the password step and the
// second-factor step. Only Token is needed to continue; the remaining fields
// let a UI show the enrollment QR code.
type Pending struct {
	Token           string
	UserID          int64
	Username        string
	Secret          string
	ProvisioningURI string
	QRCode          []byte // PNG
	ExpiresAt       time.Time
}

// AuthResult is returned by [Engine.Authenticate] and
// [Engine.VerifySecondFactor].
//
// Authenticated results carry UserID, SessionToken and Role. NeedsSecondFactor
// results carry Pending.
type AuthResult struct {
	Status       AuthStatus
	State        LoginState
	UserID       int64
	SessionToken string
	Role         permission.Role
	Pending      *Pending
}

// MetricID defines a public type used by authcore APIs.
type MetricID = internalmetrics.ID

// MetricsSnapshot defines a public type used by authcore APIs.
type MetricsSnapshot = internalmetrics.Snapshot

// LatencyBucketLabel names histogram bucket i of a [MetricsSnapshot],
// e.g. "<=5ms" or ">500ms".
func LatencyBucketLabel(i int) string {
	bounds := internalmetrics.BucketBounds
	switch {
	case i < 0 || i >= internalmetrics.BucketCount:
		return "unknown"
	case i < len(bounds):
		return "<=" + bounds[i].String()
	default:
		return ">" + bounds[len(bounds)-1].String()
	}
}

const (
	// MetricLoginSuccess is an exported constant or variable used by the authentication engine.
	MetricLoginSuccess = internalmetrics.LoginSuccess
	// MetricLoginFailure is an exported constant or variable used by the authentication engine.
	MetricLoginFailure = internalmetrics.LoginFailure
	// MetricSecondFactorRequired is an exported constant or variable used by the authentication engine.
	MetricSecondFactorRequired = internalmetrics.SecondFactorRequired
	// MetricSecondFactorSuccess is an exported constant or variable used by the authentication engine.
	MetricSecondFactorSuccess = internalmetrics.SecondFactorSuccess
	// MetricSecondFactorFailure is an exported constant or variable used by the authentication engine.
	MetricSecondFactorFailure = internalmetrics.SecondFactorFailure
	// MetricSecondFactorBypassed is an exported constant or variable used by the authentication engine.
	MetricSecondFactorBypassed = internalmetrics.SecondFactorBypassed
	// MetricSecondFactorAttemptsExceeded is an exported constant or variable used by the authentication engine.
	MetricSecondFactorAttemptsExceeded = internalmetrics.SecondFactorAttemptsExceeded
	// MetricSessionCreated is an exported constant or variable used by the authentication engine.
	MetricSessionCreated = internalmetrics.SessionCreated
	// MetricSessionValidated is an exported constant or variable used by the authentication engine.
	MetricSessionValidated = internalmetrics.SessionValidated
	// MetricSessionRejected is an exported constant or variable used by the authentication engine.
	MetricSessionRejected = internalmetrics.SessionRejected
	// MetricSessionRevoked is an exported constant or variable used by the authentication engine.
	MetricSessionRevoked = internalmetrics.SessionRevoked
	// MetricRegistrationSuccess is an exported constant or variable used by the authentication engine.
	MetricRegistrationSuccess = internalmetrics.RegistrationSuccess
	// MetricRegistrationDuplicate is an exported constant or variable used by the authentication engine.
	MetricRegistrationDuplicate = internalmetrics.RegistrationDuplicate
	// MetricPermissionDenied is an exported constant or variable used by the authentication engine.
	MetricPermissionDenied = internalmetrics.PermissionDenied
	// MetricAccountDeactivated is an exported constant or variable used by the authentication engine.
	MetricAccountDeactivated = internalmetrics.AccountDeactivated
	// MetricPasswordRehashed is an exported constant or variable used by the authentication engine.
	MetricPasswordRehashed = internalmetrics.PasswordRehashed
	// MetricValidateLatency is an exported constant or variable used by the authentication engine.
	MetricValidateLatency = internalmetrics.ValidateLatency
)
