package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/models"
	"jammr/backend/pkg/jwt"
)

// ProviderGoogle is the only federated provider.
const ProviderGoogle = "google"

// IDTokenVerifier checks a federated ID token. *idtoken.Validator satisfies it.
type IDTokenVerifier interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// AuthResult is what a successful sign-in hands back to the client.
type AuthResult struct {
	Token     string
	UserID    string
	TokenID   string
	ExpiresAt time.Time
	IsNewUser bool
}

type IdentityService struct {
	db       *gorm.DB
	log      *logger.Logger
	tokens   *jwt.Issuer
	verifier IDTokenVerifier
	audience string
}

// NewIdentityService builds the identity provider. verifier may be nil, in
// which case federated sign-in reports the backend as unavailable.
func NewIdentityService(db *gorm.DB, log *logger.Logger, tokens *jwt.Issuer, verifier IDTokenVerifier, googleClientID string) *IdentityService {
	return &IdentityService{
		db:       db,
		log:      log.With("service", "IdentityService"),
		tokens:   tokens,
		verifier: verifier,
		audience: googleClientID,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const maxPasswordBytes = 72

// SignUp registers an email/password account.
func (s *IdentityService) SignUp(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || len(password) < 6 {
		return nil, invalid("email and a password of at least 6 characters are required")
	}
	// bcrypt only hashes the first 72 bytes and rejects longer input.
	if len(password) > maxPasswordBytes {
		return nil, invalid("password must be at most 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := models.Account{Email: email, PasswordHash: string(hash), Provider: models.ProviderPassword}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Account{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return backendErr(err, nil)
		}
		if n > 0 {
			return apperr.ErrAccountExists
		}
		if err := tx.Create(&acc).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrAccountExists
			}
			return backendErr(err, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("account created", "user_id", acc.ID, "provider", acc.Provider)
	return s.issue(acc.ID, true)
}

// SignIn checks an email/password pair. Unknown emails, wrong passwords and
// federated-only accounts all fail the same way.
func (s *IdentityService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	var acc models.Account
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&acc).Error
	if err != nil {
		return nil, backendErr(err, apperr.ErrInvalidCredentials)
	}
	if acc.PasswordHash == "" {
		return nil, apperr.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	return s.issue(acc.ID, false)
}

// FederatedSignIn verifies a provider ID token and signs the holder in,
// creating the account on first use. An email already registered with a
// password fails with apperr.ErrAccountExistsDifferentCredential.
func (s *IdentityService) FederatedSignIn(ctx context.Context, provider, idToken string) (*AuthResult, error) {
	if provider != ProviderGoogle {
		return nil, invalid(fmt.Sprintf("unsupported provider %q", provider))
	}
	if s.verifier == nil {
		return nil, apperr.Unavailable(errors.New("federated sign-in is not configured"))
	}

	payload, err := s.verifier.Validate(ctx, idToken, s.audience)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidCredentials, err)
	}
	subject := payload.Subject
	email, _ := payload.Claims["email"].(string)
	email = normalizeEmail(email)
	if subject == "" || email == "" {
		return nil, apperr.ErrInvalidCredentials
	}

	var (
		acc     models.Account
		created bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("google_subject = ?", subject).First(&acc).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return backendErr(err, nil)
		}

		var existing models.Account
		err = tx.Where("email = ?", email).First(&existing).Error
		if err == nil {
			return apperr.ErrAccountExistsDifferentCredential
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return backendErr(err, nil)
		}

		acc = models.Account{Email: email, Provider: models.ProviderGoogle, GoogleSubject: &subject}
		if err := tx.Create(&acc).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrAccountExistsDifferentCredential
			}
			return backendErr(err, nil)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.log.Info("account created", "user_id", acc.ID, "provider", acc.Provider)
	}
	return s.issue(acc.ID, created)
}

func (s *IdentityService) issue(userID string, isNew bool) (*AuthResult, error) {
	token, claims, err := s.tokens.GenerateToken(userID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResult{
		Token:     token,
		UserID:    userID,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
		IsNewUser: isNew,
	}, nil
}
