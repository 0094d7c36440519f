package customer

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	custrepo "storefront/internal/repository/customer"
	tokenrepo "storefront/internal/repository/token"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the provided token could not be validated.
	ErrInvalidToken = errors.New("invalid token")
)

// Service handles customer signup/login flows.
type Service struct {
	repo        custrepo.Repository
	tokens      tokenrepo.Repository
	now         func() time.Time
	accessTTL   time.Duration
	refreshTTL  time.Duration
	passwordMin int
}

// New creates a Service with sane defaults.
func New(repo custrepo.Repository, tokens tokenrepo.Repository) *Service {
	return &Service{
		repo:        repo,
		tokens:      tokens,
		now:         time.Now,
		accessTTL:   48 * time.Hour,
		refreshTTL:  30 * 24 * time.Hour,
		passwordMin: 8,
	}
}

// SignupInput captures fields expected by the signup endpoint.
type SignupInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Session is the result of a successful signup or login.
type Session struct {
	Customer     *domain.Customer
	AccessToken  string
	RefreshToken string
}

// Signup registers a new customer and signs them in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" {
		return nil, domain.Validationf("email required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.Validationf("invalid email")
	}
	password := strings.TrimSpace(in.Password)
	if err := validatePassword(password, s.passwordMin); err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.Create(ctx, domain.Customer{
		Email:        email,
		PasswordHash: string(hashed),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
	})
	if err != nil {
		return nil, err
	}
	return s.issueSession(ctx, c)
}

// Login validates credentials and returns issued tokens plus the customer.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	password = strings.TrimSpace(password)
	c, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueSession(ctx, c)
}

// LookupByToken returns the customer bound to a valid access token.
func (s *Service) LookupByToken(ctx context.Context, token string) (*domain.Customer, error) {
	customerID, err := s.accessOwner(ctx, token)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return c, nil
}

// Logout revokes an access token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Delete(ctx, token); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// PurgeExpiredTokens deletes every token past its expiry.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now())
}

// AccessTTLSeconds exposes the access token lifetime in seconds.
func (s *Service) AccessTTLSeconds() int {
	return int(s.accessTTL.Seconds())
}

func validatePassword(p string, min int) error {
	trimmed := strings.TrimSpace(p)
	if len(trimmed) < min {
		return domain.Validationf("password must be at least %d characters", min)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return domain.Validationf("password must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number")
	}
	return nil
}

