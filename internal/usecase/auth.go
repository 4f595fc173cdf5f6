package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/internal/domain"
)

const (
	codeTTL           = 15 * time.Minute
	minPasswordLength = 8
)

type AuthUsecase struct {
	users  UserRepository
	tokens TokenIssuer
	config domain.Config
	codes  *cache.Cache
}

func NewAuthUsecase(users UserRepository, tokens TokenIssuer, config domain.Config) *AuthUsecase {
	return &AuthUsecase{
		users:  users,
		tokens: tokens,
		config: config,
		codes:  cache.New(codeTTL, 5*time.Minute),
	}
}

func validateCredentials(email, password string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.ValidationError{Err: fmt.Errorf("invalid email address")}
	}
	if len(password) < minPasswordLength {
		return domain.ValidationError{Err: fmt.Errorf("password must be at least %d characters", minPasswordLength)}
	}
	return nil
}

// newCode returns a six digit confirmation code.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (uc *AuthUsecase) issueCode(ctx context.Context, purpose, email string) error {
	code, err := newCode()
	if err != nil {
		return err
	}
	uc.codes.Set(purpose+":"+strings.ToLower(email), code, cache.DefaultExpiration)

	// no mail transport, operators relay the code
	slog.InfoContext(
		ctx, "confirmation code issued",
		slog.String("purpose", purpose),
		slog.String("email", email),
		slog.String("code", code),
		slog.String("module", "auth"),
	)
	return nil
}

func (uc *AuthUsecase) consumeCode(purpose, email, code string) error {
	key := purpose + ":" + strings.ToLower(email)
	expected, ok := uc.codes.Get(key)
	if !ok || expected.(string) != code {
		return domain.ErrCodeMismatch
	}
	uc.codes.Delete(key)
	return nil
}

func (uc *AuthUsecase) SignUp(ctx context.Context, email, password, name string) (memorial.SignUpResult, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return memorial.SignUpResult{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = strings.Split(email, "@")[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return memorial.SignUpResult{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		IsAdmin:      slices.ContainsFunc(uc.config.AdminEmails, func(s string) bool { return strings.EqualFold(s, email) }),
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return memorial.SignUpResult{}, err
	}

	if err := uc.issueCode(ctx, "confirm", email); err != nil {
		return memorial.SignUpResult{}, err
	}

	return memorial.SignUpResult{UserID: user.ID, Confirmed: false}, nil
}

func (uc *AuthUsecase) ConfirmSignUp(ctx context.Context, email, code string) error {
	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}
	if err := uc.consumeCode("confirm", email, code); err != nil {
		return err
	}
	return uc.users.MarkVerified(ctx, user.ID)
}

// SignIn checks the credentials and issues a session token. Unknown emails and
// wrong passwords are reported identically.
func (uc *AuthUsecase) SignIn(ctx context.Context, email, password string) (memorial.SignInResult, error) {
	user, err := uc.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, domain.ErrNotFound) {
		return memorial.SignInResult{}, domain.UnauthorizedError{Reason: "invalid email or password"}
	}
	if err != nil {
		return memorial.SignInResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return memorial.SignInResult{}, domain.UnauthorizedError{Reason: "invalid email or password"}
	}
	if !user.EmailVerified {
		return memorial.SignInResult{}, domain.ErrUserNotConfirmed
	}

	token, err := uc.tokens.Issue(ctx, user.Public())
	if err != nil {
		return memorial.SignInResult{}, err
	}
	return memorial.SignInResult{Token: token, User: user.Public()}, nil
}

// ResetPassword starts a reset. Unknown emails succeed silently.
func (uc *AuthUsecase) ResetPassword(ctx context.Context, email string) error {
	_, err := uc.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return uc.issueCode(ctx, "reset", email)
}

func (uc *AuthUsecase) ConfirmResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := validateCredentials(email, newPassword); err != nil {
		return err
	}
	user, err := uc.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrCodeMismatch
	}
	if err != nil {
		return err
	}
	if err := uc.consumeCode("reset", email, code); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := uc.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	// the code reached the mailbox, so the address is proven
	if !user.EmailVerified {
		return uc.users.MarkVerified(ctx, user.ID)
	}
	return nil
}

func (uc *AuthUsecase) Me(ctx context.Context, id string) (memorial.User, error) {
	user, err := uc.users.GetByID(ctx, id)
	if err != nil {
		return memorial.User{}, err
	}
	return user.Public(), nil
}
