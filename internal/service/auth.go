package service

import (
	"context"
	"fmt"
	"time"

	jwtgo "github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/internal/domain"
	"github.com/totegamma/memorial/jwt"
)

var tracer = otel.Tracer("auth")

const SessionTTL = 7 * 24 * time.Hour

type AuthService struct {
	config domain.Config
}

func NewAuthService(config domain.Config) *AuthService {
	return &AuthService{
		config: config,
	}
}

type AuthResult struct {
	Requester domain.Requester
}

// Issue mints a session token for user.
func (s *AuthService) Issue(ctx context.Context, user memorial.User) (string, error) {
	_, span := tracer.Start(ctx, "Auth.Service.Issue")
	defer span.End()

	now := time.Now()
	token, err := jwt.Create(jwt.Claims{
		Email: user.Email,
		Name:  user.Name,
		Admin: user.IsAdmin,
		StandardClaims: jwtgo.StandardClaims{
			Issuer:    user.ID,
			Subject:   jwt.SubjectSession,
			Audience:  s.config.FQDN,
			IssuedAt:  now.Unix(),
			ExpiresAt: jwt.Expiry(now, SessionTTL),
		},
	}, s.config.JWTSecret)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt creation failed"))
		return "", err
	}
	return token, nil
}

func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	claims, err := jwt.Validate(token, s.config.JWTSecret)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	if claims.Audience != s.config.FQDN {
		err := fmt.Errorf("jwt audience mismatch: expected %s, got %s", s.config.FQDN, claims.Audience)
		span.RecordError(err)
		return nil, err
	}

	if claims.Subject != jwt.SubjectSession {
		err := fmt.Errorf("invalid subject")
		span.RecordError(err)
		return nil, err
	}

	if claims.Issuer == "" {
		err := fmt.Errorf("invalid issuer")
		span.RecordError(err)
		return nil, err
	}

	return &AuthResult{
		Requester: domain.Requester{
			ID:      claims.Issuer,
			Email:   claims.Email,
			Name:    claims.Name,
			IsAdmin: claims.Admin,
		},
	}, nil
}

// SignMedia mints a token granting read access to key for ttl.
func (s *AuthService) SignMedia(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	_, span := tracer.Start(ctx, "Auth.Service.SignMedia")
	defer span.End()

	now := time.Now()
	expiresAt := time.Unix(jwt.Expiry(now, ttl), 0).UTC()
	token, err := jwt.Create(jwt.Claims{
		Key: key,
		StandardClaims: jwtgo.StandardClaims{
			Subject:   jwt.SubjectMedia,
			Audience:  s.config.FQDN,
			IssuedAt:  now.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	}, s.config.JWTSecret)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt creation failed"))
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (s *AuthService) VerifyMedia(ctx context.Context, token, key string) error {
	_, span := tracer.Start(ctx, "Auth.Service.VerifyMedia")
	defer span.End()

	if token == "" {
		return fmt.Errorf("missing media token")
	}

	claims, err := jwt.Validate(token, s.config.JWTSecret)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return err
	}
	if claims.Subject != jwt.SubjectMedia || claims.Audience != s.config.FQDN {
		err := fmt.Errorf("not a media token")
		span.RecordError(err)
		return err
	}
	if claims.Key != key {
		err := fmt.Errorf("token does not grant %s", key)
		span.RecordError(err)
		return err
	}
	return nil
}
