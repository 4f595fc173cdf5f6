package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/totegamma/memorial/internal/domain"
	"github.com/totegamma/memorial/internal/present/rest/presenter"
	"github.com/totegamma/memorial/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// IdentifyIdentity attaches the requester named by a valid bearer token to
// the request context. Requests without one pass through anonymously.
func (s *AuthMiddleware) IdentifyIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Service.IdentifyIdentity", trace.WithSpanKind(trace.SpanKindInternal))
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")

		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto skipCheckAuthorization
			}

			authType, token := split[0], split[1]
			if authType != "Bearer" {
				span.RecordError(fmt.Errorf("only Bearer is acceptable"))
				goto skipCheckAuthorization
			}

			result, err := s.auth.AuthJwt(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyIdentity: s.auth.AuthJwt failed"))
				goto skipCheckAuthorization
			}

			ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, result.Requester.ID)
			ctx = context.WithValue(ctx, domain.RequesterCtxKey, result.Requester)
			span.SetAttributes(attribute.String("RequesterId", result.Requester.ID))
		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequireAuth rejects requests IdentifyIdentity left anonymous.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := Requester(c.Request().Context()); !ok {
			return presenter.Unauthorized(c, "sign in required")
		}
		return next(c)
	}
}

func Requester(ctx context.Context) (domain.Requester, bool) {
	requester, ok := ctx.Value(domain.RequesterCtxKey).(domain.Requester)
	return requester, ok && requester.ID != ""
}
