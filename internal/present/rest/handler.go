package rest

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/internal/domain"
	"github.com/totegamma/memorial/internal/present/rest/middleware"
	"github.com/totegamma/memorial/internal/present/rest/presenter"
	"github.com/totegamma/memorial/internal/service"
	"github.com/totegamma/memorial/internal/usecase"
)

type Handler struct {
	config      domain.Config
	memories    *usecase.RecordUsecase[memorial.Memory]
	condolences *usecase.RecordUsecase[memorial.Condolence]
	auth        *usecase.AuthUsecase
	media       *usecase.MediaUsecase
	signal      *service.SignalService
}

func NewHandler(
	config domain.Config,
	memories *usecase.RecordUsecase[memorial.Memory],
	condolences *usecase.RecordUsecase[memorial.Condolence],
	auth *usecase.AuthUsecase,
	media *usecase.MediaUsecase,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		config:      config,
		memories:    memories,
		condolences: condolences,
		auth:        auth,
		media:       media,
		signal:      signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	registerCollection(api, h.memories)
	registerCollection(api, h.condolences)

	api.POST("/media", h.handleUpload, middleware.RequireAuth)
	api.GET("/media/url", h.handleSignURL)
	e.GET("/media/*", h.handleMedia)

	api.POST("/auth/signup", h.handleSignUp)
	api.POST("/auth/signin", h.handleSignIn)
	api.POST("/auth/confirm", h.handleConfirm)
	api.POST("/auth/reset", h.handleReset)
	api.POST("/auth/reset/confirm", h.handleConfirmReset)
	api.POST("/auth/signout", h.handleSignOut)
	api.GET("/auth/me", h.handleMe, middleware.RequireAuth)

	e.GET("/realtime", h.handleRealtime)
}

func requester(c echo.Context) domain.Requester {
	r, _ := middleware.Requester(c.Request().Context())
	return r
}

func registerCollection[T usecase.Record[T]](g *echo.Group, uc *usecase.RecordUsecase[T]) {
	base := "/" + uc.Collection()

	g.GET(base, func(c echo.Context) error {
		items, err := uc.List(c.Request().Context())
		if err != nil {
			return presenter.Error(c, err)
		}
		if items == nil {
			items = []T{}
		}
		return presenter.OK(c, items)
	})

	g.GET(base+"/:id", func(c echo.Context) error {
		item, err := uc.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return presenter.Error(c, err)
		}
		return presenter.OK(c, item)
	})

	g.POST(base, func(c echo.Context) error {
		var draft T
		if err := c.Bind(&draft); err != nil {
			return presenter.BadRequestMessage(c, "invalid request body")
		}

		key := c.Request().Header.Get(domain.IdempotencyKeyHeader)
		created, err := uc.Create(c.Request().Context(), requester(c), draft, key)
		if err != nil {
			return presenter.Error(c, err)
		}
		return presenter.Created(c, created)
	}, middleware.RequireAuth)

	g.DELETE(base+"/:id", func(c echo.Context) error {
		err := uc.Delete(c.Request().Context(), requester(c), c.Param("id"))
		if err != nil {
			return presenter.Error(c, err)
		}
		return presenter.OK(c, echo.Map{"id": c.Param("id")})
	}, middleware.RequireAuth)
}

func (h *Handler) handleUpload(c echo.Context) error {
	ctx := c.Request().Context()

	file, err := c.FormFile("file")
	if err != nil {
		return presenter.BadRequestMessage(c, "file is required")
	}
	if file.Size > h.config.MaxUploadBytes {
		return presenter.BadRequestMessage(c, fmt.Sprintf("media exceeds %d bytes", h.config.MaxUploadBytes))
	}

	src, err := file.Open()
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	defer src.Close()

	obj, err := h.media.Upload(ctx, requester(c), c.FormValue("key"), file.Header.Get("Content-Type"), src)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, obj)
}

func (h *Handler) handleSignURL(c echo.Context) error {
	ctx := c.Request().Context()

	key := c.QueryParam("key")
	if key == "" {
		return presenter.BadRequestMessage(c, "key parameter is required")
	}

	var ttl time.Duration
	if expStr := c.QueryParam("exp"); expStr != "" {
		exp, err := strconv.ParseInt(expStr, 10, 64)
		if err != nil || exp < 0 {
			return presenter.BadRequestMessage(c, "invalid exp parameter")
		}
		ttl = time.Duration(exp) * time.Second
	}

	signed, err := h.media.SignURL(ctx, key, ttl)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, signed)
}

func (h *Handler) handleMedia(c echo.Context) error {
	ctx := c.Request().Context()

	key := c.Param("*")
	rc, err := h.media.Open(ctx, key, c.QueryParam("token"))
	if err != nil {
		return presenter.Error(c, err)
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=300")
	return c.Stream(http.StatusOK, contentType, rc)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Code     string `json:"code"`
}

func (h *Handler) bindCredentials(c echo.Context) (credentialsRequest, error) {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return req, err
	}
	if req.Email == "" {
		return req, fmt.Errorf("email is required")
	}
	return req, nil
}

func (h *Handler) handleSignUp(c echo.Context) error {
	req, err := h.bindCredentials(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	result, err := h.auth.SignUp(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, result)
}

func (h *Handler) handleSignIn(c echo.Context) error {
	req, err := h.bindCredentials(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	result, err := h.auth.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleConfirm(c echo.Context) error {
	req, err := h.bindCredentials(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	if err := h.auth.ConfirmSignUp(c.Request().Context(), req.Email, req.Code); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleReset(c echo.Context) error {
	req, err := h.bindCredentials(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	if err := h.auth.ResetPassword(c.Request().Context(), req.Email); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleConfirmReset(c echo.Context) error {
	req, err := h.bindCredentials(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	if err := h.auth.ConfirmResetPassword(c.Request().Context(), req.Email, req.Code, req.Password); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

// tokens are stateless
func (h *Handler) handleSignOut(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleMe(c echo.Context) error {
	user, err := h.auth.Me(c.Request().Context(), requester(c).ID)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, user)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type        string   `json:"type"`
	Collections []string `json:"collections"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan memorial.Event)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.DebugContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Collections:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Collections),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
