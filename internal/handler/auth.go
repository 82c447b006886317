package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitfusion/admin-console/internal/config"
	"github.com/fitfusion/admin-console/internal/identity"
	"github.com/fitfusion/admin-console/internal/middleware"
	"github.com/fitfusion/admin-console/internal/service"
	"github.com/fitfusion/admin-console/internal/utils"
)

// AuthHandler serves the login page, the login/logout actions and the home
// screen.
type AuthHandler struct {
	Cfg      config.Config
	Auth     *service.Auth
	Sessions *service.Sessions
}

func NewAuthHandler(cfg config.Config, a *service.Auth, s *service.Sessions) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Auth: a, Sessions: s}
}

type loginReq struct {
	Email    string `json:"email" form:"email"`
	Secret   string `json:"secret" form:"secret"`
	Password string `json:"password" form:"password"` // older clients
}

type adminPart struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResp struct {
	Admin    adminPart `json:"admin"`
	Redirect string    `json:"redirect"`
}

func (h *AuthHandler) setSessionCookie(c echo.Context, token string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     h.Cfg.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// LoginPage describes the login form.  Visiting it with a session skips
// straight to /home.
func (h *AuthHandler) LoginPage(c echo.Context) error {
	if ck, err := c.Cookie(h.Cfg.SessionCookie); err == nil && ck.Value != "" {
		return c.Redirect(http.StatusFound, "/home")
	}
	return c.JSON(http.StatusOK, echo.Map{"fields": []string{"email", "secret"}, "action": h.Cfg.LoginPath})
}

// Login checks the email against the admins collection, verifies the
// credential and sets the session cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Secret == "" {
		req.Secret = req.Password
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	token, adm, err := h.Auth.Login(ctx, req.Email, req.Secret)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidLoginForm):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotAdmin):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, identity.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Erro no login: " + err.Error()})
	default:
		c.Logger().Errorf("login: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Erro no login: " + service.Reason(err)})
	}

	h.setSessionCookie(c, token, h.Cfg.SessionTTLMin*60)
	return c.JSON(http.StatusOK, loginResp{
		Admin:    adminPart{Name: adm.Name, Email: adm.Email},
		Redirect: "/home",
	})
}

// Logout clears the cookie and closes the session's screens.
func (h *AuthHandler) Logout(c echo.Context) error {
	token := ""
	if ck, err := c.Cookie(h.Cfg.SessionCookie); err == nil {
		token = ck.Value
	}
	if err := h.Auth.Logout(token); err != nil {
		c.Logger().Warnf("logout: %v", err)
	}
	h.setSessionCookie(c, "", -1)
	return c.Redirect(http.StatusSeeOther, h.Cfg.LoginPath)
}

// Home greets the signed-in admin.
func (h *AuthHandler) Home(c echo.Context) error {
	token := middleware.SessionToken(c)
	w := h.Sessions.Get(token)
	adm := w.Admin()
	if w.Transient() {
		_ = w.Close()
	}
	out := adminPart{Name: adm.Name, Email: adm.Email}
	if out.Email == "" {
		// session opened by an earlier process: recover the email from the token
		if _, email, err := utils.SessionClaims(h.Cfg.JWTSecret, token); err == nil {
			out.Email = email
		}
	}
	if out.Name == "" {
		out.Name = "Usuário"
	}
	if out.Email == "" {
		out.Email = "Email não encontrado"
	}
	return c.JSON(http.StatusOK, echo.Map{"admin": out, "greeting": "Olá, " + out.Name + "!"})
}
