package router // package router wires the console's HTTP routes

import (
	"github.com/labstack/echo/v4"

	"github.com/fitfusion/admin-console/internal/handler"
	"github.com/fitfusion/admin-console/internal/service"
	"github.com/fitfusion/admin-console/internal/store"
)

// RegisterRoutes registers the routes that never need a session.
func RegisterRoutes(e *echo.Echo, s store.Store) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(s))
}

// RegisterAuth registers login, logout and the home screen.  The login POST
// is wrapped by limit (the token bucket), which may be nil.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limit echo.MiddlewareFunc) {
	var mw []echo.MiddlewareFunc
	if limit != nil {
		mw = append(mw, limit)
	}
	e.GET(a.Cfg.LoginPath, a.LoginPage)
	e.POST(a.Cfg.LoginPath, a.Login, mw...)
	e.POST("/logout", a.Logout)
	e.GET("/home", a.Home)
}

// RegisterScreens registers one route group per console screen plus the
// notice endpoints.  The credential gate is expected to run before these.
func RegisterScreens(e *echo.Echo, h *handler.ScreenHandler) {
	for name, k := range service.Kinds {
		g := e.Group("/"+name, h.Scope)

		if name == "notifications" {
			g.GET("", h.Notifications)
			g.GET("/all", h.List(name))
		} else {
			g.GET("", h.List(name))
		}
		g.GET("/stream", h.Stream(name))

		g.GET("/draft", h.Draft(name))
		g.POST("/draft", h.Open(name))
		g.PATCH("/draft", h.Stage(name))
		g.DELETE("/draft", h.Cancel(name))
		g.POST("/draft/commit", h.Commit(name))
		g.POST("/:id/edit", h.Edit(name))
		g.DELETE("/:id", h.RequestDelete(name))

		for field := range k.Toggles {
			g.POST("/:id/"+toggleRoute(field), h.RequestToggle(name, field))
		}

		g.GET("/confirmations", h.Confirmations(name))
		g.POST("/confirmations/:cid", h.Resolve(name))
	}
	e.GET("/gyms/expiring", h.Expiring, h.Scope)

	e.GET("/notice", h.CurrentNotice, h.Scope)
	e.DELETE("/notice", h.CloseNotice, h.Scope)
}

// toggleRoute is the URL verb of a toggle: /gyms/:id/block flips "blocked".
func toggleRoute(field string) string {
	if field == "blocked" {
		return "block"
	}
	return field
}
