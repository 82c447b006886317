package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CurrentNotice returns the session's visible notice, or 204 when none is.
func (h *ScreenHandler) CurrentNotice(c echo.Context) error {
	msg, ok := h.workspace(c).Notices.Current()
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, msg)
}

func (h *ScreenHandler) CloseNotice(c echo.Context) error {
	h.workspace(c).Notices.Close()
	return c.NoContent(http.StatusNoContent)
}
