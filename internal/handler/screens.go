package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitfusion/admin-console/internal/filter"
	"github.com/fitfusion/admin-console/internal/identity"
	"github.com/fitfusion/admin-console/internal/middleware"
	"github.com/fitfusion/admin-console/internal/mirror"
	"github.com/fitfusion/admin-console/internal/model"
	"github.com/fitfusion/admin-console/internal/service"
	"github.com/fitfusion/admin-console/internal/store"
)

// ScreenHandler exposes the console screens of the caller's session.
type ScreenHandler struct {
	Sessions *service.Sessions
	Now      func() time.Time
}

func NewScreenHandler(s *service.Sessions, now func() time.Time) *ScreenHandler {
	if now == nil {
		now = time.Now
	}
	return &ScreenHandler{Sessions: s, Now: now}
}

const workspaceKey = "workspace"

// workspace resolves the caller's workspace once per request.
func (h *ScreenHandler) workspace(c echo.Context) *service.Workspace {
	if w, ok := c.Get(workspaceKey).(*service.Workspace); ok {
		return w
	}
	w := h.Sessions.Get(middleware.SessionToken(c))
	c.Set(workspaceKey, w)
	return w
}

// Scope closes a request-scoped workspace, and the mirrors it opened, once
// the handler returns.  Every screen route must run under it.
func (h *ScreenHandler) Scope(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if w, ok := c.Get(workspaceKey).(*service.Workspace); ok && w.Transient() {
			if cerr := w.Close(); cerr != nil {
				c.Logger().Warnf("close request workspace: %v", cerr)
			}
		}
		return err
	}
}

func (h *ScreenHandler) screen(c echo.Context, name string) (*service.Screen, error) {
	return h.workspace(c).Screen(name)
}

// statusFor maps a console error onto an HTTP status.
func statusFor(err error) int {
	var verr *model.ValidationError
	var perr *service.PartialWriteError
	switch {
	case errors.As(err, &perr):
		return http.StatusBadGateway
	case errors.As(err, &verr),
		errors.Is(err, service.ErrUnknownField),
		errors.Is(err, service.ErrInvalidValue),
		errors.Is(err, service.ErrSecretRequired),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrWeakSecret):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrUnknownScreen),
		errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrNoConfirmation),
		errors.Is(err, service.ErrUnknownToggle),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrBusy),
		errors.Is(err, service.ErrNoDraft),
		errors.Is(err, identity.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func fail(c echo.Context, err error) error {
	code := statusFor(err)
	if code >= 500 {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(code, echo.Map{"error": service.Reason(err)})
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}

// rows turns documents into display rows: the id inlined, secret hashes
// removed, sorted by the kind's display field.
func rows(k *service.Kind, docs []store.Document) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		r := make(map[string]any, len(d.Fields)+1)
		for f, v := range d.Fields {
			if f == "secretHash" {
				continue
			}
			r[f] = v
		}
		r["id"] = d.ID
		out = append(out, r)
	}
	if k.SortField != "" {
		key := func(r map[string]any) string {
			s, _ := r[k.SortField].(string)
			return strings.ToLower(s)
		}
		sort.SliceStable(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	}
	return out
}

func shape(c echo.Context, list []map[string]any) ([]map[string]any, error) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return nil, err
	}
	trunc, err := queryInt(c, "truncate")
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	if trunc > 0 {
		for _, r := range list {
			if s, ok := r["description"].(string); ok {
				r["description"] = model.Truncate(s, trunc)
			}
		}
	}
	return list, nil
}

// List returns the screen's current snapshot.
func (h *ScreenHandler) List(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := h.screen(c, name)
		if err != nil {
			return fail(c, err)
		}
		list, err := shape(c, rows(sc.Kind, sc.Mirror.Snapshot()))
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, echo.Map{"items": list, "total": len(sc.Mirror.Snapshot())})
	}
}

// Stream pushes every mirror emission as a server-sent event until the
// client goes away.
func (h *ScreenHandler) Stream(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := h.screen(c, name)
		if err != nil {
			return fail(c, err)
		}
		ch, stop := sc.Mirror.Watch()
		defer stop()

		res := c.Response()
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set(echo.HeaderCacheControl, "no-cache")
		res.Header().Set(echo.HeaderConnection, "keep-alive")
		res.WriteHeader(http.StatusOK)

		send := func(docs []store.Document) error {
			b, err := json.Marshal(rows(sc.Kind, docs))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(res, "event: snapshot\ndata: %s\n\n", b); err != nil {
				return err
			}
			res.Flush()
			return nil
		}
		if err := send(sc.Mirror.Snapshot()); err != nil {
			return nil
		}
		ctx := c.Request().Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case docs, ok := <-ch:
				if !ok {
					return nil
				}
				if err := send(docs); err != nil {
					return nil
				}
			}
		}
	}
}

// Draft shows the editor state.
func (h *ScreenHandler) Draft(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := h.screen(c, name)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, sc.Editor.View())
	}
}

func (h *ScreenHandler) Open(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := h.screen(c, name)
		if err != nil {
			return fail(c, err)
		}
		if err := sc.BeginCreate(); err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusCreated, sc.Editor.View())
	}
}

func (h *ScreenHandler) Edit(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := h.screen(c, name)
		if err != nil {
			return fail(c, err)
		}
		if err := sc.BeginEdit(c.Param("id")); err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, sc.Editor.View())
	}
}

// Stage applies the field deltas in the body, e.g. {"name": "X"}.  Fields
// are applied in name order and the first rejected one stops the batch.
func (h *ScreenHandler) Stage(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := h.screen(c, name)
		if err != nil {
			return fail(c, err)
		}
		var delta map[string]any
		if err := json.NewDecoder(c.Request().Body).Decode(&delta); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		}
		fields := make([]string, 0, len(delta))
		for f := range delta {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			if err := sc.Editor.Stage(f, delta[f]); err != nil {
				return fail(c, err)
			}
		}
		return c.JSON(http.StatusOK, sc.Editor.View())
	}
}

func (h *ScreenHandler) Cancel(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := h.screen(c, name)
		if err != nil {
			return fail(c, err)
		}
		sc.Editor.Cancel()
		return c.NoContent(http.StatusNoContent)
	}
}

// Commit saves the open draft.  The outcome is also posted to the session's
// notice queue.
func (h *ScreenHandler) Commit(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := h.screen(c, name)
		if err != nil {
			return fail(c, err)
		}
		id, err := sc.Commit(c.Request().Context())
		if err != nil {
			return fail(c, err)
		}
		msg, _ := h.workspace(c).Notices.Current()
		return c.JSON(http.StatusOK, echo.Map{"id": id, "notice": msg.Text})
	}
}

func (h *ScreenHandler) RequestDelete(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := h.screen(c, name)
		if err != nil {
			return fail(c, err)
		}
		p, err := sc.RequestDelete(c.Param("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusAccepted, p)
	}
}

func (h *ScreenHandler) RequestToggle(name, field string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := h.screen(c, name)
		if err != nil {
			return fail(c, err)
		}
		p, err := sc.RequestToggle(c.Param("id"), field)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusAccepted, p)
	}
}

func (h *ScreenHandler) Confirmations(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := h.screen(c, name)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"items": sc.Confirms.List()})
	}
}

type resolveReq struct {
	Accept bool `json:"accept"`
}

// Resolve answers a pending confirmation; declining makes no store call.
func (h *ScreenHandler) Resolve(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := h.screen(c, name)
		if err != nil {
			return fail(c, err)
		}
		var req resolveReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		}
		if err := sc.Resolve(c.Request().Context(), c.Param("cid"), req.Accept); err != nil {
			return fail(c, err)
		}
		msg, _ := h.workspace(c).Notices.Current()
		return c.JSON(http.StatusOK, echo.Map{"accepted": req.Accept, "notice": msg.Text})
	}
}

type expiringRow struct {
	model.Academy
	DaysLeft int `json:"daysLeft"`
}

// Expiring lists the academies whose plan ends within the next 30 days.
func (h *ScreenHandler) Expiring(c echo.Context) error {
	sc, err := h.screen(c, "gyms")
	if err != nil {
		return fail(c, err)
	}
	today := h.Now()
	list := filter.ExpiringPlans(mirror.Entities[model.Academy](sc.Mirror.Snapshot()), today)
	out := make([]expiringRow, 0, len(list))
	for _, a := range list {
		d, _ := filter.DaysUntil(a, today)
		a.SecretHash = ""
		out = append(out, expiringRow{Academy: a, DaysLeft: d})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Notifications lists the notifications addressed to a known academy, or
// to the one named by ?gym=<id>.
func (h *ScreenHandler) Notifications(c echo.Context) error {
	w := h.workspace(c)
	ns, err := w.Screen("notifications")
	if err != nil {
		return fail(c, err)
	}
	gs, err := w.Screen("gyms")
	if err != nil {
		return fail(c, err)
	}
	notifs := mirror.Entities[model.Notification](ns.Mirror.Snapshot())
	gyms := mirror.Entities[model.Academy](gs.Mirror.Snapshot())

	var list []model.Notification
	if id := c.QueryParam("gym"); id != "" {
		var found bool
		for _, g := range gyms {
			if g.ID == id {
				list, found = filter.NotificationsForAcademy(notifs, g), true
				break
			}
		}
		if !found {
			return fail(c, service.ErrNotFound)
		}
	} else {
		list = filter.NotificationsForAcademies(notifs, gyms)
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	if list == nil {
		list = []model.Notification{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}
