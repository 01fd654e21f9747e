package doctor

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/labdesk/labdesk/internal/platform/auth"
)

type Handler struct {
	dir *Directory
}

func NewHandler(dir *Directory) *Handler {
	return &Handler{dir: dir}
}

// RegisterRoutes mounts the doctor routes. Extra middleware (the list ETag)
// applies to the read group only.
func (h *Handler) RegisterRoutes(api *echo.Group, readMW ...echo.MiddlewareFunc) {
	readMW = append([]echo.MiddlewareFunc{auth.RequireRole(auth.RoleBilling, auth.RoleFrontDesk)}, readMW...)
	read := api.Group("/doctors", readMW...)
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	write := api.Group("/doctors", auth.RequireRole(auth.RoleAdmin))
	write.POST("", h.Create)
}

func (h *Handler) List(c echo.Context) error {
	docs, err := h.dir.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load doctors")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"doctors": docs})
}

func (h *Handler) Get(c echo.Context) error {
	d, err := h.dir.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Create(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.dir.Create(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}
