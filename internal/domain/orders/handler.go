package orders

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/labdesk/labdesk/internal/platform/auth"
	"github.com/labdesk/labdesk/internal/platform/reporting"
	"github.com/labdesk/labdesk/pkg/pagination"
)

type Handler struct {
	svc     *Service
	labName string
}

func NewHandler(svc *Service, labName string) *Handler {
	return &Handler{svc: svc, labName: labName}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Desk endpoints – billing, front desk
	desk := api.Group("", auth.RequireRole(auth.RoleBilling, auth.RoleFrontDesk))
	desk.GET("/unbilled", h.ListUnbilled)
	desk.GET("/unbilled/:id", h.GetUnbilled)
	desk.POST("/unbilled", h.CreateUnbilled)
	desk.GET("/orders", h.ListBilled)
	desk.GET("/orders/:id", h.GetBilled)
	desk.GET("/orders/:id/report", h.Report)

	// Billing endpoints
	billing := api.Group("", auth.RequireRole(auth.RoleBilling))
	billing.PUT("/unbilled/:id", h.EditUnbilled)
	billing.DELETE("/unbilled/:id", h.DeleteUnbilled)
	billing.POST("/unbilled/bulk-delete", h.BulkDelete)
	billing.POST("/orders", h.PlaceOrder)

	// Journal – admin only
	journal := api.Group("/migrations", auth.RequireRole(auth.RoleAdmin))
	journal.GET("", h.ListMigrations)
	journal.POST("/:id/retry", h.RetryMigration)
}

// respondError maps service errors onto HTTP responses. Failed desk actions
// carry their notice in the body.
func respondError(c echo.Context, err error) error {
	var ae *ActionError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, ErrMigrationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "migration not found")
	case errors.Is(err, ErrMigrationConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &ae):
		body := map[string]interface{}{"message": ae.Notice, "error": ae.Error()}
		if ae.MigrationID != "" {
			body["migrationId"] = ae.MigrationID
		}
		return c.JSON(http.StatusInternalServerError, body)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func filterFromQuery(c echo.Context) (Filter, error) {
	return ParseFilter(c.QueryParam("search"), c.QueryParam("from"), c.QueryParam("to"))
}

// -- Unbilled Handlers --

func (h *Handler) ListUnbilled(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUnbilled(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load unbilled orders")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).
		WithLinks(c.Request().URL.Path, c.QueryParams()))
}

func (h *Handler) GetUnbilled(c echo.Context) error {
	v, err := h.svc.GetUnbilled(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) CreateUnbilled(c echo.Context) error {
	var o Order
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateUnbilled(c.Request().Context(), &o); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) EditUnbilled(c echo.Context) error {
	var o Order
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.EditUnbilled(c.Request().Context(), c.Param("id"), &o)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteUnbilled(c echo.Context) error {
	id := c.Param("id")
	if err := h.svc.DeleteUnbilled(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id, "message": MsgOrderDeleted})
}

func (h *Handler) BulkDelete(c echo.Context) error {
	var req BulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	ids, err := h.svc.Resolve(ctx, req)
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.svc.BulkDelete(ctx, ids)
	if res == nil {
		return respondError(c, err)
	}
	if !res.OK() {
		return c.JSON(http.StatusMultiStatus, res)
	}
	return c.JSON(http.StatusOK, res)
}

// -- Billed Handlers --

func (h *Handler) ListBilled(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBilled(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).
		WithLinks(c.Request().URL.Path, c.QueryParams()))
}

func (h *Handler) GetBilled(c echo.Context) error {
	v, err := h.svc.GetBilled(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) PlaceOrder(c echo.Context) error {
	var o Order
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.PlaceOrder(c.Request().Context(), &o); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"order":    o,
		"message":  MsgOrderCreated,
		"redirect": ReportPath(o.ID),
	})
}

// Report renders the printable report of a billed order.
func (h *Handler) Report(c echo.Context) error {
	v, err := h.svc.GetBilled(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	html, err := reporting.RenderOrder(newOrderReport(v, h.labName))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.HTMLBlob(http.StatusOK, html)
}

func newOrderReport(v *View, labName string) reporting.OrderReport {
	r := reporting.OrderReport{
		LabName:      labName,
		SerialNo:     v.SerialNo,
		PatientName:  v.Name,
		DoctorName:   v.DoctorName,
		Category:     v.Category,
		Subcategory:  v.Subcategory,
		PaymentMode:  v.PaymentMode,
		TotalAmount:  v.TotalAmount.StringFixed(2),
		Discount:     v.Discount.StringFixed(2),
		FinalPayment: v.FinalPayment.StringFixed(2),
		CreatedAt:    v.CreatedAt,
	}
	if v.Age != nil {
		r.Age = strconv.Itoa(*v.Age)
	}
	if v.Gender != nil {
		r.Gender = *v.Gender
	}
	if v.Phone != nil {
		r.Phone = *v.Phone
	}
	if v.Remarks != nil {
		r.Remarks = *v.Remarks
	}
	return r
}

// -- Journal Handlers --

func (h *Handler) ListMigrations(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMigrations(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) RetryMigration(c echo.Context) error {
	m, err := h.svc.RetryMigration(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"migration": m,
		"message":   MsgOrderMoved,
		"redirect":  ReportPath(m.BilledID),
	})
}
