// Package reporting serves desk reports: SQL measures over the order tables
// and the printable report of a billed order.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/labdesk/labdesk/internal/platform/auth"
)

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"sql"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "unbilled-backlog",
		Name:        "Unbilled Backlog",
		Description: "Number and value of orders still waiting to be billed",
		SQL:         `SELECT COUNT(*) AS total, COALESCE(SUM(total_amount - discount), 0) AS pending_amount FROM unbilled_orders`,
		Parameters:  []string{},
	},
	{
		ID:          "billed-by-payment-mode",
		Name:        "Billed Orders by Payment Mode",
		Description: "Billed order count and collected amount grouped by payment mode",
		SQL:         `SELECT payment_mode, COUNT(*) AS total, COALESCE(SUM(final_payment), 0) AS collected FROM billed_orders GROUP BY payment_mode ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "referrals-by-doctor",
		Name:        "Referrals by Doctor",
		Description: "Orders in both collections grouped by referring doctor",
		SQL: `SELECT COALESCE(d.name, 'None') AS doctor, COUNT(*) AS total
			FROM (SELECT referred_by FROM unbilled_orders UNION ALL SELECT referred_by FROM billed_orders) o
			LEFT JOIN doctors d ON d.id = o.referred_by
			GROUP BY d.name ORDER BY total DESC`,
		Parameters: []string{},
	},
	{
		ID:          "order-moves-by-status",
		Name:        "Order Moves by Status",
		Description: "Unbilled-to-billed moves grouped by journal status",
		SQL:         `SELECT status, COUNT(*) AS total FROM order_migrations GROUP BY status ORDER BY total DESC`,
		Parameters:  []string{},
	},
}

// Handler provides HTTP handlers for the measures API.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates a new reporting handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the measures routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole(auth.RoleAdmin, auth.RoleBilling))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now().UTC(),
		Results:     results,
	})
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
