package v2controllers

import (
	"net/http"

	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/labstack/echo/v4"
)

type HealthController struct {
	svc      *service.InvoiceFlowService
	listener func() string
}

// NewHealthController reports the listener state through listenerState when
// it is not nil.
func NewHealthController(svc *service.InvoiceFlowService, listenerState func() string) *HealthController {
	return &HealthController{svc: svc, listener: listenerState}
}

type HealthResponse struct {
	Result   string `json:"result"`
	Database string `json:"database"`
	Listener string `json:"listener,omitempty"`
}

// Check godoc
// @Summary      Check system health
// @Description  Pings the database and reports the chain listener state
// @Produce      json
// @Tags         Health
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  HealthResponse
// @Router       /health [get]
func (controller *HealthController) Check(c echo.Context) error {
	response := HealthResponse{Result: "OK", Database: "OK"}
	if controller.listener != nil {
		response.Listener = controller.listener()
	}
	if err := controller.svc.DB.PingContext(c.Request().Context()); err != nil {
		c.Logger().Errorf("Health check database ping failed: %v", err)
		response.Result = "DEGRADED"
		response.Database = "UNREACHABLE"
		return c.JSON(http.StatusServiceUnavailable, &response)
	}
	return c.JSON(http.StatusOK, &response)
}
