package v2controllers

import (
	"net/http"

	"github.com/invoiceflow/invoiceflow/lib/responses"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// AIController : risk scoring and portfolio insights
type AIController struct {
	svc *service.InvoiceFlowService
}

func NewAIController(svc *service.InvoiceFlowService) *AIController {
	return &AIController{svc: svc}
}

// RiskScore godoc
// @Summary      Score the risk of an invoice
// @Description  Uses the supplied payer history, or the stored one when absent
// @Accept       json
// @Produce      json
// @Tags         AI
// @Param        RiskScoreRequest  body      service.RiskScoreRequest  True  "Candidate invoice"
// @Success      200               {object}  service.RiskScoreResponse
// @Failure      400               {object}  responses.ErrorResponse
// @Router       /v2/ai/risk-score [post]
func (controller *AIController) RiskScore(c echo.Context) error {
	var body service.RiskScoreRequest
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load risk score request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid risk score request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || amount.IsNegative() {
		c.Logger().Errorf("Invalid risk score amount %q", body.Amount)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	score, err := controller.svc.ScoreRisk(c.Request().Context(), body.PayerAddress, amount, body.DueDate, body.PayerHistory)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, score)
}

// Insights godoc
// @Summary      Portfolio risk insights
// @Produce      json
// @Tags         AI
// @Success      200  {object}  service.InsightsResponse
// @Router       /v2/ai/insights [get]
func (controller *AIController) Insights(c echo.Context) error {
	insights, err := controller.svc.GetInsights(c.Request().Context())
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, insights)
}
