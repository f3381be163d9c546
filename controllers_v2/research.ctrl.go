package v2controllers

import (
	"net/http"

	"github.com/invoiceflow/invoiceflow/lib/responses"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/labstack/echo/v4"
)

// ResearchController : research pool donations and grants
type ResearchController struct {
	svc *service.InvoiceFlowService
}

func NewResearchController(svc *service.InvoiceFlowService) *ResearchController {
	return &ResearchController{svc: svc}
}

// Pool godoc
// @Summary      Research pool statistics
// @Produce      json
// @Tags         Research
// @Success      200  {object}  service.PoolStats
// @Router       /v2/research/pool [get]
func (controller *ResearchController) Pool(c echo.Context) error {
	stats, err := controller.svc.ResearchPoolStats(c.Request().Context())
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (controller *ResearchController) bindPage(c echo.Context) (service.PageRequest, bool) {
	var page service.PageRequest
	if err := c.Bind(&page); err != nil {
		c.Logger().Errorf("Failed to load page request: %v", err)
		return page, false
	}
	if err := c.Validate(&page); err != nil {
		c.Logger().Errorf("Invalid page request: %v", err)
		return page, false
	}
	return page, true
}

func (controller *ResearchController) ListDonations(c echo.Context) error {
	page, ok := controller.bindPage(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	donations, err := controller.svc.ListDonations(c.Request().Context(), page)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, donations)
}

func (controller *ResearchController) CreateDonation(c echo.Context) error {
	var body service.CreateDonationRequest
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create donation request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create donation request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	donation, err := controller.svc.CreateDonation(c.Request().Context(), &body)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, donation)
}

func (controller *ResearchController) ListGrants(c echo.Context) error {
	page, ok := controller.bindPage(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	grants, err := controller.svc.ListGrants(c.Request().Context(), page)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, grants)
}

// CreateGrant godoc
// @Summary      Award a research grant
// @Description  Fails when the grant exceeds the pool balance
// @Accept       json
// @Produce      json
// @Tags         Research
// @Param        CreateGrantRequest  body      service.CreateGrantRequest  True  "Grant"
// @Success      201                 {object}  models.ResearchGrant
// @Failure      400                 {object}  responses.ErrorResponse
// @Router       /v2/research/grants [post]
func (controller *ResearchController) CreateGrant(c echo.Context) error {
	var body service.CreateGrantRequest
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create grant request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create grant request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	grant, err := controller.svc.CreateGrant(c.Request().Context(), &body)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, grant)
}
