package v2controllers

import (
	"net/http"

	"github.com/invoiceflow/invoiceflow/lib/responses"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/labstack/echo/v4"
)

type PaymentController struct {
	svc *service.InvoiceFlowService
}

func NewPaymentController(svc *service.InvoiceFlowService) *PaymentController {
	return &PaymentController{svc: svc}
}

// CreatePayment godoc
// @Summary      Record a payment
// @Accept       json
// @Produce      json
// @Tags         Payment
// @Param        CreatePaymentRequest  body      service.CreatePaymentRequest  True  "Payment"
// @Success      201                   {object}  models.Payment
// @Failure      400                   {object}  responses.ErrorResponse
// @Failure      404                   {object}  responses.ErrorResponse
// @Failure      409                   {object}  responses.ErrorResponse
// @Router       /v2/payments [post]
// @Security     Bearer
func (controller *PaymentController) CreatePayment(c echo.Context) error {
	var body service.CreatePaymentRequest
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create payment request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create payment request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	payment, err := controller.svc.RecordPayment(c.Request().Context(), &body)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, payment)
}

func (controller *PaymentController) ListPayments(c echo.Context) error {
	var filter service.PaymentFilter
	if err := c.Bind(&filter); err != nil {
		c.Logger().Errorf("Failed to load payment filter: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&filter); err != nil {
		c.Logger().Errorf("Invalid payment filter: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	payments, err := controller.svc.ListPayments(c.Request().Context(), &filter)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, payments)
}

func (controller *PaymentController) GetPayment(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	payment, err := controller.svc.FindPayment(c.Request().Context(), id)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, payment)
}
