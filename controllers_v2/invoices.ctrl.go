package v2controllers

import (
	"net/http"
	"strconv"

	"github.com/invoiceflow/invoiceflow/lib/responses"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/labstack/echo/v4"
)

// InvoiceController : invoice queries, drafts and chain repair
type InvoiceController struct {
	svc *service.InvoiceFlowService
}

func NewInvoiceController(svc *service.InvoiceFlowService) *InvoiceController {
	return &InvoiceController{svc: svc}
}

func idParam(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.Logger().Errorf("Invalid id parameter %q", c.Param("id"))
		return 0, false
	}
	return id, true
}

// ListInvoices godoc
// @Summary      List invoices
// @Description  Filters by seller, payer, owner, status and chain, newest first
// @Produce      json
// @Tags         Invoice
// @Param        seller   query     string  false  "Seller address"
// @Param        payer    query     string  false  "Payer address"
// @Param        owner    query     string  false  "Current owner address"
// @Param        status   query     string  false  "Status"
// @Param        page     query     int     false  "Page"
// @Param        limit    query     int     false  "Page size"
// @Success      200      {object}  service.InvoicesResponse
// @Failure      400      {object}  responses.ErrorResponse
// @Router       /v2/invoices [get]
func (controller *InvoiceController) ListInvoices(c echo.Context) error {
	var filter service.InvoiceFilter
	if err := c.Bind(&filter); err != nil {
		c.Logger().Errorf("Failed to load invoice filter: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&filter); err != nil {
		c.Logger().Errorf("Invalid invoice filter: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	invoices, err := controller.svc.ListInvoices(c.Request().Context(), &filter)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, invoices)
}

// GetInvoice godoc
// @Summary      Get an invoice
// @Description  Returns the invoice with its listings, payments and disputes
// @Produce      json
// @Tags         Invoice
// @Param        id   path      int  true  "Invoice id"
// @Success      200  {object}  models.Invoice
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v2/invoices/{id} [get]
func (controller *InvoiceController) GetInvoice(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	invoice, err := controller.svc.InvoiceDetails(c.Request().Context(), id)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, invoice)
}

func (controller *InvoiceController) CreateInvoice(c echo.Context) error {
	seller := walletOf(c)
	var body service.CreateInvoiceRequest
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	c.Logger().Infof("Creating invoice: seller:%s payer:%s amount:%s", seller, body.PayerAddress, body.Amount)
	invoice, err := controller.svc.CreateInvoice(c.Request().Context(), seller, &body)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, invoice)
}

func (controller *InvoiceController) UpdateInvoice(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	var body service.UpdateInvoiceRequest
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load update invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid update invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	invoice, err := controller.svc.UpdateInvoice(c.Request().Context(), walletOf(c), id, &body)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, invoice)
}

// SyncInvoice godoc
// @Summary      Re-read an invoice from the chain
// @Description  Overwrites the mirrored chain columns of one token
// @Accept       json
// @Produce      json
// @Tags         Invoice
// @Param        SyncInvoiceRequest  body      service.SyncInvoiceRequest  True  "Token to sync"
// @Success      200                 {object}  models.Invoice
// @Failure      400                 {object}  responses.ErrorResponse
// @Failure      502                 {object}  responses.ErrorResponse
// @Failure      503                 {object}  responses.ErrorResponse
// @Router       /v2/invoices/sync [post]
func (controller *InvoiceController) SyncInvoice(c echo.Context) error {
	var body service.SyncInvoiceRequest
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load sync request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if body.ChainID == 0 {
		body.ChainID = controller.svc.ChainConfig.ChainID
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid sync request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	invoice, err := controller.svc.SyncFromChain(c.Request().Context(), body.TokenID, body.ChainID)
	if err != nil {
		c.Logger().Errorf("Sync of token %d on chain %d failed: %v", body.TokenID, body.ChainID, err)
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, invoice)
}
