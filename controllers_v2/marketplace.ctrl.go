package v2controllers

import (
	"net/http"

	"github.com/invoiceflow/invoiceflow/lib/responses"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/labstack/echo/v4"
)

// MarketplaceController : factoring listings and sales
type MarketplaceController struct {
	svc *service.InvoiceFlowService
}

func NewMarketplaceController(svc *service.InvoiceFlowService) *MarketplaceController {
	return &MarketplaceController{svc: svc}
}

type RecordSaleRequestBody struct {
	TxHash string `json:"txHash" validate:"omitempty,max=66"`
}

// ListListings godoc
// @Summary      Browse active listings
// @Produce      json
// @Tags         Marketplace
// @Param        seller        query     string  false  "Seller address"
// @Param        paymentToken  query     string  false  "Payment token address"
// @Param        minPrice      query     string  false  "Minimum sale price"
// @Param        maxPrice      query     string  false  "Maximum sale price"
// @Param        sort          query     string  false  "newest, oldest, price_asc or price_desc"
// @Success      200           {object}  service.ListingsResponse
// @Failure      400           {object}  responses.ErrorResponse
// @Router       /v2/marketplace/listings [get]
func (controller *MarketplaceController) ListListings(c echo.Context) error {
	var filter service.ListingFilter
	if err := c.Bind(&filter); err != nil {
		c.Logger().Errorf("Failed to load listing filter: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&filter); err != nil {
		c.Logger().Errorf("Invalid listing filter: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	listings, err := controller.svc.ActiveListings(c.Request().Context(), &filter)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, listings)
}

func (controller *MarketplaceController) GetListing(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	listing, err := controller.svc.FindListing(c.Request().Context(), id)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, listing)
}

// Stats godoc
// @Summary      Marketplace statistics
// @Produce      json
// @Tags         Marketplace
// @Success      200  {object}  service.MarketplaceStats
// @Router       /v2/marketplace/stats [get]
func (controller *MarketplaceController) Stats(c echo.Context) error {
	stats, err := controller.svc.MarketplaceStats(c.Request().Context())
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (controller *MarketplaceController) CreateListing(c echo.Context) error {
	seller := walletOf(c)
	var body service.CreateListingRequest
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create listing request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create listing request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	listing, err := controller.svc.CreateListing(c.Request().Context(), seller, &body)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, listing)
}

// RecordSale godoc
// @Summary      Record a listing sale
// @Description  Marks the listing sold and moves invoice ownership to the caller
// @Accept       json
// @Produce      json
// @Tags         Marketplace
// @Param        id                     path      int                    true  "Listing id"
// @Param        RecordSaleRequestBody  body      RecordSaleRequestBody  True  "Purchase transaction"
// @Success      200                    {object}  models.Listing
// @Failure      404                    {object}  responses.ErrorResponse
// @Failure      409                    {object}  responses.ErrorResponse
// @Router       /v2/marketplace/listings/{id}/sale [post]
// @Security     Bearer
func (controller *MarketplaceController) RecordSale(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	var body RecordSaleRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load record sale request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid record sale request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	buyer := walletOf(c)
	c.Logger().Infof("Recording sale of listing %d to %s", id, buyer)
	listing, err := controller.svc.RecordSale(c.Request().Context(), id, buyer, body.TxHash)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, listing)
}
