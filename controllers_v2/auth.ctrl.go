package v2controllers

import (
	"errors"
	"net/http"

	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/invoiceflow/invoiceflow/lib/responses"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/labstack/echo/v4"
)

// AuthController : wallet signature login
type AuthController struct {
	svc *service.InvoiceFlowService
}

func NewAuthController(svc *service.InvoiceFlowService) *AuthController {
	return &AuthController{svc: svc}
}

type AuthResponseBody struct {
	AccessToken string       `json:"access_token"`
	User        *models.User `json:"user"`
}

// Auth godoc
// @Summary      Authenticate with a wallet signature
// @Description  Exchanges an EIP-191 signed login message for an access token
// @Accept       json
// @Produce      json
// @Tags         Auth
// @Param        AuthRequest  body      service.AuthRequest  True  "Signed login"
// @Success      200          {object}  AuthResponseBody
// @Failure      400          {object}  responses.ErrorResponse
// @Failure      401          {object}  responses.ErrorResponse
// @Failure      500          {object}  responses.ErrorResponse
// @Router       /auth [post]
func (controller *AuthController) Auth(c echo.Context) error {
	var body service.AuthRequest

	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load auth user request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid auth user request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	accessToken, user, err := controller.svc.GenerateToken(c.Request().Context(), &body)
	if errors.Is(err, service.ErrBadSignature) {
		c.Logger().Infof("Rejected login for %s: %v", body.Address, err)
		return c.JSON(http.StatusUnauthorized, responses.BadAuthError)
	}
	if err != nil {
		return responses.ServiceError(c, err)
	}

	return c.JSON(http.StatusOK, &AuthResponseBody{AccessToken: accessToken, User: user})
}
