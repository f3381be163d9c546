package v2controllers

import (
	"net/http"

	"github.com/invoiceflow/invoiceflow/lib/responses"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/invoiceflow/invoiceflow/lib/tokens"
	"github.com/labstack/echo/v4"
)

type UserController struct {
	svc *service.InvoiceFlowService
}

func NewUserController(svc *service.InvoiceFlowService) *UserController {
	return &UserController{svc: svc}
}

func walletOf(c echo.Context) string {
	wallet, _ := c.Get(tokens.ContextKeyWallet).(string)
	return wallet
}

// Me godoc
// @Summary      Current user
// @Produce      json
// @Tags         User
// @Success      200  {object}  models.User
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v2/users/me [get]
// @Security     Bearer
func (controller *UserController) Me(c echo.Context) error {
	user, err := controller.svc.FindUserByWallet(c.Request().Context(), walletOf(c))
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (controller *UserController) UpdateMe(c echo.Context) error {
	var body service.UpdateUserRequest
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load update user request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid update user request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	user, err := controller.svc.UpdateUser(c.Request().Context(), walletOf(c), &body)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// Get is the public profile of a wallet.
func (controller *UserController) Get(c echo.Context) error {
	user, err := controller.svc.FindUserByWallet(c.Request().Context(), c.Param("address"))
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}
