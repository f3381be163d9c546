package v2controllers

import (
	"net/http"

	"github.com/invoiceflow/invoiceflow/lib/responses"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/labstack/echo/v4"
)

type NotificationController struct {
	svc *service.InvoiceFlowService
}

func NewNotificationController(svc *service.InvoiceFlowService) *NotificationController {
	return &NotificationController{svc: svc}
}

type ListNotificationsParams struct {
	Unread bool `query:"unread"`
	service.PageRequest
}

type UnreadCountResponseBody struct {
	Unread int `json:"unread"`
}

type MarkAllReadResponseBody struct {
	Updated int64 `json:"updated"`
}

// ListNotifications godoc
// @Summary      Notifications of the caller
// @Produce      json
// @Tags         Notification
// @Param        unread  query     bool  false  "Only unread"
// @Param        page    query     int   false  "Page"
// @Param        limit   query     int   false  "Page size"
// @Success      200     {object}  service.NotificationsResponse
// @Router       /v2/notifications [get]
// @Security     Bearer
func (controller *NotificationController) ListNotifications(c echo.Context) error {
	var params ListNotificationsParams
	if err := c.Bind(&params); err != nil {
		c.Logger().Errorf("Failed to load notification params: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&params); err != nil {
		c.Logger().Errorf("Invalid notification params: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	notifications, err := controller.svc.ListNotifications(c.Request().Context(), walletOf(c), params.Unread, params.PageRequest)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, notifications)
}

func (controller *NotificationController) UnreadCount(c echo.Context) error {
	count, err := controller.svc.UnreadNotificationCount(c.Request().Context(), walletOf(c))
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &UnreadCountResponseBody{Unread: count})
}

func (controller *NotificationController) MarkRead(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	notification, err := controller.svc.MarkNotificationRead(c.Request().Context(), walletOf(c), id)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, notification)
}

func (controller *NotificationController) MarkAllRead(c echo.Context) error {
	updated, err := controller.svc.MarkAllNotificationsRead(c.Request().Context(), walletOf(c))
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &MarkAllReadResponseBody{Updated: updated})
}
