// controllers/order.go
package controllers

import (
	"net/http"

	"orderdesk-backend/apperrors"
	"orderdesk-backend/models"
	"orderdesk-backend/services"
	"orderdesk-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// OrderController handles the /orders endpoints
type OrderController struct {
	Service *services.OrderService
	Logger  zerolog.Logger
}

func NewOrderController(service *services.OrderService, logger zerolog.Logger) *OrderController {
	return &OrderController{Service: service, Logger: logger}
}

// GetOrders lists orders, optionally limited to ?start_date=&end_date=
func (oc *OrderController) GetOrders(c *gin.Context) {
	orders, err := oc.Service.ListOrders(c.Request.Context(), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		if _, ok := apperrors.AsValidation(err); ok {
			utils.RespondWithError(c, http.StatusBadRequest, services.InvalidDateMessage)
			return
		}
		respondError(c, oc.Logger, err, "Failed to fetch orders")
		return
	}
	utils.RespondList(c, orderResponses(orders))
}

// SearchOrders matches ?q= against customer name, customer code and item
func (oc *OrderController) SearchOrders(c *gin.Context) {
	orders, err := oc.Service.SearchOrders(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, oc.Logger, err, "Failed to search orders")
		return
	}
	utils.RespondList(c, orderResponses(orders))
}

// CreateOrder creates a PENDING order and sends the confirmation SMS
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var input services.CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	order, err := oc.Service.CreateOrder(c.Request.Context(), input)
	if err != nil {
		respondError(c, oc.Logger, err, "Failed to create order")
		return
	}

	utils.RespondData(c, http.StatusCreated, "Order created successfully", order.Response())
}

// GetOrder retrieves a specific order by ID
func (oc *OrderController) GetOrder(c *gin.Context) {
	id, ok := parseID(c, "Order")
	if !ok {
		return
	}

	order, err := oc.Service.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, oc.Logger, err, "Failed to retrieve order")
		return
	}

	utils.RespondData(c, http.StatusOK, "", order.Response())
}

// UpdateOrder changes item, amount, customer or status of an order
func (oc *OrderController) UpdateOrder(c *gin.Context) {
	id, ok := parseID(c, "Order")
	if !ok {
		return
	}

	var input services.UpdateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	order, err := oc.Service.UpdateOrder(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, oc.Logger, err, "Failed to update order")
		return
	}

	utils.RespondData(c, http.StatusOK, "Order updated successfully", order.Response())
}

// DeleteOrder deletes an order and its notification history
func (oc *OrderController) DeleteOrder(c *gin.Context) {
	id, ok := parseID(c, "Order")
	if !ok {
		return
	}

	if err := oc.Service.DeleteOrder(c.Request.Context(), id); err != nil {
		respondError(c, oc.Logger, err, "Failed to delete order")
		return
	}

	c.Status(http.StatusNoContent)
}

func orderResponses(orders []models.Order) []models.OrderResponse {
	out := make([]models.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, orders[i].Response())
	}
	return out
}
