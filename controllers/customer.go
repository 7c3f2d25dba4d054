// controllers/customer.go
package controllers

import (
	"net/http"

	"orderdesk-backend/models"
	"orderdesk-backend/services"
	"orderdesk-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CustomerController handles the /customers endpoints
type CustomerController struct {
	Service *services.CustomerService
	Logger  zerolog.Logger
}

func NewCustomerController(service *services.CustomerService, logger zerolog.Logger) *CustomerController {
	return &CustomerController{Service: service, Logger: logger}
}

// GetCustomers lists every customer, newest first
func (cc *CustomerController) GetCustomers(c *gin.Context) {
	customers, err := cc.Service.ListCustomers(c.Request.Context())
	if err != nil {
		respondError(c, cc.Logger, err, "Failed to fetch customers")
		return
	}

	results := make([]models.CustomerResponse, 0, len(customers))
	for i := range customers {
		results = append(results, customers[i].Response())
	}
	utils.RespondList(c, results)
}

// CreateCustomer creates a new customer
func (cc *CustomerController) CreateCustomer(c *gin.Context) {
	var input services.CreateCustomerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	customer, err := cc.Service.CreateCustomer(c.Request.Context(), input)
	if err != nil {
		respondError(c, cc.Logger, err, "Failed to create customer")
		return
	}

	utils.RespondData(c, http.StatusCreated, "Customer created successfully", customer.Response())
}

// GetCustomer retrieves a specific customer by ID
func (cc *CustomerController) GetCustomer(c *gin.Context) {
	id, ok := parseID(c, "Customer")
	if !ok {
		return
	}

	customer, err := cc.Service.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, cc.Logger, err, "Failed to retrieve customer")
		return
	}

	utils.RespondData(c, http.StatusOK, "", customer.Response())
}

// UpdateCustomer updates the supplied fields of an existing customer
func (cc *CustomerController) UpdateCustomer(c *gin.Context) {
	id, ok := parseID(c, "Customer")
	if !ok {
		return
	}

	var input services.UpdateCustomerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	customer, err := cc.Service.UpdateCustomer(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, cc.Logger, err, "Failed to update customer")
		return
	}

	utils.RespondData(c, http.StatusOK, "Customer updated successfully", customer.Response())
}

// DeleteCustomer deletes a customer along with all of its orders
func (cc *CustomerController) DeleteCustomer(c *gin.Context) {
	id, ok := parseID(c, "Customer")
	if !ok {
		return
	}

	if err := cc.Service.DeleteCustomer(c.Request.Context(), id); err != nil {
		respondError(c, cc.Logger, err, "Failed to delete customer")
		return
	}

	c.Status(http.StatusNoContent)
}
