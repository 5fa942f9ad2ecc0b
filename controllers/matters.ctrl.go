package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lawoffice/billinghub/lib/responses"
	"github.com/lawoffice/billinghub/lib/service"
)

// MatterController : clients and matters controller struct
type MatterController struct {
	svc *service.BillingService
}

func NewMatterController(svc *service.BillingService) *MatterController {
	return &MatterController{svc: svc}
}

type CreateClientRequestBody struct {
	Name string `json:"name" validate:"required,max=200"`
}

type CreateMatterRequestBody struct {
	ClientID int64  `json:"client_id" validate:"required,gt=0"`
	Name     string `json:"name" validate:"required,max=200"`
}

type ClientResponseBody struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type MatterResponseBody struct {
	ID       int64  `json:"id"`
	ClientID int64  `json:"client_id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
}

// CreateClient godoc
// @Summary      Create a client
// @Accept       json
// @Produce      json
// @Tags         Matter
// @Param        client  body      CreateClientRequestBody  True  "Create client"
// @Success      201     {object}  ClientResponseBody
// @Failure      400     {object}  responses.ErrorResponse
// @Router       /v1/clients [post]
func (controller *MatterController) CreateClient(c echo.Context) error {
	var body CreateClientRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create client request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create client request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	client, err := controller.svc.CreateClient(c.Request().Context(), body.Name)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, &ClientResponseBody{ID: client.ID, Name: client.Name})
}

// CreateMatter godoc
// @Summary      Open a matter for a client
// @Accept       json
// @Produce      json
// @Tags         Matter
// @Param        matter  body      CreateMatterRequestBody  True  "Create matter"
// @Success      201     {object}  MatterResponseBody
// @Failure      400     {object}  responses.ErrorResponse
// @Failure      404     {object}  responses.ErrorResponse
// @Router       /v1/matters [post]
func (controller *MatterController) CreateMatter(c echo.Context) error {
	var body CreateMatterRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create matter request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create matter request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	matter, err := controller.svc.CreateMatter(c.Request().Context(), body.ClientID, body.Name)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, &MatterResponseBody{
		ID:       matter.ID,
		ClientID: matter.ClientID,
		Name:     matter.Name,
		Status:   matter.Status,
	})
}

// Summary godoc
// @Summary      Hours per billing category of a matter
// @Produce      json
// @Tags         Matter
// @Param        id   path      int  true  "Matter id"
// @Success      200  {object}  service.MatterSummary
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v1/matters/{id}/summary [get]
func (controller *MatterController) Summary(c echo.Context) error {
	matterID, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	summary, err := controller.svc.MatterBillingSummary(c.Request().Context(), matterID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}
