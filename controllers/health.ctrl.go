package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lawoffice/billinghub/lib/service"
)

type HealthController struct {
	svc *service.BillingService
}

func NewHealthController(svc *service.BillingService) *HealthController {
	return &HealthController{svc: svc}
}

type HealthResponse struct {
	Result string `json:"result"`
}

// Check godoc
// @Summary      Check system health
// @Description  Pings the database
// @Produce      json
// @Tags         Health
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  HealthResponse
// @Router       /health [get]
func (controller *HealthController) Check(c echo.Context) error {
	if err := controller.svc.DB.PingContext(c.Request().Context()); err != nil {
		c.Logger().Errorf("Database ping failed: %v", err)
		return c.JSON(http.StatusServiceUnavailable, &HealthResponse{Result: "database unavailable"})
	}
	return c.JSON(http.StatusOK, &HealthResponse{
		Result: "OK",
	})
}
