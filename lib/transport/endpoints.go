package transport

import (
	"github.com/labstack/echo/v4"
	"github.com/lawoffice/billinghub/controllers"
	"github.com/lawoffice/billinghub/lib/service"
)

func RegisterEndpoints(svc *service.BillingService, e *echo.Echo, strictRateLimitMiddleware echo.MiddlewareFunc, adminMw echo.MiddlewareFunc, logMw echo.MiddlewareFunc) {
	e.GET("/health", controllers.NewHealthController(svc).Check)

	v1 := e.Group("/v1", adminMw, logMw)

	matterCtrl := controllers.NewMatterController(svc)
	v1.POST("/clients", matterCtrl.CreateClient)
	v1.POST("/matters", matterCtrl.CreateMatter)
	v1.GET("/matters/:id/summary", matterCtrl.Summary)

	entryCtrl := controllers.NewEntryController(svc)
	v1.POST("/entries", entryCtrl.AddEntry, strictRateLimitMiddleware)
	v1.PUT("/entries/:id", entryCtrl.UpdateEntry, strictRateLimitMiddleware)
	v1.GET("/entries/unbilled", entryCtrl.GetUnbilled)

	invoiceCtrl := controllers.NewInvoiceController(svc)
	v1.POST("/invoices", invoiceCtrl.CreateInvoice)
	v1.GET("/invoices", invoiceCtrl.GetInvoices)
	v1.GET("/invoices/:id", invoiceCtrl.GetInvoice)
	v1.POST("/invoices/:id/items", invoiceCtrl.AttachEntry, strictRateLimitMiddleware)
	v1.GET("/invoices/:id/validity", invoiceCtrl.CheckValidity)
	v1.POST("/invoices/:id/submit", invoiceCtrl.SubmitInvoice, strictRateLimitMiddleware)
}
