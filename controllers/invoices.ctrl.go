package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lawoffice/billinghub/common"
	"github.com/lawoffice/billinghub/db/models"
	"github.com/lawoffice/billinghub/lib/interval"
	"github.com/lawoffice/billinghub/lib/responses"
	"github.com/lawoffice/billinghub/lib/service"
)

// InvoiceController : client invoice controller struct
type InvoiceController struct {
	svc *service.BillingService
}

func NewInvoiceController(svc *service.BillingService) *InvoiceController {
	return &InvoiceController{svc: svc}
}

type CreateInvoiceRequestBody struct {
	ClientID      int64  `json:"client_id" validate:"required,gt=0"`
	MatterID      int64  `json:"matter_id" validate:"required,gt=0"`
	InvoiceNumber string `json:"invoice_number" validate:"required,max=64"`
}

type AttachEntryRequestBody struct {
	EntryID int64 `json:"entry_id" validate:"required,gt=0"`
}

type InvoiceResponseBody struct {
	ID                int64   `json:"id"`
	InvoiceNumber     string  `json:"invoice_number"`
	ClientID          int64   `json:"client_id"`
	MatterID          int64   `json:"matter_id"`
	Status            string  `json:"status"`
	TotalHours        float64 `json:"total_hours"`
	TotalAmount       int64   `json:"total_amount"`
	IsValid           bool    `json:"is_valid"`
	LastValidityCheck *string `json:"last_validity_check"`
	VersionNumber     int64   `json:"version_number"`
	DateSubmitted     *string `json:"date_submitted"`
}

type InvoiceItemResponseBody struct {
	ID     int64              `json:"id"`
	Status string             `json:"status"`
	Entry  *EntryResponseBody `json:"entry"`
}

type InvoiceDetailResponseBody struct {
	InvoiceResponseBody
	Items []InvoiceItemResponseBody `json:"items"`
}

type GetInvoicesResponseBody struct {
	Invoices []InvoiceResponseBody `json:"invoices"`
}

func invoiceResponse(invoice *models.Invoice) InvoiceResponseBody {
	resp := InvoiceResponseBody{
		ID:            invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		ClientID:      invoice.ClientID,
		MatterID:      invoice.MatterID,
		Status:        invoice.Status,
		TotalHours:    invoice.TotalHours,
		TotalAmount:   invoice.TotalAmount,
		IsValid:       invoice.IsValid,
		VersionNumber: invoice.VersionNumber,
	}
	if !invoice.LastValidityCheck.IsZero() {
		checked := interval.Format(invoice.LastValidityCheck.Time)
		resp.LastValidityCheck = &checked
	}
	if !invoice.DateSubmitted.IsZero() {
		submitted := interval.Format(invoice.DateSubmitted.Time)
		resp.DateSubmitted = &submitted
	}
	return resp
}

// CreateInvoice godoc
// @Summary      Open a draft invoice
// @Accept       json
// @Produce      json
// @Tags         Invoice
// @Param        invoice  body      CreateInvoiceRequestBody  True  "Create invoice"
// @Success      201      {object}  InvoiceResponseBody
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      409      {object}  responses.ErrorResponse
// @Failure      422      {object}  responses.ErrorResponse
// @Router       /v1/invoices [post]
func (controller *InvoiceController) CreateInvoice(c echo.Context) error {
	var body CreateInvoiceRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	invoice, err := controller.svc.CreateInvoice(c.Request().Context(), body.ClientID, body.MatterID, body.InvoiceNumber)
	if err != nil {
		return serviceError(c, err)
	}
	resp := invoiceResponse(invoice)
	return c.JSON(http.StatusCreated, &resp)
}

// GetInvoices godoc
// @Summary      List invoices
// @Produce      json
// @Tags         Invoice
// @Param        client_id  query     int     false  "Client id"
// @Param        matter_id  query     int     false  "Matter id"
// @Param        status     query     string  false  "draft or submitted"
// @Success      200        {object}  GetInvoicesResponseBody
// @Failure      400        {object}  responses.ErrorResponse
// @Router       /v1/invoices [get]
func (controller *InvoiceController) GetInvoices(c echo.Context) error {
	var filter service.InvoiceFilter
	err := echo.QueryParamsBinder(c).
		Int64("client_id", &filter.ClientID).
		Int64("matter_id", &filter.MatterID).
		String("status", &filter.Status).
		BindError()
	if err != nil {
		c.Logger().Errorf("Invalid invoice list query: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if filter.Status != "" && filter.Status != common.InvoiceStatusDraft && filter.Status != common.InvoiceStatusSubmitted {
		c.Logger().Errorf("Invalid invoice status filter: %v", filter.Status)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	invoices, err := controller.svc.ListInvoices(c.Request().Context(), filter)
	if err != nil {
		return serviceError(c, err)
	}
	response := GetInvoicesResponseBody{Invoices: make([]InvoiceResponseBody, len(invoices))}
	for i := range invoices {
		response.Invoices[i] = invoiceResponse(&invoices[i])
	}
	return c.JSON(http.StatusOK, &response)
}

// GetInvoice godoc
// @Summary      Invoice with its billing items
// @Produce      json
// @Tags         Invoice
// @Param        id   path      int  true  "Invoice id"
// @Success      200  {object}  InvoiceDetailResponseBody
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v1/invoices/{id} [get]
func (controller *InvoiceController) GetInvoice(c echo.Context) error {
	invoiceID, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	detail, err := controller.svc.GetInvoice(c.Request().Context(), invoiceID)
	if err != nil {
		return serviceError(c, err)
	}
	response := InvoiceDetailResponseBody{
		InvoiceResponseBody: invoiceResponse(detail.Invoice),
		Items:               make([]InvoiceItemResponseBody, len(detail.Items)),
	}
	for i, item := range detail.Items {
		response.Items[i] = InvoiceItemResponseBody{ID: item.ID, Status: item.Status}
		if item.Entry != nil {
			response.Items[i].Entry = entryResponse(item.Entry)
		}
	}
	return c.JSON(http.StatusOK, &response)
}

// AttachEntry godoc
// @Summary      Add a billing entry to a draft invoice
// @Accept       json
// @Produce      json
// @Tags         Invoice
// @Param        id     path      int                     true  "Invoice id"
// @Param        entry  body      AttachEntryRequestBody  True  "Entry"
// @Success      200    {object}  InvoiceResponseBody
// @Failure      404    {object}  responses.ErrorResponse
// @Failure      409    {object}  responses.ErrorResponse
// @Failure      422    {object}  responses.ErrorResponse
// @Router       /v1/invoices/{id}/items [post]
func (controller *InvoiceController) AttachEntry(c echo.Context) error {
	invoiceID, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	var body AttachEntryRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load attach entry request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid attach entry request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	invoice, err := controller.svc.AttachEntryToInvoice(c.Request().Context(), invoiceID, body.EntryID)
	if err != nil {
		return serviceError(c, err)
	}
	resp := invoiceResponse(invoice)
	return c.JSON(http.StatusOK, &resp)
}

// CheckValidity godoc
// @Summary      Check an invoice for time conflicts
// @Produce      json
// @Tags         Invoice
// @Param        id   path      int  true  "Invoice id"
// @Success      200  {object}  service.ValidityReport
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v1/invoices/{id}/validity [get]
func (controller *InvoiceController) CheckValidity(c echo.Context) error {
	invoiceID, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	report, err := controller.svc.CheckInvoiceValidity(c.Request().Context(), invoiceID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// SubmitInvoice godoc
// @Summary      Submit a draft invoice
// @Description  Commits every member entry. Rejected with 409 while conflicts exist.
// @Produce      json
// @Tags         Invoice
// @Param        id   path      int  true  "Invoice id"
// @Success      200  {object}  InvoiceResponseBody
// @Failure      404  {object}  responses.ErrorResponse
// @Failure      409  {object}  responses.ErrorResponse
// @Router       /v1/invoices/{id}/submit [post]
func (controller *InvoiceController) SubmitInvoice(c echo.Context) error {
	invoiceID, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	invoice, err := controller.svc.SubmitInvoice(c.Request().Context(), invoiceID)
	if err != nil {
		return serviceError(c, err)
	}
	c.Logger().Infof("Invoice submitted: invoice_id:%v invoice_number:%s total_amount:%v", invoice.ID, invoice.InvoiceNumber, invoice.TotalAmount)
	resp := invoiceResponse(invoice)
	return c.JSON(http.StatusOK, &resp)
}
