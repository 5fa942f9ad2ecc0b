package controllers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lawoffice/billinghub/db/models"
	"github.com/lawoffice/billinghub/lib/interval"
	"github.com/lawoffice/billinghub/lib/responses"
	"github.com/lawoffice/billinghub/lib/service"
)

// EntryController : billing entry controller struct
type EntryController struct {
	svc *service.BillingService
}

func NewEntryController(svc *service.BillingService) *EntryController {
	return &EntryController{svc: svc}
}

type AddEntryRequestBody struct {
	MatterID    int64    `json:"matter_id" validate:"required,gt=0"`
	Category    string   `json:"category" validate:"required,max=100"`
	Start       string   `json:"start" validate:"required,timestamp"`
	Stop        string   `json:"stop" validate:"required,timestamp"`
	Hours       *float64 `json:"hours" validate:"omitempty,gte=0"`
	Description string   `json:"description"`
}

type UpdateEntryRequestBody struct {
	Category    *string  `json:"category" validate:"omitempty,min=1,max=100"`
	Start       *string  `json:"start" validate:"omitempty,timestamp"`
	Stop        *string  `json:"stop" validate:"omitempty,timestamp"`
	Hours       *float64 `json:"hours" validate:"omitempty,gte=0"`
	Description *string  `json:"description"`
}

type EntryResponseBody struct {
	ID          int64   `json:"id"`
	MatterID    int64   `json:"matter_id"`
	Category    string  `json:"category"`
	Start       string  `json:"start"`
	Stop        string  `json:"stop"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
}

type UnbilledEntryResponseBody struct {
	ID          int64   `json:"id"`
	ClientID    int64   `json:"client_id"`
	ClientName  string  `json:"client_name"`
	MatterID    int64   `json:"matter_id"`
	MatterName  string  `json:"matter_name"`
	Category    string  `json:"category"`
	Start       string  `json:"start"`
	Stop        string  `json:"stop"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description"`
}

type GetUnbilledResponseBody struct {
	Entries    []UnbilledEntryResponseBody `json:"entries"`
	TotalHours float64                     `json:"total_hours"`
}

func entryResponse(entry *models.BillingEntry) *EntryResponseBody {
	return &EntryResponseBody{
		ID:          entry.ID,
		MatterID:    entry.MatterID,
		Category:    entry.Category,
		Start:       interval.Format(entry.Start),
		Stop:        interval.Format(entry.Stop),
		Hours:       entry.Hours,
		Description: entry.Description,
		Status:      entry.Status,
	}
}

// AddEntry godoc
// @Summary      Record billable time
// @Description  Rejected with 409 when the bounds overlap time already committed on a submitted invoice
// @Accept       json
// @Produce      json
// @Tags         Entry
// @Param        entry  body      AddEntryRequestBody  True  "Add entry"
// @Success      201    {object}  EntryResponseBody
// @Failure      400    {object}  responses.ErrorResponse
// @Failure      409    {object}  responses.ErrorResponse
// @Router       /v1/entries [post]
func (controller *EntryController) AddEntry(c echo.Context) error {
	var body AddEntryRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load add entry request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid add entry request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	// both parse, the validator checked them
	start, _ := interval.Parse(body.Start)
	stop, _ := interval.Parse(body.Stop)

	entry, err := controller.svc.InsertBillingEntry(c.Request().Context(), service.NewBillingEntry{
		MatterID:    body.MatterID,
		Category:    body.Category,
		Start:       start,
		Stop:        stop,
		Hours:       body.Hours,
		Description: body.Description,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, entryResponse(entry))
}

// UpdateEntry godoc
// @Summary      Edit billable time
// @Accept       json
// @Produce      json
// @Tags         Entry
// @Param        id     path      int                     true  "Entry id"
// @Param        entry  body      UpdateEntryRequestBody  True  "Update entry"
// @Success      200    {object}  EntryResponseBody
// @Failure      400    {object}  responses.ErrorResponse
// @Failure      409    {object}  responses.ErrorResponse
// @Failure      422    {object}  responses.ErrorResponse
// @Router       /v1/entries/{id} [put]
func (controller *EntryController) UpdateEntry(c echo.Context) error {
	entryID, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	var body UpdateEntryRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load update entry request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid update entry request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	upd := service.BillingEntryUpdate{
		Category:    body.Category,
		Description: body.Description,
		Hours:       body.Hours,
		Start:       parseOptional(body.Start),
		Stop:        parseOptional(body.Stop),
	}
	entry, err := controller.svc.UpdateBillingEntry(c.Request().Context(), entryID, upd)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, entryResponse(entry))
}

// GetUnbilled godoc
// @Summary      List time that is on no invoice yet
// @Produce      json
// @Tags         Entry
// @Param        client_id  query     int  false  "Client id"
// @Param        matter_id  query     int  false  "Matter id"
// @Success      200        {object}  GetUnbilledResponseBody
// @Failure      400        {object}  responses.ErrorResponse
// @Router       /v1/entries/unbilled [get]
func (controller *EntryController) GetUnbilled(c echo.Context) error {
	var filter service.UnbilledFilter
	err := echo.QueryParamsBinder(c).
		Int64("client_id", &filter.ClientID).
		Int64("matter_id", &filter.MatterID).
		BindError()
	if err != nil {
		c.Logger().Errorf("Invalid unbilled time query: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	entries, err := controller.svc.GetUnbilledTime(c.Request().Context(), filter)
	if err != nil {
		return serviceError(c, err)
	}
	response := GetUnbilledResponseBody{Entries: make([]UnbilledEntryResponseBody, len(entries))}
	for i, e := range entries {
		response.Entries[i] = UnbilledEntryResponseBody{
			ID:          e.ID,
			ClientID:    e.ClientID,
			ClientName:  e.ClientName,
			MatterID:    e.MatterID,
			MatterName:  e.MatterName,
			Category:    e.Category,
			Start:       interval.Format(e.Start),
			Stop:        interval.Format(e.Stop),
			Hours:       e.Hours,
			Description: e.Description,
		}
		response.TotalHours += e.Hours
	}
	response.TotalHours = interval.RoundHours(response.TotalHours)
	return c.JSON(http.StatusOK, &response)
}

func parseOptional(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := interval.Parse(*s)
	if err != nil {
		return nil
	}
	return &t
}
