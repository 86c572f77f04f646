package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/service"
	"github.com/shinyyama/rental-backend/internal/session"
)

const maxItemImageSize = 5 << 20

type ItemHandler struct {
	svc service.ItemService
}

func NewItemHandler(svc service.ItemService) *ItemHandler {
	return &ItemHandler{svc: svc}
}

type ItemResponse struct {
	ID              uint64  `json:"id"`
	OwnerUID        string  `json:"ownerUid"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	PricePerDay     float64 `json:"pricePerDay"`
	DepositFee      float64 `json:"depositFee"`
	Location        string  `json:"location"`
	PaymentInterval string  `json:"paymentInterval"`
	Quantity        int     `json:"quantity"`
	Available       bool    `json:"available"`
	ImageURL        *string `json:"imageUrl,omitempty"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

type ItemListResponse struct {
	Items []ItemResponse `json:"items"`
	Total int64          `json:"total"`
}

type CreateItemRequest struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	PricePerDay     float64 `json:"pricePerDay"`
	DepositFee      float64 `json:"depositFee"`
	Location        string  `json:"location"`
	PaymentInterval string  `json:"paymentInterval"`
	Quantity        int     `json:"quantity"`
	ImageURL        *string `json:"imageUrl"`
}

// Create accepts JSON with an already hosted imageUrl, or a multipart form
// with the same fields and an optional "image" file.
func (h *ItemHandler) Create(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	var in service.CreateItemInput
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		in, err = itemFromForm(c)
		if err != nil {
			return writeUploadError(c, err)
		}
	} else {
		var req CreateItemRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item payload"))
		}
		in = service.CreateItemInput{
			Title:           req.Title,
			Description:     req.Description,
			Category:        req.Category,
			PricePerDay:     req.PricePerDay,
			DepositFee:      req.DepositFee,
			Location:        req.Location,
			PaymentInterval: req.PaymentInterval,
			Quantity:        req.Quantity,
			ImageURL:        req.ImageURL,
		}
	}
	item, err := h.svc.Create(c.Request().Context(), sess, in)
	if err != nil {
		return writeError(c, err, "failed to create item")
	}
	return c.JSON(http.StatusCreated, toItemResponse(item))
}

var errBadItemForm = errors.New("invalid item form")

func itemFromForm(c echo.Context) (service.CreateItemInput, error) {
	in := service.CreateItemInput{
		Title:           c.FormValue("title"),
		Description:     c.FormValue("description"),
		Category:        c.FormValue("category"),
		Location:        c.FormValue("location"),
		PaymentInterval: c.FormValue("paymentInterval"),
	}
	if v := c.FormValue("imageUrl"); v != "" {
		in.ImageURL = &v
	}
	var err error
	if in.PricePerDay, err = formFloat(c, "pricePerDay"); err != nil {
		return in, err
	}
	if in.DepositFee, err = formFloat(c, "depositFee"); err != nil {
		return in, err
	}
	if v := c.FormValue("quantity"); v != "" {
		if in.Quantity, err = strconv.Atoi(v); err != nil {
			return in, errBadItemForm
		}
	}
	upload, err := formFile(c, "image", maxItemImageSize)
	if err != nil {
		return in, err
	}
	if upload != nil {
		in.Image = &service.ImageFile{Filename: upload.Filename, ContentType: upload.ContentType, Data: upload.Data}
	}
	return in, nil
}

func formFloat(c echo.Context, field string) (float64, error) {
	v := c.FormValue(field)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errBadItemForm
	}
	return f, nil
}

func (h *ItemHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	item, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err, "failed to fetch item")
	}
	return c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *ItemHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	items, total, err := h.svc.List(c.Request().Context(), limit, offset, c.QueryParam("category"), c.QueryParam("q"))
	if err != nil {
		return writeError(c, err, "failed to fetch items")
	}
	resp := ItemListResponse{
		Items: make([]ItemResponse, 0, len(items)),
		Total: total,
	}
	for i := range items {
		resp.Items = append(resp.Items, toItemResponse(&items[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

func toItemResponse(item *model.Item) ItemResponse {
	return ItemResponse{
		ID:              item.ID,
		OwnerUID:        item.OwnerUID,
		Title:           item.Title,
		Description:     item.Description,
		Category:        item.Category,
		PricePerDay:     item.PricePerDay,
		DepositFee:      item.DepositFee,
		Location:        item.Location,
		PaymentInterval: item.PaymentInterval,
		Quantity:        item.Quantity,
		Available:       item.Available,
		ImageURL:        item.ImageURL,
		CreatedAt:       item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       item.UpdatedAt.Format(time.RFC3339),
	}
}
