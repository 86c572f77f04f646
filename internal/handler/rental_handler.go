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

const (
	dateLayout     = "2006-01-02"
	maxReceiptSize = 10 << 20
)

type RentalHandler struct {
	rentals service.RentalService
	items   service.ItemService
}

func NewRentalHandler(rentals service.RentalService, items service.ItemService) *RentalHandler {
	return &RentalHandler{rentals: rentals, items: items}
}

type QuoteRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type QuoteResponse struct {
	ItemID      uint64  `json:"itemId"`
	PricePerDay float64 `json:"pricePerDay"`
	Days        int     `json:"days"`
	TotalCost   float64 `json:"totalCost"`
}

type RentalResponse struct {
	ID             uint64        `json:"id"`
	ItemID         uint64        `json:"itemId"`
	RenterUID      string        `json:"renterUid"`
	OwnerUID       string        `json:"ownerUid"`
	StartDate      string        `json:"startDate"`
	EndDate        string        `json:"endDate"`
	Days           int           `json:"days"`
	Quantity       int           `json:"quantity"`
	TotalCost      float64       `json:"totalCost"`
	Status         string        `json:"status"`
	ProofOfDeposit string        `json:"proofOfDeposit"`
	PaymentMethod  string        `json:"paymentMethod,omitempty"`
	DeliveryMethod string        `json:"deliveryMethod,omitempty"`
	CreatedAt      string        `json:"createdAt"`
	Item           *ItemResponse `json:"item,omitempty"`
}

type UpdateRentalStatusRequest struct {
	Status string `json:"status"`
}

func (h *RentalHandler) Quote(c echo.Context) error {
	itemID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}
	var req QuoteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	start, end, err := parseDates(req.StartDate, req.EndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	}
	item, err := h.items.Get(c.Request().Context(), itemID)
	if err != nil {
		return writeError(c, err, "failed to fetch item")
	}
	q, err := h.rentals.Quote(item.PricePerDay, start, end)
	if err != nil {
		return writeError(c, err, "failed to quote")
	}
	return c.JSON(http.StatusOK, QuoteResponse{
		ItemID:      item.ID,
		PricePerDay: item.PricePerDay,
		Days:        q.Days,
		TotalCost:   q.TotalCost,
	})
}

// Submit takes a multipart form: startDate, endDate, quantity,
// paymentMethod, deliveryMethod and the receipt file.
func (h *RentalHandler) Submit(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	itemID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}
	start, end, err := parseDates(c.FormValue("startDate"), c.FormValue("endDate"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	}
	quantity := 1
	if q := strings.TrimSpace(c.FormValue("quantity")); q != "" {
		quantity, err = strconv.Atoi(q)
		if err != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid quantity"))
		}
	}

	var receipt *service.Receipt
	upload, err := formFile(c, "receipt", maxReceiptSize)
	if err != nil {
		return writeUploadError(c, err)
	}
	if upload != nil {
		receipt = &service.Receipt{Filename: upload.Filename, ContentType: upload.ContentType, Data: upload.Data}
	}

	rt, err := h.rentals.Submit(c.Request().Context(), sess, service.RentalRequest{
		ItemID:         itemID,
		StartDate:      start,
		EndDate:        end,
		Quantity:       quantity,
		PaymentMethod:  c.FormValue("paymentMethod"),
		DeliveryMethod: c.FormValue("deliveryMethod"),
		Receipt:        receipt,
	})
	if err != nil {
		return writeError(c, err, "failed to submit rental")
	}
	return c.JSON(http.StatusCreated, toRentalResponse(*rt, nil))
}

func (h *RentalHandler) ListMine(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	list, err := h.rentals.ListMine(c.Request().Context(), sess)
	if err != nil {
		return writeError(c, err, "failed to fetch rentals")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"rentals": toRentalResponses(list)})
}

func (h *RentalHandler) ListIncoming(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	list, err := h.rentals.ListIncoming(c.Request().Context(), sess)
	if err != nil {
		return writeError(c, err, "failed to fetch rental requests")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"rentals": toRentalResponses(list)})
}

func (h *RentalHandler) UpdateStatus(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	var req UpdateRentalStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	rt, err := h.rentals.UpdateStatus(c.Request().Context(), sess, id, model.RentalStatus(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		return writeError(c, err, "failed to update rental")
	}
	return c.JSON(http.StatusOK, toRentalResponse(*rt, nil))
}

func parseDates(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, strings.TrimSpace(startStr))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("startDate must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(endStr))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("endDate must be YYYY-MM-DD")
	}
	return start, end, nil
}

func toRentalResponses(list []service.RentalWithItem) []RentalResponse {
	out := make([]RentalResponse, 0, len(list))
	for _, rw := range list {
		out = append(out, toRentalResponse(rw.Rental, rw.Item))
	}
	return out
}

func toRentalResponse(rt model.RentalTransaction, item *model.Item) RentalResponse {
	resp := RentalResponse{
		ID:             rt.ID,
		ItemID:         rt.ItemID,
		RenterUID:      rt.RenterUID,
		OwnerUID:       rt.OwnerUID,
		StartDate:      rt.StartDate.Format(dateLayout),
		EndDate:        rt.EndDate.Format(dateLayout),
		Days:           rt.Days,
		Quantity:       rt.Quantity,
		TotalCost:      rt.TotalCost,
		Status:         string(rt.Status),
		ProofOfDeposit: rt.ProofOfDeposit,
		PaymentMethod:  rt.PaymentMethod,
		DeliveryMethod: rt.DeliveryMethod,
		CreatedAt:      rt.CreatedAt.Format(time.RFC3339),
	}
	if item != nil {
		ir := toItemResponse(item)
		resp.Item = &ir
	}
	return resp
}
