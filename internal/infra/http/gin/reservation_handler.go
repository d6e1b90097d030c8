package ginserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"covach/internal/app/ledger"
	domainlisting "covach/internal/domain/listing"
	domainreservation "covach/internal/domain/reservation"
)

const dateLayout = "2006-01-02"

// ReservationHandler maps ledger operations onto HTTP. Rule violations come
// back as 422 with the reason code, so clients can show the message and let
// the user retry.
type ReservationHandler struct {
	Ledger *ledger.Service
}

type createReservationRequest struct {
	ListingID string `json:"listing_id" binding:"required"`
	CheckIn   string `json:"check_in" binding:"required"`
	CheckOut  string `json:"check_out" binding:"required"`
	Guests    int    `json:"guests" binding:"required"`
	Message   string `json:"message"`
}

func (h ReservationHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	checkIn, err := time.Parse(dateLayout, req.CheckIn)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "check_in must be YYYY-MM-DD"})
		return
	}
	checkOut, err := time.Parse(dateLayout, req.CheckOut)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "check_out must be YYYY-MM-DD"})
		return
	}
	res, err := h.Ledger.CreateRequest(c.Request.Context(), ledger.CreateRequestParams{
		GuestID:   actor,
		ListingID: domainlisting.ListingID(req.ListingID),
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Guests:    req.Guests,
		Message:   req.Message,
	})
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservationResponse(res))
}

func (h ReservationHandler) Approve(c *gin.Context) {
	h.transition(c, h.Ledger.ApproveRequest)
}

func (h ReservationHandler) Decline(c *gin.Context) {
	h.transition(c, h.Ledger.DeclineRequest)
}

func (h ReservationHandler) Cancel(c *gin.Context) {
	h.transition(c, h.Ledger.CancelReservation)
}

func (h ReservationHandler) List(c *gin.Context) {
	filter := domainreservation.ListFilter{
		HostID:    c.Query("host"),
		GuestID:   c.Query("guest"),
		ListingID: domainlisting.ListingID(c.Query("listing")),
		Status:    domainreservation.Status(c.Query("status")),
	}
	items, err := h.Ledger.Reservations(c.Request.Context(), filter)
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	out := make([]gin.H, 0, len(items))
	for _, res := range items {
		out = append(out, reservationResponse(res))
	}
	c.JSON(http.StatusOK, gin.H{"reservations": out})
}

func (h ReservationHandler) Get(c *gin.Context) {
	res, err := h.Ledger.Reservation(c.Request.Context(), domainreservation.ReservationID(c.Param("id")))
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservationResponse(res))
}

func (h ReservationHandler) Events(c *gin.Context) {
	entries, err := h.Ledger.AuditTrail(c.Request.Context(), domainreservation.ReservationID(c.Param("id")))
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		out = append(out, gin.H{
			"id":         entry.ID,
			"actor_id":   entry.ActorID,
			"type":       entry.Type,
			"message":    entry.Message,
			"metadata":   entry.Metadata,
			"created_at": entry.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (h ReservationHandler) transition(c *gin.Context, op func(ctx context.Context, id domainreservation.ReservationID, actor string) (*domainreservation.Reservation, error)) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	res, err := op(c.Request.Context(), domainreservation.ReservationID(c.Param("id")), actor)
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservationResponse(res))
}

func requireActor(c *gin.Context) (string, bool) {
	actor := c.GetHeader("X-Actor-ID")
	if actor == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-Actor-ID header required"})
		return "", false
	}
	return actor, true
}

func writeLedgerError(c *gin.Context, err error) {
	var rule *ledger.RuleViolation
	if errors.As(err, &rule) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rule.Message, "reason": string(rule.Reason)})
		return
	}
	if errors.Is(err, domainreservation.ErrNotFound) || errors.Is(err, domainlisting.ErrListingNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func reservationResponse(res *domainreservation.Reservation) gin.H {
	return gin.H{
		"id":                   string(res.ID),
		"listing_id":           string(res.ListingID),
		"guest_id":             res.GuestID,
		"host_id":              res.HostID,
		"check_in":             res.Range.CheckIn.Format(dateLayout),
		"check_out":            res.Range.CheckOut.Format(dateLayout),
		"guests":               res.Guests,
		"total_usd":            res.Total.String(),
		"status":               string(res.Status),
		"cancellation_fee_usd": res.CancellationFee.String(),
		"expires_at":           res.ExpiresAt,
		"created_at":           res.CreatedAt,
		"updated_at":           res.UpdatedAt,
	}
}

var _ ReservationHTTP = ReservationHandler{}
