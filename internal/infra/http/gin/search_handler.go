package ginserver

import (
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"covach/internal/app/search"
	domainlisting "covach/internal/domain/listing"
	"covach/internal/domain/shared/money"
)

type SearchHandler struct {
	Svc *search.Service
}

func (h SearchHandler) Search(c *gin.Context) {
	params := search.Params{}
	params.PropertyType = domainlisting.PropertyType(c.Query("property_type"))
	params.City = c.Query("city")

	if raw := c.Query("guests"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "guests must be a positive integer"})
			return
		}
		params.MinGuests = n
	}
	var ok bool
	if params.PriceMin, ok = parsePrice(c, "min_price"); !ok {
		return
	}
	if params.PriceMax, ok = parsePrice(c, "max_price"); !ok {
		return
	}
	if raw := c.Query("check_in"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "check_in must be YYYY-MM-DD"})
			return
		}
		params.CheckIn = t
	}
	if raw := c.Query("check_out"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "check_out must be YYYY-MM-DD"})
			return
		}
		params.CheckOut = t
	}

	items, err := h.Svc.Search(c.Request.Context(), params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]gin.H, 0, len(items))
	for _, lst := range items {
		out = append(out, gin.H{
			"id":            string(lst.ID),
			"title":         lst.Title,
			"property_type": string(lst.PropertyType),
			"city":          lst.City,
			"country":       lst.Country,
			"nightly_rate":  lst.NightlyRate.String(),
			"max_guests":    lst.MaxGuests,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

// parsePrice reads a whole-dollar query value, reporting the HTTP error
// itself when the input is malformed.
func parsePrice(c *gin.Context, key string) (money.Money, bool) {
	raw := c.Query(key)
	if raw == "" {
		return money.Money{}, true
	}
	dollars, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || dollars < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a non-negative whole dollar amount"})
		return money.Money{}, false
	}
	return money.FromDollars(dollars), true
}

var _ SearchHTTP = SearchHandler{}
