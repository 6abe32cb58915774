package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"exchangelink/internal/connection"
	"exchangelink/internal/errs"
)

type handlers struct {
	svc ConnectionService
}

func (h *handlers) create(c *gin.Context) {
	var in connection.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, errs.Validation("invalid request body: %v", err))
		return
	}
	in.UserID = c.GetString(keyUserID)
	in.TenantID = c.GetString(keyTenantID)

	cfg, err := h.svc.CreateConnection(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

func (h *handlers) list(c *gin.Context) {
	list, err := h.svc.ListConnections(c.Request.Context(), c.GetString(keyUserID), c.GetString(keyTenantID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": list})
}

func (h *handlers) summary(c *gin.Context) {
	summary, err := h.svc.GetConnectionSummary(c.Request.Context(), refFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handlers) disable(c *gin.Context) {
	if err := h.svc.DisableConnection(c.Request.Context(), refFrom(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) status(c *gin.Context) {
	report, err := h.svc.GetConnectionStatus(c.Request.Context(), refFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handlers) test(c *gin.Context) {
	res, err := h.svc.TestConnection(c.Request.Context(), refFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) balances(c *gin.Context) {
	balances, err := h.svc.FetchBalances(c.Request.Context(), refFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

func (h *handlers) ticker(c *gin.Context) {
	ticker, err := h.svc.FetchTicker(c.Request.Context(), refFrom(c), c.Query("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticker)
}

func (h *handlers) orderBook(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	book, err := h.svc.FetchOrderBook(c.Request.Context(), refFrom(c), c.Query("symbol"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *handlers) trades(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	trades, err := h.svc.FetchTrades(c.Request.Context(), refFrom(c), c.Query("symbol"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (h *handlers) ohlcv(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	candles, err := h.svc.FetchOHLCV(c.Request.Context(), refFrom(c), c.Query("symbol"), c.Query("timeframe"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candles": candles})
}

func (h *handlers) markets(c *gin.Context) {
	markets, err := h.svc.ListMarkets(c.Request.Context(), refFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markets": markets})
}

// market takes the symbol as BASE-QUOTE or BASE_QUOTE since a slash cannot
// appear in a path segment.
func (h *handlers) market(c *gin.Context) {
	symbol := strings.NewReplacer("-", "/", "_", "/").Replace(c.Param("symbol"))
	market, err := h.svc.GetMarket(c.Request.Context(), refFrom(c), symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, market)
}

// queryLimit parses the optional limit parameter. It writes the error
// response itself and reports false on bad input.
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		writeError(c, errs.Validation("limit must be an integer"))
		return 0, false
	}
	return limit, true
}
