package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sanisideup/fxrates/pkg/pricing"
	"github.com/sanisideup/fxrates/pkg/refresh"
)

type createViewRequest struct {
	From        string          `json:"from"`
	To          string          `json:"to"`
	Amount      json.RawMessage `json:"amount"`
	Margin      *float64        `json:"margin"`
	RefreshRate *int            `json:"refreshRate"` // milliseconds
	MaxRetries  *int            `json:"maxRetries"`
}

type selectRequest struct {
	Code string `json:"code" binding:"required"`
}

type amountRequest struct {
	Amount json.RawMessage `json:"amount"`
}

type quoteResponse struct {
	Rate       string `json:"rate"`
	OFXRate    string `json:"ofxRate"`
	TrueAmount string `json:"trueAmount"`
	OFXAmount  string `json:"ofxAmount"`
}

type viewResponse struct {
	ID           string        `json:"id"`
	State        refresh.State `json:"state"`
	ExchangeRate *float64      `json:"exchangeRate"`
	IntervalMS   int64         `json:"intervalMs"`
	Quote        quoteResponse `json:"quote"`
}

func newViewResponse(id string, s refresh.State) viewResponse {
	resp := viewResponse{
		ID:         id,
		State:      s,
		IntervalMS: s.Interval.Milliseconds(),
	}
	if s.HasRate() {
		rate := s.ExchangeRate
		resp.ExchangeRate = &rate
	}

	q := s.Quote()
	resp.Quote = quoteResponse{
		Rate:       pricing.FormatRate(q.ExchangeRate),
		OFXRate:    pricing.FormatRate(q.OFXRate),
		TrueAmount: q.TrueAmountText(),
		OFXAmount:  q.OFXAmountText(),
	}
	return resp
}

func errorResponse(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"views":  s.views.Len(),
	})
}

func (s *Server) handleListCountries(c *gin.Context) {
	c.JSON(http.StatusOK, s.countries.ListCountries())
}

func (s *Server) handleCreateView(c *gin.Context) {
	var req createViewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	opts := s.baseOptions()
	if req.From != "" {
		if !s.countries.Has(req.From) {
			errorResponse(c, http.StatusBadRequest, "unknown country: "+req.From)
			return
		}
		opts.DefaultFrom = req.From
	}
	if req.To != "" {
		if !s.countries.Has(req.To) {
			errorResponse(c, http.StatusBadRequest, "unknown country: "+req.To)
			return
		}
		opts.DefaultTo = req.To
	}
	if len(req.Amount) > 0 {
		opts.Amount = parseAmountJSON(req.Amount)
	}
	if req.Margin != nil {
		opts.Margin = *req.Margin
	}
	if req.RefreshRate != nil {
		if *req.RefreshRate <= 0 {
			errorResponse(c, http.StatusBadRequest, "refreshRate must be positive")
			return
		}
		opts.RefreshRate = time.Duration(*req.RefreshRate) * time.Millisecond
	}
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			errorResponse(c, http.StatusBadRequest, "maxRetries must not be negative")
			return
		}
		opts.MaxRetries = *req.MaxRetries
	}

	id, ctrl := s.views.Open(opts)
	c.JSON(http.StatusCreated, newViewResponse(id, ctrl.Snapshot()))
}

func (s *Server) handleGetView(c *gin.Context) {
	ctrl, ok := s.lookupView(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newViewResponse(c.Param("id"), ctrl.Snapshot()))
}

func (s *Server) handleSelectFrom(c *gin.Context) {
	s.handleSelect(c, (*refresh.Controller).SelectFrom)
}

func (s *Server) handleSelectTo(c *gin.Context) {
	s.handleSelect(c, (*refresh.Controller).SelectTo)
}

func (s *Server) handleSelect(c *gin.Context, apply func(*refresh.Controller, string)) {
	ctrl, ok := s.lookupView(c)
	if !ok {
		return
	}

	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "code is required")
		return
	}
	if !s.countries.Has(req.Code) {
		errorResponse(c, http.StatusBadRequest, "unknown country: "+req.Code)
		return
	}

	apply(ctrl, req.Code)
	c.JSON(http.StatusOK, newViewResponse(c.Param("id"), ctrl.Snapshot()))
}

func (s *Server) handleSetAmount(c *gin.Context) {
	ctrl, ok := s.lookupView(c)
	if !ok {
		return
	}

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctrl.SetAmount(parseAmountJSON(req.Amount))
	c.JSON(http.StatusOK, newViewResponse(c.Param("id"), ctrl.Snapshot()))
}

func (s *Server) handleRetry(c *gin.Context) {
	ctrl, ok := s.lookupView(c)
	if !ok {
		return
	}

	ctrl.ManualRetry()
	c.JSON(http.StatusOK, newViewResponse(c.Param("id"), ctrl.Snapshot()))
}

func (s *Server) handleDeleteView(c *gin.Context) {
	if !s.views.Remove(c.Param("id")) {
		errorResponse(c, http.StatusNotFound, "view not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) lookupView(c *gin.Context) (*refresh.Controller, bool) {
	ctrl, ok := s.views.Get(c.Param("id"))
	if !ok {
		errorResponse(c, http.StatusNotFound, "view not found")
		return nil, false
	}
	return ctrl, true
}

func (s *Server) baseOptions() refresh.Options {
	opts := refresh.DefaultOptions()
	opts.RefreshRate = s.cfg.RefreshRate()
	opts.MaxRetries = s.cfg.MaxRetries
	opts.Margin = s.cfg.Margin
	opts.BackoffFactor = s.cfg.BackoffFactor
	opts.MaxBackoff = s.cfg.MaxBackoff()
	opts.FrameInterval = s.cfg.FrameInterval()
	opts.DefaultFrom = s.cfg.DefaultFrom
	opts.DefaultTo = s.cfg.DefaultTo
	opts.Countries = s.countries
	return opts
}

// parseAmountJSON accepts a JSON number or string; anything else is 0
func parseAmountJSON(raw json.RawMessage) float64 {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return refresh.ParseAmount(strings.TrimSpace(text))
	}
	return 0
}
