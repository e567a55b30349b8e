package client

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sanisideup/fxrates/pkg/models"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// FetchRate retrieves the retail rate for a currency pair.
// It makes exactly one request; failures are returned as *NetworkError,
// *RemoteServiceError or *InvalidResponseError.
func (c *Client) FetchRate(ctx context.Context, query models.RateQuery) (*models.RateResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Err: err}
		}
	}

	requestID := uuid.NewString()
	start := time.Now()

	resp, err := c.HTTPClient.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID).
		SetQueryParams(map[string]string{
			"sellCurrency": query.SellCurrency,
			"buyCurrency":  query.BuyCurrency,
		}).
		Get(RatePath)

	if err != nil {
		c.logger.Debug("rate request failed",
			zap.String("request_id", requestID),
			zap.String("pair", query.Pair()),
			zap.Error(err))
		return nil, &NetworkError{Err: err}
	}

	c.logger.Debug("rate response",
		zap.String("request_id", requestID),
		zap.String("pair", query.Pair()),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)))

	if !resp.IsSuccess() {
		return nil, parseRemoteError(resp.StatusCode(), resp.Body())
	}

	return parseRate(resp.Body())
}

// parseRate validates a success body and extracts the rate and its provenance
func parseRate(body []byte) (*models.RateResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, &InvalidResponseError{Body: string(body)}
	}

	doc := gjson.ParseBytes(body)
	retail := doc.Get("retailRate")
	if retail.Type != gjson.Number {
		return nil, &InvalidResponseError{Body: string(body)}
	}

	value := retail.Float()
	if value <= 0 || math.IsInf(value, 0) || math.IsNaN(value) {
		return nil, &InvalidResponseError{Body: string(body)}
	}

	return &models.RateResult{
		ID:            doc.Get("id").String(),
		SellCurrency:  doc.Get("sellCurrency").String(),
		BuyCurrency:   doc.Get("buyCurrency").String(),
		RetailRate:    value,
		WholesaleRate: doc.Get("wholesaleRate").Float(),
		Indicative:    doc.Get("indicative").Bool(),
		CreatedAt:     doc.Get("createdAt").String(),
		ValidUntil:    doc.Get("validUntil").String(),
	}, nil
}

// parseRemoteError builds a RemoteServiceError from an error body.
// Problem details (title/detail) are preferred; error/message are fallbacks.
func parseRemoteError(statusCode int, body []byte) error {
	remoteErr := &RemoteServiceError{StatusCode: statusCode}
	if !gjson.ValidBytes(body) {
		return remoteErr
	}

	doc := gjson.ParseBytes(body)
	remoteErr.Title = doc.Get("title").String()
	remoteErr.Detail = doc.Get("detail").String()

	if remoteErr.Title == "" && remoteErr.Detail == "" {
		if msg := doc.Get("error"); msg.Type == gjson.String {
			remoteErr.Detail = msg.String()
		} else if msg := doc.Get("message"); msg.Type == gjson.String {
			remoteErr.Detail = msg.String()
		}
	}

	return remoteErr
}
