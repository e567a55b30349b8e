package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sanisideup/fxrates/pkg/config"
	"github.com/sanisideup/fxrates/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(&config.Config{
		APIBaseURL:       srv.URL,
		RequestTimeoutMS: 2000,
		UserAgent:        "fxrates-test",
	})
}

func TestFetchRate_Success(t *testing.T) {
	var gotPath, gotSell, gotBuy, gotRequestID, gotAccept string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSell = r.URL.Query().Get("sellCurrency")
		gotBuy = r.URL.Query().Get("buyCurrency")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotAccept = r.Header.Get("Accept")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"q-1","sellCurrency":"AUD","buyCurrency":"USD","retailRate":0.6543,"wholesaleRate":0.655,"indicative":true,"createdAt":"2024-01-01T00:00:00Z","validUntil":"2024-01-01T00:01:00Z"}`))
	})

	result, err := c.FetchRate(context.Background(), models.RateQuery{SellCurrency: "AUD", BuyCurrency: "USD"})
	require.NoError(t, err)

	assert.Equal(t, RatePath, gotPath)
	assert.Equal(t, "AUD", gotSell)
	assert.Equal(t, "USD", gotBuy)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "application/json", gotAccept)

	assert.Equal(t, 0.6543, result.RetailRate)
	assert.Equal(t, "q-1", result.ID)
	assert.Equal(t, 0.655, result.WholesaleRate)
	assert.True(t, result.Indicative)
	assert.Equal(t, "2024-01-01T00:01:00Z", result.ValidUntil)
}

func TestFetchRate_InvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing rate", `{"id":"q-1"}`},
		{"zero rate", `{"retailRate":0}`},
		{"negative rate", `{"retailRate":-1.2}`},
		{"string rate", `{"retailRate":"0.65"}`},
		{"null rate", `{"retailRate":null}`},
		{"not json", `<html>oops</html>`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.FetchRate(context.Background(), models.RateQuery{SellCurrency: "AUD", BuyCurrency: "USD"})
			require.Error(t, err)

			var invalidErr *InvalidResponseError
			require.True(t, errors.As(err, &invalidErr), "got %T", err)
			assert.Equal(t, InvalidRateMessage, err.Error())
			assert.Equal(t, KindInvalidResponse, ErrorKind(err))
		})
	}
}

func TestFetchRate_RemoteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"problem details", http.StatusBadRequest, `{"title":"Bad Request","detail":"Unsupported currency"}`, "Bad Request: Unsupported currency"},
		{"title only", http.StatusNotFound, `{"title":"Not Found"}`, "Not Found"},
		{"error field", http.StatusInternalServerError, `{"error":"API error"}`, "API error"},
		{"message field", http.StatusBadGateway, `{"message":"upstream down"}`, "upstream down"},
		{"no body", http.StatusServiceUnavailable, ``, "remote service returned HTTP 503"},
		{"non json body", http.StatusInternalServerError, `boom`, "remote service returned HTTP 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.FetchRate(context.Background(), models.RateQuery{SellCurrency: "AUD", BuyCurrency: "USD"})
			require.Error(t, err)

			var remoteErr *RemoteServiceError
			require.True(t, errors.As(err, &remoteErr), "got %T", err)
			assert.Equal(t, tt.status, remoteErr.StatusCode)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, KindRemote, ErrorKind(err))
		})
	}
}

func TestFetchRate_SingleAttempt(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.FetchRate(context.Background(), models.RateQuery{SellCurrency: "AUD", BuyCurrency: "USD"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFetchRate_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(&config.Config{APIBaseURL: srv.URL, RequestTimeoutMS: 1000})

	_, err := c.FetchRate(context.Background(), models.RateQuery{SellCurrency: "AUD", BuyCurrency: "USD"})
	require.Error(t, err)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "got %T", err)
	assert.Equal(t, KindNetwork, ErrorKind(err))
}

func TestFetchRate_Cancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retailRate":1}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchRate(ctx, models.RateQuery{SellCurrency: "AUD", BuyCurrency: "USD"})
	require.Error(t, err)
	assert.Equal(t, KindNetwork, ErrorKind(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchRate_LimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retailRate":1}`))
	}))
	t.Cleanup(srv.Close)

	c := New(&config.Config{
		APIBaseURL:        srv.URL,
		RequestTimeoutMS:  1000,
		RequestsPerSecond: 0.001,
		RequestBurst:      1,
	})
	require.NotNil(t, c.limiter)

	// The first request consumes the only token
	_, err := c.FetchRate(context.Background(), models.RateQuery{SellCurrency: "AUD", BuyCurrency: "USD"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.FetchRate(ctx, models.RateQuery{SellCurrency: "AUD", BuyCurrency: "USD"})
	require.Error(t, err)
	assert.Equal(t, KindNetwork, ErrorKind(err))
}

func TestSetTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`{"retailRate":1}`))
	})
	c.SetTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := c.FetchRate(context.Background(), models.RateQuery{SellCurrency: "AUD", BuyCurrency: "USD"})
	require.Error(t, err)
	assert.Equal(t, KindNetwork, ErrorKind(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, KindUnknown, ErrorKind(errors.New("plain")))
	assert.Equal(t, KindNetwork, ErrorKind(&NetworkError{Err: errors.New("dial")}))
	assert.Equal(t, "network error: dial", (&NetworkError{Err: errors.New("dial")}).Error())
}
