package client

import (
	"errors"
	"fmt"
)

// InvalidRateMessage is the message of every InvalidResponseError
const InvalidRateMessage = "Invalid exchange rate data received"

// Error kinds reported by ErrorKind
const (
	KindNetwork         = "network"
	KindRemote          = "remote"
	KindInvalidResponse = "invalid_response"
	KindUnknown         = "unknown"
)

// NetworkError means no response was received at all
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RemoteServiceError means the pricing service answered with a non-2xx status
type RemoteServiceError struct {
	StatusCode int
	Title      string
	Detail     string
}

func (e *RemoteServiceError) Error() string {
	switch {
	case e.Title != "" && e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	case e.Title != "":
		return e.Title
	case e.Detail != "":
		return e.Detail
	}
	return fmt.Sprintf("remote service returned HTTP %d", e.StatusCode)
}

// InvalidResponseError means a 2xx response did not carry a usable rate
type InvalidResponseError struct {
	Body string
}

func (e *InvalidResponseError) Error() string {
	return InvalidRateMessage
}

// ErrorKind classifies an error returned by FetchRate
func ErrorKind(err error) string {
	var netErr *NetworkError
	var remoteErr *RemoteServiceError
	var invalidErr *InvalidResponseError

	switch {
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &remoteErr):
		return KindRemote
	case errors.As(err, &invalidErr):
		return KindInvalidResponse
	}
	return KindUnknown
}
