package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const (
	externalDemoURL     = "https://jsonplaceholder.typicode.com/posts"
	externalAttempts    = 2
	externalRetryWait   = time.Second
	externalCallTimeout = 10 * time.Second
)

var errExternalStatus = errors.New("external API returned an error")

func externalDemo(client *http.Client, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := safeGet(c.Request().Context(), client, externalDemoURL, logger)
		if err != nil {
			if errors.Is(err, errExternalStatus) {
				return c.JSON(http.StatusBadRequest, errorResponse{Detail: "external API returned an error"})
			}
			return c.JSON(http.StatusRequestTimeout, errorResponse{Detail: "failed to reach external API"})
		}
		return c.JSONBlob(http.StatusOK, body)
	}
}

// safeGet fetches url with a per-attempt timeout and one retry on transport
// errors. HTTP error statuses are not retried.
func safeGet(ctx context.Context, client *http.Client, url string, logger *log.Logger) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < externalAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(externalRetryWait):
			}
		}

		body, err := getOnce(ctx, client, url)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, errExternalStatus) {
			return nil, err
		}
		logger.WithError(err).WithFields(log.Fields{"url": url}).Error("external API request failed")
		lastErr = err
	}
	return nil, lastErr
}

func getOnce(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errExternalStatus
	}
	return io.ReadAll(resp.Body)
}
