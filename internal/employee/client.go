package employee

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
)

// Client is the point-to-point "does employee X exist" call other services
// make before creating dependent state. Not-found is a distinct outcome, not
// an error.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the employee service.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Exists reports whether the employee record exists.
func (c *Client) Exists(ctx context.Context, employeeID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/employees/%s", c.BaseURL, employeeID), nil)
	if err != nil {
		return false, apperrors.Internalf(err, "employee lookup request")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, apperrors.Internalf(err, "employee lookup call")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, apperrors.Internalf(nil, "employee lookup returned status %d", resp.StatusCode)
	}
}
