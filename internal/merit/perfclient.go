package merit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/models"
)

// PerformanceClient fetches reviews from the performance service over its
// point-to-point HTTP contract.
type PerformanceClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewPerformanceClient creates a client for the performance service.
func NewPerformanceClient(baseURL string) *PerformanceClient {
	return &PerformanceClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ReviewsForCycle returns every review submitted in the cycle.
func (c *PerformanceClient) ReviewsForCycle(ctx context.Context, cycleID string) ([]models.Review, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/cycles/%s/reviews", c.BaseURL, cycleID), nil)
	if err != nil {
		return nil, apperrors.Internalf(err, "reviews request")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, apperrors.Internalf(err, "reviews call")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var reviews []models.Review
		if err := json.NewDecoder(resp.Body).Decode(&reviews); err != nil {
			return nil, apperrors.Internalf(err, "reviews decode")
		}
		return reviews, nil
	case http.StatusNotFound:
		return nil, apperrors.NotFoundf("cycle %s not found", cycleID)
	default:
		return nil, apperrors.Internalf(nil, "reviews call returned status %d", resp.StatusCode)
	}
}
