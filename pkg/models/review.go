package models

import "time"

// Review is a performance review inside a review cycle, owned by the
// performance service.
type Review struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"_schemaVersion"`
	CycleID       string    `json:"cycle_id"`
	EmployeeID    string    `json:"employee_id"`
	Rating        int       `json:"rating"`
	Comments      string    `json:"comments,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// SubmitReviewRequest is the request body for submitting a review.
type SubmitReviewRequest struct {
	CycleID    string `json:"cycle_id" binding:"required"`
	EmployeeID string `json:"employee_id" binding:"required"`
	Rating     int    `json:"rating" binding:"required"`
	Comments   string `json:"comments,omitempty"`
}
