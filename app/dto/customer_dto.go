package dto

import (
	"time"

	"github.com/revlyhq/revly-backend/models"
)

// CustomerDTO is one customer in API responses, feedback included
type CustomerDTO struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Phone    string             `json:"phone,omitempty"`
	Status   string             `json:"status"`
	AddedAt  time.Time          `json:"added_at"`
	Feedback []FeedbackEntryDTO `json:"feedback"`
}

// ToCustomerDTO converts a customer model to its API shape
func ToCustomerDTO(customer *models.Customer) CustomerDTO {
	feedback := make([]FeedbackEntryDTO, 0, len(customer.Feedback))
	for _, entry := range customer.Feedback {
		feedback = append(feedback, ToFeedbackEntryDTO(entry))
	}
	return CustomerDTO{
		ID:       customer.ID,
		Name:     customer.Name,
		Phone:    customer.Phone,
		Status:   string(customer.Status),
		AddedAt:  customer.AddedAt,
		Feedback: feedback,
	}
}

// SendReviewRequestsRequest queues review requests for a set of customers
type SendReviewRequestsRequest struct {
	CustomerIDs []string `json:"customer_ids" validate:"required,min=1,max=10000,dive,required,max=64"`
}

// ActivityLogDTO is one audit record in API responses
type ActivityLogDTO struct {
	ID           uint      `json:"id"`
	CustomerID   *string   `json:"customer_id,omitempty"`
	CustomerName string    `json:"customer_name,omitempty"`
	Action       string    `json:"action"`
	Description  *string   `json:"description,omitempty"`
	CustomerIDs  []string  `json:"customer_ids,omitempty"`
	Success      *bool     `json:"success,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToActivityLogDTO converts an activity log model to its API shape
func ToActivityLogDTO(entry *models.ActivityLog) ActivityLogDTO {
	return ActivityLogDTO{
		ID:           entry.ID,
		CustomerID:   entry.CustomerID,
		CustomerName: entry.CustomerName,
		Action:       entry.Action,
		Description:  entry.Description,
		CustomerIDs:  entry.CustomerIDs,
		Success:      entry.Success,
		ErrorMessage: entry.ErrorMessage,
		CreatedAt:    entry.CreatedAt,
	}
}
