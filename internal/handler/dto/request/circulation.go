package request

import (
	"strings"

	"github.com/google/uuid"
)

type CreateHoldRequest struct {
	ItemID uuid.UUID `json:"item_id" binding:"required"`
}

type ConfirmHoldRequest struct {
	Comment *string `json:"comment,omitempty"`
}

func (r ConfirmHoldRequest) GetComment() string {
	if r.Comment == nil {
		return ""
	}
	return strings.TrimSpace(*r.Comment)
}

type RejectHoldRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ExtendLoanRequest struct {
	Days int `json:"days" binding:"required,min=1"`
}

type FeedbackRequest struct {
	Text   string `json:"text,omitempty"`
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
}

type CreateItemRequest struct {
	Title       string  `json:"title" binding:"required"`
	Author      string  `json:"author" binding:"required"`
	ISBN        *string `json:"isbn,omitempty"`
	TotalCopies int     `json:"total_copies" binding:"required,min=1"`
}

func (r CreateItemRequest) GetISBN() *string {
	if r.ISBN == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*r.ISBN)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
