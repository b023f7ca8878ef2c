package main

import (
	"time"

	"github.com/shopspring/decimal"

	"claimflow/auth"
	"claimflow/claim"
	"claimflow/document"
	"claimflow/lecturer"
)

type historyResponse struct {
	ID           string `json:"id"`
	OldStatus    string `json:"oldStatus"`
	NewStatus    string `json:"newStatus"`
	StatusChange string `json:"statusChange"`
	ChangedByID  string `json:"changedById,omitempty"`
	ChangedBy    string `json:"changedBy"`
	Notes        string `json:"notes,omitempty"`
	ChangedAt    string `json:"changedAt"`
	TimeAgo      string `json:"timeAgo"`
}

type documentResponse struct {
	ID            string `json:"id"`
	ClaimID       string `json:"claimId"`
	OriginalName  string `json:"originalName"`
	Size          int64  `json:"size"`
	SizeFormatted string `json:"sizeFormatted"`
	ContentType   string `json:"contentType"`
	Icon          string `json:"icon"`
	IsImage       bool   `json:"isImage"`
	Description   string `json:"description,omitempty"`
	UploadedAt    string `json:"uploadedAt"`
}

type claimResponse struct {
	ID                   string             `json:"id"`
	LecturerID           string             `json:"lecturerId"`
	LecturerName         string             `json:"lecturerName"`
	Department           string             `json:"department,omitempty"`
	Period               string             `json:"period"`
	FormattedPeriod      string             `json:"formattedPeriod"`
	HoursWorked          decimal.Decimal    `json:"hoursWorked"`
	HourlyRate           decimal.Decimal    `json:"hourlyRate"`
	TotalAmount          decimal.Decimal    `json:"totalAmount"`
	Status               string             `json:"status"`
	StatusBadgeClass     string             `json:"statusBadgeClass"`
	AdditionalNotes      string             `json:"additionalNotes,omitempty"`
	SubmittedAt          string             `json:"submittedAt"`
	LastStatusUpdate     *string            `json:"lastStatusUpdate"`
	ReviewedBy           string             `json:"reviewedBy,omitempty"`
	ReviewNotes          string             `json:"reviewNotes,omitempty"`
	ApprovalDate         *string            `json:"approvalDate"`
	ApprovedBy           string             `json:"approvedBy,omitempty"`
	ApprovalNotes        string             `json:"approvalNotes,omitempty"`
	ProcessingDays       *float64           `json:"processingDays"`
	StoredProcessingDays *int               `json:"storedProcessingDays"`
	Version              int                `json:"version"`
	History              []historyResponse  `json:"history"`
	Documents            []documentResponse `json:"documents,omitempty"`
}

type transitionResponse struct {
	Claim     claimResponse `json:"claim"`
	Redundant bool          `json:"redundant"`
}

type bulkOutcomeResponse struct {
	ClaimID   string `json:"claimId"`
	Status    string `json:"status,omitempty"`
	Redundant bool   `json:"redundant"`
	Error     string `json:"error,omitempty"`
}

type summaryResponse struct {
	Counts         map[string]int  `json:"counts"`
	Total          int             `json:"total"`
	ApprovedSince  string          `json:"approvedSince"`
	ApprovedCount  int             `json:"approvedCount"`
	ApprovedAmount decimal.Decimal `json:"approvedAmount"`
}

type userResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	EmployeeID string `json:"employeeId,omitempty"`
	Department string `json:"department,omitempty"`
	Role       string `json:"role"`
	IsActive   bool   `json:"isActive"`
	DateJoined string `json:"dateJoined"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
	User      userResponse `json:"user"`
}

type lecturerResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	EmployeeID string `json:"employeeId,omitempty"`
	Department string `json:"department,omitempty"`
	IsActive   bool   `json:"isActive"`
	DateJoined string `json:"dateJoined"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func newClaimResponse(c *claim.Claim, now time.Time) claimResponse {
	resp := claimResponse{
		ID:                   c.ID,
		LecturerID:           c.LecturerID,
		LecturerName:         c.Lecturer.FullName(),
		Department:           c.Lecturer.Department,
		Period:               c.Period.Key(),
		FormattedPeriod:      c.FormattedPeriod(),
		HoursWorked:          c.HoursWorked(),
		HourlyRate:           c.HourlyRate(),
		TotalAmount:          c.TotalAmount(),
		Status:               string(c.Status()),
		StatusBadgeClass:     c.StatusBadgeClass(),
		AdditionalNotes:      c.AdditionalNotes,
		SubmittedAt:          formatTime(c.SubmittedAt),
		LastStatusUpdate:     formatTimePtr(c.LastStatusUpdate()),
		ReviewedBy:           c.ReviewedBy(),
		ReviewNotes:          c.ReviewNotes(),
		ApprovalDate:         formatTimePtr(c.ApprovalDate()),
		ApprovedBy:           c.ApprovedBy(),
		ApprovalNotes:        c.ApprovalNotes(),
		StoredProcessingDays: c.StoredProcessingDays(),
		Version:              c.Version,
	}
	if days, ok := c.ProcessingDays(); ok {
		resp.ProcessingDays = &days
	}

	hist := c.History()
	resp.History = make([]historyResponse, 0, len(hist))
	for _, h := range hist {
		resp.History = append(resp.History, historyResponse{
			ID:           h.ID,
			OldStatus:    string(h.OldStatus),
			NewStatus:    string(h.NewStatus),
			StatusChange: h.StatusChange(),
			ChangedByID:  h.ChangedByID,
			ChangedBy:    h.ChangedBy,
			Notes:        h.Notes,
			ChangedAt:    formatTime(h.ChangedAt),
			TimeAgo:      h.TimeAgo(now),
		})
	}
	for _, d := range c.Documents {
		resp.Documents = append(resp.Documents, newDocumentResponse(d))
	}
	return resp
}

func newDocumentResponse(d document.Document) documentResponse {
	return documentResponse{
		ID:            d.ID,
		ClaimID:       d.ClaimID,
		OriginalName:  d.OriginalName,
		Size:          d.Size,
		SizeFormatted: d.SizeFormatted(),
		ContentType:   d.ContentType,
		Icon:          d.Icon(),
		IsImage:       d.IsImage(),
		Description:   d.Description,
		UploadedAt:    formatTime(d.UploadedAt),
	}
}

func newSummaryResponse(s claim.Summary) summaryResponse {
	counts := make(map[string]int, len(s.Counts))
	for st, n := range s.Counts {
		counts[string(st)] = n
	}
	return summaryResponse{
		Counts:         counts,
		Total:          s.Total,
		ApprovedSince:  formatTime(s.ApprovedSince),
		ApprovedCount:  s.ApprovedCount,
		ApprovedAmount: s.ApprovedAmount,
	}
}

func newUserResponse(u auth.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		EmployeeID: u.EmployeeID,
		Department: u.Department,
		Role:       string(u.Role),
		IsActive:   u.IsActive,
		DateJoined: formatTime(u.DateJoined),
	}
}

func newLecturerResponse(p lecturer.Profile) lecturerResponse {
	return lecturerResponse{
		ID:         p.ID,
		Email:      p.Email,
		FullName:   p.FullName(),
		EmployeeID: p.EmployeeID,
		Department: p.Department,
		IsActive:   p.IsActive,
		DateJoined: formatTime(p.DateJoined),
	}
}
