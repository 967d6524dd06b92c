package domain

import (
	"time"

	"github.com/google/uuid"
)

type EmployeeStatus string

const (
	StatusPending  EmployeeStatus = "pending"
	StatusApproved EmployeeStatus = "approved"
	StatusDeclined EmployeeStatus = "declined"
)

type Employee struct {
	ID              string         `json:"id"`
	FirstName       string         `json:"first_name"`
	LastName        string         `json:"last_name"`
	PhotoURL        string         `json:"photo_url"`
	PhotoPublicID   string         `json:"photo_public_id"`
	ResumeURL       string         `json:"resume_url"`
	ResumePublicID  string         `json:"resume_public_id"`
	UploadedBy      uuid.UUID      `json:"-"`
	UploadedByEmail string         `json:"uploaded_by"`
	CheckedBy       *uuid.UUID     `json:"-"`
	CheckedByEmail  *string        `json:"checked_by"`
	Status          EmployeeStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Version         int32          `json:"-"`
}

func NewEmployee(firstName, lastName string, uploader *Account) *Employee {
	now := time.Now()
	return &Employee{
		ID:              uuid.NewString(),
		FirstName:       firstName,
		LastName:        lastName,
		UploadedBy:      uploader.ID,
		UploadedByEmail: uploader.Email,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Review 将 pending 状态的记录转为 approved 或 declined，并记录审核人
func (e *Employee) Review(checker *Account, status EmployeeStatus) error {
	if status != StatusApproved && status != StatusDeclined {
		return Wrap(KindValidation, "status must be approved or declined", nil)
	}
	if e.Status != StatusPending {
		return ErrStatusFinalized
	}

	e.Status = status
	e.CheckedBy = &checker.ID
	e.CheckedByEmail = &checker.Email
	e.UpdatedAt = time.Now()
	return nil
}
