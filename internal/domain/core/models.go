package core

import (
	"errors"
	"time"
)

var ErrEmployeeNotFound = errors.New("employee not found")

const (
	EmployeeStatusActive   = "active"
	EmployeeStatusInactive = "inactive"
)

type Employee struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId,omitempty"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email,omitempty"`
	JobTitle       string    `json:"jobTitle"`
	DepartmentID   string    `json:"departmentId"`
	DepartmentName string    `json:"departmentName"`
	ManagerID      string    `json:"managerId"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (e Employee) DisplayName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}
