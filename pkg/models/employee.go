package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/lifecycle"
)

// Employee is the primary record owned by the employee service. Other
// services read it through the state store but never write it.
type Employee struct {
	ID             string                   `json:"id"`
	SchemaVersion  int                      `json:"_schemaVersion"`
	EmployeeNumber string                   `json:"employee_number"`
	Email          string                   `json:"email"`
	FirstName      string                   `json:"first_name"`
	LastName       string                   `json:"last_name"`
	DepartmentID   string                   `json:"department_id"`
	Salary         decimal.Decimal          `json:"salary"`
	Status         lifecycle.EmployeeStatus `json:"status"`
	HireDate       time.Time                `json:"hire_date"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// EmailIndex maps an email to its employee id. It is written atomically with
// the employee record and retained after termination to block address reuse.
type EmailIndex struct {
	Email      string    `json:"email"`
	EmployeeID string    `json:"employee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateEmployeeRequest is the request body for creating an employee.
type CreateEmployeeRequest struct {
	Email        string `json:"email" binding:"required,email"`
	FirstName    string `json:"first_name" binding:"required"`
	LastName     string `json:"last_name" binding:"required"`
	DepartmentID string `json:"department_id" binding:"required"`
	Salary       string `json:"salary" binding:"required"`
	HireDate     string `json:"hire_date" binding:"required"`
}

// UpdateEmployeeRequest is the request body for updating an employee.
type UpdateEmployeeRequest struct {
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
	Salary       string `json:"salary,omitempty"`
}
