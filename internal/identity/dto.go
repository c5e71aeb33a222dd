package identity

import (
	"github.com/dquispe/reparto-backend/pkg/db/models"
	"github.com/dquispe/reparto-backend/pkg/enums"
	"github.com/dquispe/reparto-backend/pkg/pagination"
)

// CreateEmployeeInput carries the fields an admin provides for staff accounts.
type CreateEmployeeInput struct {
	Name        string
	Email       string
	Password    string
	Role        enums.UserRole
	Distributor *models.DistributorDetail
}

// ClientSignUpInput carries the public self-signup fields. Role is forced to CLIENT.
type ClientSignUpInput struct {
	Name      string
	Email     string
	Password  string
	Address   string
	Cellphone string
	Latitude  float64
	Longitude float64
}

// ClientUpdateInput carries optional profile changes for a client account.
type ClientUpdateInput struct {
	Name      *string
	Email     *string
	Password  *string
	Address   *string
	Cellphone *string
	Latitude  *float64
	Longitude *float64
}

// UserList is a paginated page of accounts.
type UserList struct {
	Items []models.User
	Meta  pagination.Meta
}

// ImportRowError describes why a single CSV row was rejected.
type ImportRowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportedCredential pairs an imported account with its generated password.
type ImportedCredential struct {
	Email        string `json:"email"`
	TempPassword string `json:"tempPassword"`
}

// ImportReport summarizes a bulk distributor import.
type ImportReport struct {
	Imported    int                  `json:"imported"`
	Rejected    []ImportRowError     `json:"rejected"`
	Credentials []ImportedCredential `json:"credentials"`
}
