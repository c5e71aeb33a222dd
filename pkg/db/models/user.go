package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dquispe/reparto-backend/pkg/enums"
)

// Coordinates is the delivery location attached to a client profile.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ClientDetail is the profile snapshot stored for CLIENT accounts.
type ClientDetail struct {
	Address     string      `json:"address"`
	Cellphone   string      `json:"cellphone"`
	Coordinates Coordinates `json:"coordinates"`
}

// DistributorDetail is the profile snapshot stored for DISTRIBUTOR accounts.
type DistributorDetail struct {
	Capacity    int    `json:"capacity"`
	TypeVehicle string `json:"type_vehicle"`
	Cellphone   string `json:"cellphone"`
}

// User represents the canonical identity entity for every role.
type User struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string             `gorm:"column:name;not null"`
	Email             string             `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash      string             `gorm:"column:password_hash;not null"`
	Role              enums.UserRole     `gorm:"column:role;type:text;not null"`
	IsActive          bool               `gorm:"column:is_active;not null"`
	ClientDetail      *ClientDetail      `gorm:"column:client_detail;type:jsonb;serializer:json"`
	DistributorDetail *DistributorDetail `gorm:"column:distributor_detail;type:jsonb;serializer:json"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
