package identity

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dquispe/reparto-backend/pkg/db/models"
	"github.com/dquispe/reparto-backend/pkg/enums"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
	"github.com/dquispe/reparto-backend/pkg/security"
)

const (
	importTempPasswordLen = 12
	importMaxRows         = 1000
)

var importHeader = []string{"name", "email", "capacity", "type_vehicle", "cellphone"}

// ImportDistributorsInput wraps the uploaded CSV stream.
type ImportDistributorsInput struct {
	Reader io.Reader
}

// ImportDistributors parses a CSV of distributor accounts and inserts the
// valid rows. Invalid rows are reported per line and never abort the batch.
// Each imported account receives a generated temporary password, returned in
// the report so the operator can hand out credentials.
func (s *service) ImportDistributors(ctx context.Context, input ImportDistributorsInput) (*ImportReport, error) {
	if input.Reader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "csv body required")
	}

	reader := csv.NewReader(input.Reader)
	reader.FieldsPerRecord = len(importHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read csv header")
	}
	if err := validateImportHeader(header); err != nil {
		return nil, err
	}

	report := &ImportReport{Rejected: []ImportRowError{}, Credentials: []ImportedCredential{}}
	seen := map[string]bool{}
	var pending []models.User

	for line := 2; ; line++ {
		if line-1 > importMaxRows {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "csv exceeds row limit").
				WithDetails(map[string]any{"max_rows": importMaxRows})
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.Rejected = append(report.Rejected, ImportRowError{Line: line, Reason: "malformed row"})
			continue
		}

		row, reason := parseImportRow(record)
		if reason == "" && seen[row.email] {
			reason = "duplicate email in file"
		}
		if reason == "" {
			if err := s.ensureEmailFree(ctx, row.email); err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
					reason = "email already in use"
				} else {
					return nil, err
				}
			}
		}
		if reason != "" {
			report.Rejected = append(report.Rejected, ImportRowError{Line: line, Reason: reason})
			continue
		}

		tempPassword, err := security.GenerateTempPassword(importTempPasswordLen)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate temp password")
		}
		hash, err := security.HashPassword(tempPassword, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash temp password")
		}

		seen[row.email] = true
		pending = append(pending, models.User{
			Name:         row.name,
			Email:        row.email,
			PasswordHash: hash,
			Role:         enums.UserRoleDistributor,
			IsActive:     true,
			DistributorDetail: &models.DistributorDetail{
				Capacity:    row.capacity,
				TypeVehicle: row.typeVehicle,
				Cellphone:   row.cellphone,
			},
		})
		report.Credentials = append(report.Credentials, ImportedCredential{
			Email:        row.email,
			TempPassword: tempPassword,
		})
	}

	if err := s.repo.CreateUsers(ctx, pending); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert distributors")
	}
	report.Imported = len(pending)
	return report, nil
}

type importRow struct {
	name        string
	email       string
	capacity    int
	typeVehicle string
	cellphone   string
}

func parseImportRow(record []string) (importRow, string) {
	row := importRow{
		name:        strings.TrimSpace(record[0]),
		email:       normalizeEmail(record[1]),
		typeVehicle: strings.TrimSpace(record[3]),
		cellphone:   strings.TrimSpace(record[4]),
	}
	if row.name == "" {
		return row, "name required"
	}
	if row.email == "" || !strings.Contains(row.email, "@") {
		return row, "invalid email"
	}
	capacity, err := strconv.Atoi(strings.TrimSpace(record[2]))
	if err != nil || capacity <= 0 {
		return row, "capacity must be a positive integer"
	}
	row.capacity = capacity
	if row.typeVehicle == "" {
		return row, "type_vehicle required"
	}
	return row, ""
}

func validateImportHeader(header []string) error {
	for i, want := range importHeader {
		if i >= len(header) || !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("csv header must be %s", strings.Join(importHeader, ",")))
		}
	}
	return nil
}
