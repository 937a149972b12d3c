/*
dto.go - Request bodies for the HTTP API

PURPOSE:
  Defines the JSON request structures and their validation rules. The
  domain entities carry their own JSON tags and serve as response
  bodies directly; only inbound payloads need dedicated types.

VALIDATION:
  Struct tags drive go-playground/validator. Handlers call decode()
  which unmarshals and validates in one step; a failure maps onto a
  400 with the offending fields listed. Domain services re-validate
  their own invariants since the HTTP layer is bypassable.
*/
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/khedma/ministry-engine/core"
	"github.com/khedma/ministry-engine/roster"
)

var validate = validator.New()

// decode unmarshals the request body into dst and validates it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return core.Validationf("invalid request body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			var fields []string
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return core.Validationf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return core.Validationf("%v", err)
	}
	return nil
}

// parseWhen accepts a full timestamp or a bare date for activity events.
func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if d, err := core.ParseDay(s); err == nil {
		return d.Time(), nil
	}
	return time.Time{}, core.Validationf("time %q: want RFC 3339 or 2006-01-02", s)
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// NameRequest creates or renames a reference entity.
type NameRequest struct {
	Name string `json:"name" validate:"required"`
}

// ServantRequest creates or updates a servant.
type ServantRequest struct {
	Name          string   `json:"name" validate:"required"`
	Email         string   `json:"email" validate:"required,email"`
	MobileNumber  string   `json:"mobileNumber" validate:"required"`
	BirthDate     core.Day `json:"birthDate"`
	AssignedClass core.ID  `json:"assignedClass"`
}

// BatchRequest creates or updates a batch.
type BatchRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	CurrYear    core.ID `json:"currYear"`
}

// AdvanceBatchRequest moves a batch to its next academic year.
type AdvanceBatchRequest struct {
	NextYear core.ID `json:"nextYear" validate:"required"`
}

// StudentRequest creates or updates a student.
type StudentRequest struct {
	FullName           string         `json:"fullName" validate:"required"`
	Image              string         `json:"image"`
	Class              core.ID        `json:"class"`
	Servant            core.ID        `json:"servant"`
	Batch              core.ID        `json:"batch"`
	MobileNumber       string         `json:"mobileNumber" validate:"required"`
	WhatsAppNumber     string         `json:"whatsAppNumber"`
	MotherName         string         `json:"motherName"`
	FatherMobile       string         `json:"frMobileNumber"`
	MotherMobile       string         `json:"mrMobileNumber"`
	BirthDate          core.Day       `json:"birthDate"`
	School             string         `json:"school"`
	FatherOfConfession string         `json:"frOfConfession"`
	IsDeacon           bool           `json:"isDeacon"`
	Address            roster.Address `json:"address"`
	Notes              string         `json:"notes"`
}

func (req *StudentRequest) toStudent(id core.ID) *roster.Student {
	return &roster.Student{
		ID:                 id,
		FullName:           req.FullName,
		Image:              req.Image,
		Class:              req.Class,
		Servant:            req.Servant,
		Batch:              req.Batch,
		MobileNumber:       req.MobileNumber,
		WhatsAppNumber:     req.WhatsAppNumber,
		MotherName:         req.MotherName,
		FatherMobile:       req.FatherMobile,
		MotherMobile:       req.MotherMobile,
		BirthDate:          req.BirthDate,
		School:             req.School,
		FatherOfConfession: req.FatherOfConfession,
		IsDeacon:           req.IsDeacon,
		Address:            req.Address,
		Notes:              req.Notes,
	}
}

// ActivityRequest records an attendance, confession or mass event.
// Student and Mobile are alternatives; Time accepts a timestamp or date.
type ActivityRequest struct {
	Student core.ID `json:"student"`
	Mobile  string  `json:"mobileNumber"`
	Time    string  `json:"time" validate:"required"`
	Notes   string  `json:"notes"`
}

// ActivityUpdateRequest moves an activity record to a new time.
type ActivityUpdateRequest struct {
	Time  string `json:"time" validate:"required"`
	Notes string `json:"notes"`
}

// HomeVisitRequest creates or updates a home visit.
type HomeVisitRequest struct {
	Student   core.ID   `json:"student"`
	VisitDate core.Day  `json:"visitDate" validate:"required"`
	Servants  []core.ID `json:"servants" validate:"required,min=1"`
	Notes     string    `json:"notes"`
}

// PointTypeRequest creates or updates a point type.
type PointTypeRequest struct {
	Name        string `json:"name" validate:"required"`
	Value       int    `json:"points" validate:"required,gt=0"`
	Description string `json:"description"`
}

// BonusRequest mints a manual points entry. Points defaults to the
// type's value when omitted.
type BonusRequest struct {
	Student   core.ID  `json:"student" validate:"required"`
	BatchYear core.ID  `json:"batchYear" validate:"required"`
	Type      core.ID  `json:"type"`
	Points    int      `json:"points" validate:"omitempty,gt=0"`
	Date      core.Day `json:"date" validate:"required"`
}

// EntryUpdateRequest corrects a ledger entry.
type EntryUpdateRequest struct {
	Student   core.ID  `json:"student" validate:"required"`
	BatchYear core.ID  `json:"batchYear" validate:"required"`
	Type      core.ID  `json:"type" validate:"required"`
	Points    int      `json:"points" validate:"required,gt=0"`
	Date      core.Day `json:"date" validate:"required"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
