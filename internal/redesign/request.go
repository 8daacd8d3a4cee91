package redesign

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// GuestIdentity is the requester identity used by visitors without an account.
const GuestIdentity = "guest"

// RoomTypes lists the accepted room types.
var RoomTypes = []string{"Living Room", "Bedroom", "Kitchen", "Office", "Bathroom", "Dining Room"}

// DesignStyles lists the accepted interior styles.
var DesignStyles = []string{"Modern", "Industrial", "Bohemian", "Traditional", "Rustic", "Minimalist"}

// Request is the input of a redesign. Field names follow the public JSON contract.
type Request struct {
	SourceImageURL         string `json:"imageUrl" validate:"required,imagelocator"`
	RoomType               string `json:"roomType" validate:"required,roomtype"`
	DesignStyle            string `json:"designType" validate:"required,designstyle"`
	AdditionalInstructions string `json:"additionalReq" validate:"max=1000"`
	RequesterIdentity      string `json:"userEmail" validate:"omitempty,max=320"`
	GuestSessionID         string `json:"guestSessionId" validate:"omitempty,max=128"`
}

// Normalized returns a copy with surrounding whitespace removed from every field.
func (r Request) Normalized() Request {
	r.SourceImageURL = strings.TrimSpace(r.SourceImageURL)
	r.RoomType = strings.TrimSpace(r.RoomType)
	r.DesignStyle = strings.TrimSpace(r.DesignStyle)
	r.AdditionalInstructions = strings.TrimSpace(r.AdditionalInstructions)
	r.RequesterIdentity = strings.TrimSpace(r.RequesterIdentity)
	r.GuestSessionID = strings.TrimSpace(r.GuestSessionID)
	return r
}

// IsGuest reports whether the requester is anonymous.
func (r Request) IsGuest() bool {
	identity := strings.TrimSpace(r.RequesterIdentity)
	return identity == "" || strings.EqualFold(identity, GuestIdentity)
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError lists the fields that made a request unacceptable.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	var missing, invalid []string
	for _, f := range e.Fields {
		if f.Rule == "required" {
			missing = append(missing, f.Field)
			continue
		}
		invalid = append(invalid, f.Field)
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		mustRegister(v, "roomtype", oneOfFold(RoomTypes))
		mustRegister(v, "designstyle", oneOfFold(DesignStyles))
		mustRegister(v, "imagelocator", func(fl validator.FieldLevel) bool {
			value := strings.ToLower(fl.Field().String())
			return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") || strings.HasPrefix(value, "data:image/")
		})
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

func oneOfFold(values []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		got := fl.Field().String()
		for _, v := range values {
			if strings.EqualFold(v, got) {
				return true
			}
		}
		return false
	}
}

// Validate checks the request before any external call is made.
func (r Request) Validate() error {
	err := requestValidator().Struct(r.Normalized())
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	verr := &ValidationError{}
	for _, fe := range errs {
		verr.Fields = append(verr.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return verr
}
