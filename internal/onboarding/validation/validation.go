// Package validation checks vendor submissions before anything reaches the
// store and renders field-scoped messages for the form.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"github.com/go-playground/validator/v10"
)

// DefaultMaxPhotoBytes is the upload limit per photo.
const DefaultMaxPhotoBytes int64 = 5 << 20

// Field names as used by the form and the JSON payloads.
const (
	FieldName          = "v_name"
	FieldType          = "v_type"
	FieldPhone         = "v_phonenumber"
	FieldAddress       = "v_address"
	FieldListingCount  = "v_listing_count"
	FieldVerifiedPhoto = "verified_photo"
	FieldBusinessPhoto = "business_photo"
)

var messages = map[string]string{
	FieldName:         "Vendor name is required",
	FieldType:         "Vendor type is required",
	FieldPhone:        "Phone number must be 10 digits",
	FieldAddress:      "Address is required",
	FieldListingCount: "Listing count cannot be negative",
}

type Validator struct {
	validate      *validator.Validate
	maxPhotoBytes int64
}

// New returns a Validator enforcing maxPhotoBytes per photo. A non-positive
// limit selects DefaultMaxPhotoBytes.
func New(maxPhotoBytes int64) *Validator {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = DefaultMaxPhotoBytes
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return IsPhoneNumber(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &Validator{validate: v, maxPhotoBytes: maxPhotoBytes}
}

// MaxPhotoBytes is the configured per-photo limit.
func (v *Validator) MaxPhotoBytes() int64 {
	return v.maxPhotoBytes
}

// Vendor validates a submission and its optional photos. It returns a
// *errors.ValidationError listing every failing field, or nil.
func (v *Validator) Vendor(in *models.NewVendor, verified, business *models.Photo) error {
	var verr e.ValidationError

	if err := v.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
		}
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), messageFor(fe))
		}
	}

	v.checkPhoto(&verr, FieldVerifiedPhoto, models.VerifiedPhoto, verified)
	v.checkPhoto(&verr, FieldBusinessPhoto, models.BusinessPhoto, business)
	return verr.OrNil()
}

func (v *Validator) checkPhoto(verr *e.ValidationError, field string, kind models.PhotoKind, p *models.Photo) {
	if p == nil {
		return
	}
	if p.Size > v.maxPhotoBytes || int64(len(p.Data)) > v.maxPhotoBytes {
		verr.Add(field, PhotoTooLargeMessage(kind, v.maxPhotoBytes))
	}
}

// PhotoTooLargeMessage is the field message for a photo over maxBytes.
func PhotoTooLargeMessage(kind models.PhotoKind, maxBytes int64) string {
	return fmt.Sprintf("%s must be less than %s", kind.Label(), humanSize(maxBytes))
}

func messageFor(fe validator.FieldError) string {
	if fe.Field() == FieldType && fe.Tag() == "uuid" {
		return "Vendor type is invalid"
	}
	if msg, ok := messages[fe.Field()]; ok {
		return msg
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// IsPhoneNumber reports whether s is exactly ten ASCII digits.
func IsPhoneNumber(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseCount parses a non-negative whole number supplied for field. Blank
// input is rejected rather than read as zero.
func ParseCount(field, raw string) (int, error) {
	var verr e.ValidationError
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	switch {
	case err != nil:
		verr.Add(field, "Listing count must be a whole number")
	case n < 0:
		verr.Add(field, messages[FieldListingCount])
	}
	if err := verr.OrNil(); err != nil {
		return 0, err
	}
	return n, nil
}

func humanSize(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	if n%(1<<10) == 0 {
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
