package services

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/apperr"
)

const missingFieldsMessage = "Missing required fields: transaction_id, facture_id, partner_id, phoneNumber, amount"

var (
	validate     = newValidator()
	msisdnFormat = regexp.MustCompile(`^[0-9]{8,15}$`)
	phoneNoise   = strings.NewReplacer(" ", "", "-", "", ".", "", "+", "", "(", "", ")", "")
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
		return msisdnFormat.MatchString(NormalizeMSISDN(fl.Field().String()))
	})
	return v
}

// NormalizeMSISDN drops separators and the international prefix, written
// either "+" or "00": "+221 77 123 45 67" and "00221771234567" both become
// "221771234567". Local forms such as "0771234567" are kept as written.
func NormalizeMSISDN(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "00") {
		s = s[2:]
	}
	return phoneNoise.Replace(s)
}

// validationError turns validator output into the public message clients see.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.InvalidErr(err.Error())
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return apperr.InvalidErr(missingFieldsMessage)
		}
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "msisdn":
		return apperr.InvalidErr("Invalid phone number")
	case "url":
		return apperr.InvalidErr("Invalid " + fe.Field())
	default:
		return apperr.InvalidErr("Invalid value for " + fe.Field())
	}
}
