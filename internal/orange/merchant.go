package orange

import (
	"errors"
	"regexp"
)

var ErrInvalidMerchantCode = errors.New("merchant code must contain exactly 6 digits")

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeMerchantCode keeps the digits of s and requires exactly six of them.
func NormalizeMerchantCode(s string) (string, error) {
	code := nonDigits.ReplaceAllString(s, "")
	if len(code) != 6 {
		return "", ErrInvalidMerchantCode
	}
	return code, nil
}
