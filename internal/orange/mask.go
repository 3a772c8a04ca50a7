package orange

import (
	"encoding/json"
	"strings"
)

var maskedKeys = map[string]bool{
	"apiKey":        true,
	"client_secret": true,
	"access_token":  true,
	"key":           true,
}

var phoneKeys = map[string]bool{
	"phone_number":    true,
	"customer_msisdn": true,
	"phoneNumber":     true,
	"msisdn":          true,
	"id":              true,
}

// maskSensitiveFields redacts secrets and phone numbers from a JSON body
// before it is logged. Non-JSON input is returned unchanged.
func maskSensitiveFields(body []byte) []byte {
	var req map[string]interface{}
	if err := json.Unmarshal(body, &req); err != nil {
		return body
	}
	maskMap(req)
	masked, _ := json.Marshal(req)
	return masked
}

func maskMap(m map[string]interface{}) {
	for k, v := range m {
		switch val := v.(type) {
		case map[string]interface{}:
			maskMap(val)
		case string:
			if maskedKeys[k] && val != "" {
				m[k] = "****"
			} else if phoneKeys[k] && len(val) > 4 && isDigits(val) {
				m[k] = "****" + val[len(val)-4:]
			}
		}
	}
}

func isDigits(s string) bool {
	return strings.IndexFunc(strings.TrimPrefix(s, "+"), func(r rune) bool { return r < '0' || r > '9' }) == -1
}
