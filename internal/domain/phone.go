package domain

import (
	"errors"
	"strings"
)

var errInvalidPhone = errors.New("phone number must be a Kenyan mobile number, e.g. 0712345678 or 254712345678")

// NormalizePhone converts local and international forms of a Kenyan mobile
// number into the 2547XXXXXXXX / 2541XXXXXXXX form the gateway expects.
func NormalizePhone(raw string) (string, error) {
	s := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "+")

	switch {
	case len(s) == 10 && s[0] == '0':
		s = "254" + s[1:]
	case len(s) == 9 && (s[0] == '7' || s[0] == '1'):
		s = "254" + s
	}

	if len(s) != 12 || !strings.HasPrefix(s, "254") || (s[3] != '7' && s[3] != '1') {
		return "", errInvalidPhone
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return "", errInvalidPhone
		}
	}
	return s, nil
}
