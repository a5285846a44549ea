package app

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const minPhoneLen = 5

// validEmail accepts a bare addr-spec with a dotted domain. Display-name
// forms such as "Jane <jane@x.com>" are rejected.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

func validPhone(phone string) bool {
	return utf8.RuneCountInString(phone) >= minPhoneLen
}

func anyEmpty(values ...string) bool {
	for _, v := range values {
		if v == "" {
			return true
		}
	}
	return false
}
