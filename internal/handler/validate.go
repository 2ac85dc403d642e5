package handler

import (
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/vendor-vault/internal/utils"
)

// MinPasswordLen is the shortest password accepted at registration and on
// password change.
const MinPasswordLen = 6

// validEmail accepts a bare address such as ann@x.com; display-name forms
// like "Ann <ann@x.com>" are rejected.
func validEmail(s string) bool {
	if s == "" || len(s) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	_, domain, _ := strings.Cut(s, "@")
	return domain != "" && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// passwordProblem returns the validation message for s, or "" when s is
// acceptable.  The upper bound is bcrypt's input limit in bytes.
func passwordProblem(s string) string {
	switch {
	case utf8.RuneCountInString(s) < MinPasswordLen:
		return "password must be at least 6 characters"
	case len(s) > utils.MaxPasswordBytes:
		return "password must be at most 72 bytes"
	}
	return ""
}

// pageParams reads page/limit query values with defaults 1 and 10 and
// caps limit at 100.
func pageParams(pageRaw, limitRaw string) (page, limit int) {
	page, _ = strconv.Atoi(pageRaw)
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(limitRaw)
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
