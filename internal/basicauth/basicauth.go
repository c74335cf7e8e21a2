// Package basicauth builds the password-only Basic credentials the car
// server checks.
package basicauth

import (
	"encoding/base64"
	"net/http"
)

// Value returns an Authorization header value with an empty user name.
func Value(password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+password))
}

// Header returns request headers carrying password, or empty headers when
// password is empty.
func Header(password string) http.Header {
	h := make(http.Header)
	if password != "" {
		h.Set("Authorization", Value(password))
	}
	return h
}
