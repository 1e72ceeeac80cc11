// Package network holds the HTTP/JSON wire contract shared by the agent, the
// backend and the admin CLI: the command and result entities, the signing
// scheme, and the agent-side API client.
package network

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	jsoniter "github.com/json-iterator/go"
)

// JSON is the codec used for every wire payload. It matches encoding/json
// output byte for byte, which the signature scheme relies on.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// IsTimeout reports whether err is a client-side timeout, which for a
// long-poll request is the normal idle outcome.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
