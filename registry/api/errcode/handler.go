package errcode

import (
	"encoding/json"
	"net/http"
)

// MessageEnvelope is the error body served by Skynet portals. Clients
// surface Message verbatim.
type MessageEnvelope struct {
	Message string `json:"message"`
}

// ServeJSON attempts to serve the errcode in a JSON envelope. It marshals err
// and sets the content-type header to 'application/json'. The status code is
// taken from the first ErrorCoder found, defaulting to 500.
func ServeJSON(w http.ResponseWriter, err error) error {
	w.Header().Set("Content-Type", "application/json")
	var sc int

	switch errs := err.(type) {
	case Errors:
		if len(errs) < 1 {
			break
		}

		if err, ok := errs[0].(ErrorCoder); ok {
			sc = err.ErrorCode().Descriptor().HTTPStatusCode
		}
	case ErrorCoder:
		sc = errs.ErrorCode().Descriptor().HTTPStatusCode
	}

	if sc == 0 {
		sc = http.StatusInternalServerError
	}

	w.WriteHeader(sc)

	return json.NewEncoder(w).Encode(MessageEnvelope{Message: message(err)})
}

func message(err error) string {
	switch e := err.(type) {
	case Error:
		return e.Message
	case ErrorCode:
		return e.Message()
	case Errors:
		if len(e) == 1 {
			return message(e[0])
		}
	}
	return err.Error()
}
