package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors the JSON API answers with a problem document.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
)

var problems = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrValidation, http.StatusBadRequest},
	{ErrUnauthorized, http.StatusUnauthorized},
}

// RespondError writes the problem document for err. Errors outside the
// sentinel set become a 500 without detail.
func RespondError(w http.ResponseWriter, err error) {
	for _, p := range problems {
		if errors.Is(err, p.err) {
			Problem(w, p.status, http.StatusText(p.status), err.Error())
			return
		}
	}
	Problem(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), "")
}
