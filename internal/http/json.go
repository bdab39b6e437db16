package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"

	apperrors "github.com/cloudpivot/ssogate/internal/errors"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}

// WriteAppError writes a JSON error response with a status derived from the
// application error taxonomy. Internal details are not leaked for 5xx codes.
func WriteAppError(w http.ResponseWriter, err error) {
	code := statusForError(err)
	errCode := string(apperrors.GetCode(err))
	if errCode == "" {
		errCode = "internal"
	}
	if code >= http.StatusInternalServerError {
		WriteJSON(w, code, map[string]string{"error": errCode, "message": "internal server error"})
		return
	}
	WriteError(w, ErrorParams{Code: code, ErrCode: errCode, Err: err})
}

// statusForError maps application error codes to HTTP statuses. Provider
// protocol failures surface as 400 to match the callback contract.
func statusForError(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeValidation, apperrors.ErrCodeUnknownProvider,
		apperrors.ErrCodeProviderRejected, apperrors.ErrCodeNoUserInfo:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
