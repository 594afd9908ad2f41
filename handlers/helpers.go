package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Dosada05/roster-system/services"
)

type jsonResponse map[string]interface{}

// retryAfterSeconds отдаётся клиенту вместе с 503.
const retryAfterSeconds = "30"

// errorBody is the payload of every error response.
type errorBody struct {
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message"`
	Params    map[string]string `json:"params,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err) // Паника, т.к. это ошибка программиста (передан не указатель)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, body errorBody, headers http.Header) {
	body.RequestID = chiMiddleware.GetReqID(r.Context())
	if err := writeJSON(w, status, jsonResponse{"error": body}, headers); err != nil {
		slog.ErrorContext(r.Context(), "Error writing error JSON response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "Internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	message := "the server encountered a problem and could not process your request"
	errorResponse(w, r, http.StatusInternalServerError, errorBody{Message: message}, nil)
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, errorBody{Message: err.Error()}, nil)
}

func unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusUnauthorized, errorBody{Message: message}, nil)
}

// ruleStatus returns the HTTP status for a rejection kind.
func ruleStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusForbidden, true
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, true
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, services.ErrDataIntegrity):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusServiceUnavailable, true
	}
	return 0, false
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrValidationFailed) {
		badRequestResponse(w, r, err)
		return
	}

	var re *services.RuleError
	status, ok := ruleStatus(err)
	if !ok || !errors.As(err, &re) {
		serverErrorResponse(w, r, err)
		return
	}

	var headers http.Header
	if status == http.StatusServiceUnavailable {
		slog.WarnContext(r.Context(), "Dependency unavailable", slog.String("path", r.URL.Path), slog.Any("error", err))
		headers = http.Header{"Retry-After": []string{retryAfterSeconds}}
	}
	errorResponse(w, r, status, errorBody{Code: re.Code, Message: re.Message, Params: re.Params}, headers)
}

func getIDFromURL(r *http.Request, paramName string) (int, error) {
	idStr := chi.URLParam(r, paramName)
	if idStr == "" {
		return 0, fmt.Errorf("missing %s in URL path", paramName)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s in URL path: %q", paramName, idStr)
	}
	return id, nil
}
