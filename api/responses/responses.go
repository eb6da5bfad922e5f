package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// retryAfterSeconds is advertised on responses whose error code is retryable.
const retryAfterSeconds = "1"

// WriteSuccess writes a 200 data envelope.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders err as an error envelope. Client errors (4xx) keep their
// own message; server errors only ever show the code's public message.
// Insufficient stock details go to the top-level unavailableItems field.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	writeError(ctx, logg, w, err, nil)
}

// WriteErrorDetails is WriteError with details the handler built itself, such
// as readiness check states. They are written whatever the code's policy on
// wrapped error details.
func WriteErrorDetails(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error, details any) {
	writeError(ctx, logg, w, err, details)
}

func writeError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error, trusted any) {
	if err == nil {
		err = errors.New("error written without cause")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())
	clientError := meta.HTTPStatus < http.StatusInternalServerError

	payload := types.ErrorEnvelope{Error: types.APIError{
		Code:    string(typed.Code()),
		Message: meta.PublicMessage,
	}}
	if clientError && typed.Message() != "" {
		payload.Error.Message = typed.Message()
	}
	if details := typed.Details(); details != nil {
		switch {
		case typed.Code() == pkgerrors.CodeInsufficientStock:
			payload.UnavailableItems = details
		case meta.DetailsAllowed:
			payload.Error.Details = details
		}
	}
	if trusted != nil {
		payload.Error.Details = trusted
	}
	if meta.Retryable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	if logg != nil {
		logError(ctx, logg, err, typed.Code(), meta.HTTPStatus)
	}
	writeJSON(w, meta.HTTPStatus, payload)
}

func logError(ctx context.Context, logg *logger.Logger, err error, code pkgerrors.Code, status int) {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error_code": code,
		"status":     status,
	}
	if status < http.StatusInternalServerError {
		fields["error"] = dump.TopMessage
		logg.Warn(logg.WithFields(ctx, fields), "request rejected")
		return
	}
	fields["error_chain"] = dump.Chain
	if dump.PG != nil {
		fields["pg"] = dump.PG
	}
	logg.Error(logg.WithFields(ctx, fields), "request failed", err)
}

// writeJSON encodes before touching the writer so an encoding failure can
// still produce a clean 500.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(types.ErrorEnvelope{Error: types.APIError{
			Code:    string(pkgerrors.CodeInternal),
			Message: pkgerrors.MetadataFor(pkgerrors.CodeInternal).PublicMessage,
		}})
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
