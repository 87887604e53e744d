package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/intellisales-pos/pkg/errors"
	"github.com/angelmondragon/intellisales-pos/pkg/logger"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteSuccessWithWarning returns data together with a non-fatal error, such
// as a cart that changed but could not be saved.
func WriteSuccessWithWarning(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, data any, warning error) {
	if warning == nil {
		WriteSuccess(w, data)
		return
	}
	typed := asTyped(warning)
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, dumpFields(warning)), "request.warning")
	}
	apiErr := publicError(typed)
	writeJSON(w, http.StatusOK, types.SuccessEnvelope{Data: data, Warning: &apiErr})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := asTyped(err)
	meta := pkgerrors.MetadataFor(typed.Code())
	payload := types.ErrorEnvelope{Error: publicError(typed)}

	if logg != nil {
		ctx = logg.WithFields(ctx, dumpFields(err))
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func asTyped(err error) *pkgerrors.Error {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	return typed
}

// publicError shows the typed message for client-facing codes and the
// generic public message otherwise.
func publicError(typed *pkgerrors.Error) types.APIError {
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeInvalidQuantity,
		pkgerrors.CodeItemNotFound,
		pkgerrors.CodeDuplicateDiscount,
		pkgerrors.CodeDiscountNotFound:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	apiErr := types.APIError{Code: string(typed.Code()), Message: msg}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			apiErr.Details = details
		}
	}
	return apiErr
}

func dumpFields(err error) map[string]any {
	return pkgerrors.Dump(err).Fields()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
