package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"creator_collab/internal/metrics"
	apperrors "creator_collab/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateInput reports struct tag violations as a validation error.
func validateInput(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := lo.Map(fieldErrs, func(fe validator.FieldError, _ int) string {
			if fe.Param() != "" {
				return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
			}
			return fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag())
		})
		return apperrors.WithDetail(apperrors.ErrValidation, "%s", strings.Join(msgs, "; "))
	}
	return apperrors.WithDetail(apperrors.ErrValidation, "%s", err.Error())
}

// bounded caps a storage call at the configured operation timeout.
func bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

// storageFailure passes domain errors through and turns everything else
// (timeouts, lost connections, exhausted retries) into a retryable error.
func storageFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		if appErr.Kind == apperrors.KindTransient {
			metrics.StorageErrors.WithLabelValues(op).Inc()
		}
		return err
	}
	metrics.StorageErrors.WithLabelValues(op).Inc()
	return apperrors.Transient(err)
}

func now() time.Time {
	return time.Now().UTC()
}
