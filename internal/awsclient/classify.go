package awsclient

import (
	"context"
	stderrors "errors"
	"fmt"

	"dday-scheduler/internal/common/errors"
	"github.com/aws/smithy-go"
)

var transientCodes = map[string]bool{
	"ThrottlingException":             true,
	"TooManyRequestsException":        true,
	"RequestLimitExceeded":            true,
	"ServiceUnavailableException":     true,
	"ServiceException":                true,
	"InternalException":               true,
	"InternalFailure":                 true,
	"ConcurrentModificationException": true,
}

// Classify maps an SDK error onto the application error taxonomy.
// AppErrors pass through untouched.
func Classify(operation string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.TimeoutError(operation, err)
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.InternalError(fmt.Sprintf("%s cancelled", operation), err)
	}

	var apiErr smithy.APIError
	if !stderrors.As(err, &apiErr) {
		// transport level failure
		return errors.RegistryUnavailable(operation, err)
	}

	code := apiErr.ErrorCode()
	switch {
	case transientCodes[code]:
		return errors.RegistryUnavailable(operation, err).WithCode(code)
	case code == "ResourceNotFoundException":
		return errors.NotFoundError(fmt.Sprintf("resource for %s", operation), err).WithCode(code)
	case apiErr.ErrorFault() == smithy.FaultServer:
		return errors.RegistryUnavailable(operation, err).WithCode(code)
	default:
		return &errors.AppError{
			Type:    errors.ErrTypeRegistryRejected,
			Message: fmt.Sprintf("%s rejected: %s", operation, apiErr.ErrorMessage()),
			Code:    code,
			Cause:   err,
		}
	}
}
