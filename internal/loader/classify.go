package loader

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"syscall"

	internalerrors "github.com/dhgavali-gis/get-postalcode-datacenter/internal/errors"
)

// Classify maps a raw fetch or decode failure onto the error taxonomy.
// Errors that are already classified are returned as they are.
func Classify(err error) *internalerrors.Error {
	if err == nil {
		return nil
	}

	var ie *internalerrors.Error
	if errors.As(err, &ie) {
		return ie
	}

	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return internalerrors.New(internalerrors.ErrTimeout, "request timed out", err)
	}

	if status, ok := statusCodeFromError(err); ok {
		switch {
		case status == 404:
			return internalerrors.New(internalerrors.ErrNotFound, "collection not found", err)
		case status == 401 || status == 403:
			return internalerrors.New(internalerrors.ErrPermission, "access to collection denied", err)
		case status == 429 || (status >= 500 && status <= 599):
			return internalerrors.New(internalerrors.ErrNetwork, "collection host unavailable", err)
		default:
			return internalerrors.New(internalerrors.ErrUnknown, "unexpected collection response", err)
		}
	}

	if errors.Is(err, fs.ErrNotExist) {
		return internalerrors.New(internalerrors.ErrNotFound, "collection not found", err)
	}
	if errors.Is(err, fs.ErrPermission) {
		return internalerrors.New(internalerrors.ErrPermission, "access to collection denied", err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return internalerrors.New(internalerrors.ErrParse, "collection is not valid JSON", err)
	}

	if isNetworkError(err) {
		return internalerrors.New(internalerrors.ErrNetwork, "network error", err)
	}

	return internalerrors.New(internalerrors.ErrUnknown, "unexpected error", err)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isNetworkError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EPIPE)
}

func statusCodeFromError(err error) (int, bool) {
	type statusCoder interface{ StatusCode() int }

	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}
