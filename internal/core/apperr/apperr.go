// Package apperr holds the error kinds shared by stores, planner and transport.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier attached to wrapped errors.
type Code string

const (
	CodeDuplicateName    Code = "store.add.duplicate_name"
	CodeNotFound         Code = "store.get.not_found"
	CodeInvalidGeometry  Code = "store.validate.invalid_geometry"
	CodeInvalidDateRange Code = "query.validate.invalid_date_range"
	CodeNoData           Code = "query.execute.no_data"
	CodeCorruptStore     Code = "store.load.corrupt"
	CodeStoreIO          Code = "store.io.failure"
	CodeRemoteService    Code = "imagery.remote.failure"
	CodeInvalidArgument  Code = "request.validate.invalid_argument"
)

var (
	ErrDuplicateName    = errors.New("duplicate name")
	ErrNotFound         = errors.New("not found")
	ErrInvalidGeometry  = errors.New("invalid geometry")
	ErrInvalidDateRange = errors.New("invalid date range")
	// ErrNoData is a normal outcome: the query matched nothing.
	ErrNoData       = errors.New("no data in range")
	ErrCorruptStore = errors.New("corrupt store file")

	// ErrInvalidArgument covers malformed request fields other than
	// geometry and dates.
	ErrInvalidArgument = errors.New("invalid argument")
)

// RemoteServiceError wraps any failure reported by the imagery service.
type RemoteServiceError struct {
	Op     string
	Params map[string]any
	Status int
	Err    error
}

func (e *RemoteServiceError) Error() string {
	var b strings.Builder
	b.WriteString("imagery ")
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if len(e.Params) > 0 {
		keys := make([]string, 0, len(e.Params))
		for k := range e.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Params[k])
		}
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// Remote builds a coded RemoteServiceError.
func Remote(op string, status int, params map[string]any, err error) error {
	re := &RemoteServiceError{Op: op, Params: params, Status: status, Err: err}
	return oops.Code(CodeRemoteService).With("op", op, "status", status).Wrap(re)
}

func DuplicateName(name string) error {
	return oops.Code(CodeDuplicateName).With("name", name).Wrapf(ErrDuplicateName, "area %q already exists", name)
}

func NotFound(kind, name string) error {
	return oops.Code(CodeNotFound).With("kind", kind, "name", name).Wrapf(ErrNotFound, "%s %q", kind, name)
}

func InvalidGeometry(format string, args ...any) error {
	return oops.Code(CodeInvalidGeometry).Wrapf(ErrInvalidGeometry, format, args...)
}

func InvalidDateRange(start, end, reason string) error {
	return oops.Code(CodeInvalidDateRange).
		With("start_date", start, "end_date", end).
		Wrapf(ErrInvalidDateRange, "%s (start=%q end=%q)", reason, start, end)
}

func InvalidArgument(field, format string, args ...any) error {
	return oops.Code(CodeInvalidArgument).With("field", field).Wrapf(ErrInvalidArgument, format, args...)
}

func NoData(start, end string) error {
	return oops.Code(CodeNoData).With("start_date", start, "end_date", end).Wrap(ErrNoData)
}

func Corrupt(path string, format string, args ...any) error {
	return oops.Code(CodeCorruptStore).With("path", path).
		Wrapf(ErrCorruptStore, "%s: %s", path, fmt.Sprintf(format, args...))
}

// StoreIO wraps filesystem failures of the backing files.
func StoreIO(err error, op, path string) error {
	if err == nil {
		return nil
	}
	return oops.Code(CodeStoreIO).With("op", op, "path", path).Wrapf(err, "%s %s", op, path)
}

// CodeOf returns the outermost code found on err, or "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oe, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch c := oe.Code().(type) {
	case Code:
		return c
	case string:
		return Code(c)
	default:
		return ""
	}
}

// IsRemote reports whether err came from the imagery service.
func IsRemote(err error) bool {
	var re *RemoteServiceError
	return errors.As(err, &re)
}

// HTTPStatus maps error kinds onto response codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidGeometry), errors.Is(err, ErrInvalidDateRange), errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoData):
		return http.StatusOK
	case IsRemote(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
