package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/internal/resputil"
	"github.com/raids-lab/cobrew/internal/service"
)

// serviceErrorStatus maps a workflow error to an HTTP status and code.
// notFound is the code used for service.ErrNotFound.
func serviceErrorStatus(err error, notFound resputil.ErrorCode) (int, resputil.ErrorCode) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest, resputil.InvalidRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, notFound
	case errors.Is(err, service.ErrSelfApplication):
		return http.StatusForbidden, resputil.SelfApplication
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, resputil.UserNotAllowed
	case errors.Is(err, service.ErrAlreadyResponded), errors.Is(err, service.ErrStatusMismatch):
		return http.StatusConflict, resputil.ApplicationAlreadyResponded
	case errors.Is(err, service.ErrDuplicateApplication):
		return http.StatusConflict, resputil.DuplicateApplication
	default:
		return http.StatusInternalServerError, resputil.NotSpecified
	}
}

func serviceError(c *gin.Context, err error, notFound resputil.ErrorCode) {
	status, code := serviceErrorStatus(err, notFound)
	if status == http.StatusInternalServerError {
		klog.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		resputil.Error(c, "Internal error, please try again later", code)
		return
	}
	resputil.HTTPError(c, status, err.Error(), code)
}
