package service

import (
	"errors"
	"fmt"

	"github.com/raids-lab/cobrew/dao/model"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidStatus        = errors.New("status must be accepted or rejected")
	ErrValidation           = errors.New("validation failed")
	ErrSelfApplication      = errors.New("you cannot apply to your own project")
	ErrDuplicateApplication = errors.New("you already have a pending application for this project")
	ErrStatusMismatch       = errors.New("status does not match the application")
	ErrAlreadyResponded     = errors.New("application already responded")
)

// AlreadyRespondedError reports a decision on an application that was
// decided before. It matches ErrAlreadyResponded with errors.Is.
type AlreadyRespondedError struct {
	Status model.ApplicationStatus
}

func (e *AlreadyRespondedError) Error() string {
	return fmt.Sprintf("This application has already been %s.", e.Status)
}

func (e *AlreadyRespondedError) Is(target error) bool {
	return target == ErrAlreadyResponded
}
