package service

import (
	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
)

// paginate normalises a requested page window into response metadata.
func paginate(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

// internalErr wraps an unexpected failure as a 500 with a stable code.
func internalErr(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// invalidErr wraps a validation failure as a 400.
func invalidErr(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// notFound builds a 404 with a resource-specific message.
func notFound(message string) error {
	return appErrors.Clone(appErrors.ErrNotFound, message)
}
