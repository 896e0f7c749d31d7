package app

import (
	"errors"
	"fmt"
	"net/http"

	"pageblocks/api/internal/export"
	"pageblocks/api/internal/history"
	"pageblocks/api/internal/reusable"
	"pageblocks/api/internal/schema"
	"pageblocks/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var invalid *schema.ValidationError
	if errors.As(err, &invalid) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), map[string]any{"problems": invalid.Problems}
	}
	var storeErr *reusable.StoreError
	if errors.As(err, &storeErr) {
		var details any
		if storeErr.OrphanID != "" {
			details = map[string]any{"orphanId": storeErr.OrphanID}
		}
		return http.StatusBadGateway, "STORE_ERROR", storeErr.Error(), details
	}

	switch {
	case errors.Is(err, reusable.ErrNoDocumentID):
		return http.StatusBadRequest, "NO_DOCUMENT_ID", reusable.Message(reusable.MsgNoDocumentID), nil
	case errors.Is(err, reusable.ErrNoField), errors.Is(err, reusable.ErrNotKeyed), errors.Is(err, store.ErrInvalidPath):
		return http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil
	case errors.Is(err, reusable.ErrBlockNotFound):
		return http.StatusNotFound, "BLOCK_NOT_FOUND", err.Error(), nil
	case errors.Is(err, reusable.ErrSourceNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error(), nil
	case errors.Is(err, history.ErrNoHistory):
		return http.StatusNotFound, "NO_HISTORY", err.Error(), nil
	case errors.Is(err, reusable.ErrKeyMismatch), errors.Is(err, reusable.ErrAlreadyReusable):
		return http.StatusConflict, "CONFLICT", err.Error(), nil
	case errors.Is(err, reusable.ErrNotPromotable):
		return http.StatusUnprocessableEntity, "NOT_PROMOTABLE", err.Error(), nil
	case errors.Is(err, export.ErrNotConfigured):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil
	case errors.Is(err, history.ErrInvalidID):
		return http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
