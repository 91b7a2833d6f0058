// Package services defines the business logic behind the ops API: supplier
// profiles, product listing and search, and usage reporting. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrSupplierNotFound indicates that no supplier is registered for the
	// requested chat id.
	ErrSupplierNotFound = errors.New("supplier not found")

	// ErrEmptyQuery is returned when a product search is requested with a
	// blank query string.
	ErrEmptyQuery = errors.New("search query is empty")
)
