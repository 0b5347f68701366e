package fetcher

import "errors"

var (
	// ErrTooManyRedirects indicates the redirect chain exceeded Config.MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrUnsafeRedirect indicates a redirect hop failed entity.ValidateURL or
	// entity.IsSafeRedirect (scheme downgrade, cross-host hop to an
	// unrecognized host).
	ErrUnsafeRedirect = errors.New("unsafe redirect target")

	// ErrBodyTooLarge indicates the response exceeded Config.MaxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrUpstreamStatus indicates the upstream server returned a non-2xx status.
	ErrUpstreamStatus = errors.New("upstream returned non-success status")
)
