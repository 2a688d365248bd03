package assist

import (
	"errors"

	oai "github.com/openai/openai-go"
)

// MapProviderError converts a provider completion error into the shared
// taxonomy. Non-2xx responses surface as TransportError with the status code
// and body; anything else (context cancellation, connection failures) passes
// through unchanged.
func MapProviderError(err error) error {
	if err == nil {
		return nil
	}
	var apierr *oai.Error
	if errors.As(err, &apierr) {
		return &TransportError{
			Status: apierr.StatusCode,
			Body:   truncate(apierr.RawJSON(), 2048),
		}
	}
	return err
}
