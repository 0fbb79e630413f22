package textualadk

import "errors"

var (
	// ErrInvalidConfig reports an unusable Config.
	ErrInvalidConfig = errors.New("textualadk: invalid config")

	// ErrSession wraps failures of the session handshake.
	ErrSession = errors.New("textualadk: session")

	// ErrEmptyMessage is returned for blank user messages.
	ErrEmptyMessage = errors.New("textualadk: empty message")

	// ErrHTTPStatus wraps non-2xx answers of the ADK server.
	ErrHTTPStatus = errors.New("textualadk: unexpected http status")
)
