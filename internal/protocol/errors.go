package protocol

import "errors"

// Decode errors. Each is reported together with domain.ErrInvalidRequest.
var (
	ErrNullProtocol         = errors.New("protocol JSON was found to be null")
	ErrMalformedProtocol    = errors.New("malformed protocol JSON")
	ErrMissingProvider      = errors.New("conf.provider is required")
	ErrMissingIndexes       = errors.New("conf.indexes must be a non-empty array")
	ErrMissingFamily        = errors.New("provider family is required")
	ErrMissingIndexName     = errors.New("index name is required")
	ErrInvalidGroupOperator = errors.New("invalid group operator")
	ErrInvalidNumericValue  = errors.New("invalid numeric value")
	ErrInvalidRequiredField = errors.New("required_fields entries must be strings")
)
