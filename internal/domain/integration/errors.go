package integration

import "github.com/erp/integration-hub/internal/domain/shared"

// Connector errors
var (
	ErrConnectorNotFound      = shared.NewDomainError("CONNECTOR_NOT_FOUND", "Connector not found")
	ErrConnectorInactive      = shared.NewDomainError("CONNECTOR_INACTIVE", "Connector is not active")
	ErrConnectorAlreadyExists = shared.NewDomainError("CONNECTOR_EXISTS", "Connector with this code already exists")
	ErrInvalidConnectorCode   = shared.NewDomainError("INVALID_CONNECTOR_CODE", "Connector code must be 2-64 lowercase letters, digits, '-' or '_'")
	ErrInvalidConnector       = shared.NewDomainError("INVALID_CONNECTOR", "Invalid connector configuration")
)

// Message errors
var (
	ErrMessageNotFound         = shared.NewDomainError("MESSAGE_NOT_FOUND", "Message not found")
	ErrInvalidMessage          = shared.NewDomainError("INVALID_MESSAGE", "Invalid message")
	ErrMessageTerminal         = shared.NewDomainError("MESSAGE_TERMINAL", "Message is in a terminal state")
	ErrMessageAlreadyCompleted = shared.NewDomainError("MESSAGE_COMPLETED", "Completed messages cannot be reprocessed")
)

// Transformation errors
var (
	ErrTransformationNotFound = shared.NewDomainError("TRANSFORMATION_NOT_FOUND", "Transformation not found")
	ErrInvalidTransformation  = shared.NewDomainError("INVALID_TRANSFORMATION", "Invalid transformation")
	ErrInvalidPath            = shared.NewDomainError("INVALID_PATH", "Invalid field path")
)

// Dead letter errors
var (
	ErrDeadLetterNotFound           = shared.NewDomainError("DEAD_LETTER_NOT_FOUND", "Dead letter entry not found")
	ErrDeadLetterAlreadyReprocessed = shared.NewDomainError("ALREADY_REPROCESSED", "Dead letter entry was already reprocessed")
)

// Retry policy errors
var (
	ErrInvalidRetryPolicy = shared.NewDomainError("INVALID_RETRY_POLICY", "Invalid retry policy")
)
