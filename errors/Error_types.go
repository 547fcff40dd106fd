package errors

// ERR is the numeric error category carried by every *Error.
type ERR int32

const (
	ERR_UNKNOWN                  ERR = 0
	ERR_INVALID_ARGUMENT         ERR = 1
	ERR_NOT_FOUND                ERR = 2
	ERR_PROCESSING               ERR = 3
	ERR_CONFIGURATION            ERR = 4
	ERR_ERROR                    ERR = 9
	ERR_TX_NOT_FOUND             ERR = 30
	ERR_TX_INVALID               ERR = 31
	ERR_TX_ALREADY_EXISTS        ERR = 32
	ERR_TX_ERROR                 ERR = 33
	ERR_SLP_UNSUPPORTED_TYPE     ERR = 34
	ERR_SLP_NOT_SLP              ERR = 35
	ERR_GRAPH_BUSY               ERR = 40
	ERR_JOB_ALREADY_RUNNING      ERR = 41
	ERR_JOB_ALREADY_ADDED        ERR = 42
	ERR_THRESHOLD_EXCEEDED       ERR = 43
	ERR_NETWORK_ERROR            ERR = 50
	ERR_NETWORK_TIMEOUT          ERR = 51
	ERR_NETWORK_INVALID_RESPONSE ERR = 52
	ERR_SERVICE_UNAVAILABLE      ERR = 60
	ERR_SERVICE_NOT_STARTED      ERR = 61
	ERR_SERVICE_ERROR            ERR = 62
)

// ERR_name maps codes to their symbolic names, used when rendering errors.
var ERR_name = map[int32]string{
	0:  "UNKNOWN",
	1:  "INVALID_ARGUMENT",
	2:  "NOT_FOUND",
	3:  "PROCESSING",
	4:  "CONFIGURATION",
	9:  "ERROR",
	30: "TX_NOT_FOUND",
	31: "TX_INVALID",
	32: "TX_ALREADY_EXISTS",
	33: "TX_ERROR",
	34: "SLP_UNSUPPORTED_TYPE",
	35: "SLP_NOT_SLP",
	40: "GRAPH_BUSY",
	41: "JOB_ALREADY_RUNNING",
	42: "JOB_ALREADY_ADDED",
	43: "THRESHOLD_EXCEEDED",
	50: "NETWORK_ERROR",
	51: "NETWORK_TIMEOUT",
	52: "NETWORK_INVALID_RESPONSE",
	60: "SERVICE_UNAVAILABLE",
	61: "SERVICE_NOT_STARTED",
	62: "SERVICE_ERROR",
}

// Enum returns the symbolic name for the code.
func (e ERR) Enum() string {
	if name, ok := ERR_name[int32(e)]; ok {
		return name
	}

	return "UNKNOWN"
}

// Predefined errors, used as targets for errors.Is checks.
var (
	ErrUnknown                = New(ERR_UNKNOWN, "unknown error")
	ErrInvalidArgument        = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrNotFound               = New(ERR_NOT_FOUND, "not found")
	ErrProcessing             = New(ERR_PROCESSING, "error processing")
	ErrConfiguration          = New(ERR_CONFIGURATION, "configuration error")
	ErrError                  = New(ERR_ERROR, "generic error")
	ErrTxNotFound             = New(ERR_TX_NOT_FOUND, "tx not found")
	ErrTxInvalid              = New(ERR_TX_INVALID, "tx invalid")
	ErrTxAlreadyExists        = New(ERR_TX_ALREADY_EXISTS, "tx already exists")
	ErrTxError                = New(ERR_TX_ERROR, "tx error")
	ErrSlpUnsupportedType     = New(ERR_SLP_UNSUPPORTED_TYPE, "unsupported slp token type")
	ErrSlpNotSlp              = New(ERR_SLP_NOT_SLP, "not an slp message")
	ErrGraphBusy              = New(ERR_GRAPH_BUSY, "graph already owned by another job")
	ErrJobAlreadyRunning      = New(ERR_JOB_ALREADY_RUNNING, "job already running")
	ErrJobAlreadyAdded        = New(ERR_JOB_ALREADY_ADDED, "job already added")
	ErrThresholdExceeded      = New(ERR_THRESHOLD_EXCEEDED, "threshold exceeded")
	ErrNetworkError           = New(ERR_NETWORK_ERROR, "network error")
	ErrNetworkTimeout         = New(ERR_NETWORK_TIMEOUT, "network timeout")
	ErrNetworkInvalidResponse = New(ERR_NETWORK_INVALID_RESPONSE, "invalid network response")
	ErrServiceUnavailable     = New(ERR_SERVICE_UNAVAILABLE, "service unavailable")
	ErrServiceNotStarted      = New(ERR_SERVICE_NOT_STARTED, "service not started")
	ErrServiceError           = New(ERR_SERVICE_ERROR, "service error")
)

func NewUnknownError(message string, params ...interface{}) *Error {
	return New(ERR_UNKNOWN, message, params...)
}

func NewInvalidArgumentError(message string, params ...interface{}) *Error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}

func NewNotFoundError(message string, params ...interface{}) *Error {
	return New(ERR_NOT_FOUND, message, params...)
}

func NewProcessingError(message string, params ...interface{}) *Error {
	return New(ERR_PROCESSING, message, params...)
}

func NewConfigurationError(message string, params ...interface{}) *Error {
	return New(ERR_CONFIGURATION, message, params...)
}

func NewError(message string, params ...interface{}) *Error {
	return New(ERR_ERROR, message, params...)
}

func NewTxNotFoundError(message string, params ...interface{}) *Error {
	return New(ERR_TX_NOT_FOUND, message, params...)
}

func NewTxInvalidError(message string, params ...interface{}) *Error {
	return New(ERR_TX_INVALID, message, params...)
}

func NewTxAlreadyExistsError(message string, params ...interface{}) *Error {
	return New(ERR_TX_ALREADY_EXISTS, message, params...)
}

func NewTxError(message string, params ...interface{}) *Error {
	return New(ERR_TX_ERROR, message, params...)
}

func NewSlpUnsupportedTypeError(message string, params ...interface{}) *Error {
	return New(ERR_SLP_UNSUPPORTED_TYPE, message, params...)
}

func NewSlpNotSlpError(message string, params ...interface{}) *Error {
	return New(ERR_SLP_NOT_SLP, message, params...)
}

func NewGraphBusyError(message string, params ...interface{}) *Error {
	return New(ERR_GRAPH_BUSY, message, params...)
}

func NewJobAlreadyRunningError(message string, params ...interface{}) *Error {
	return New(ERR_JOB_ALREADY_RUNNING, message, params...)
}

func NewJobAlreadyAddedError(message string, params ...interface{}) *Error {
	return New(ERR_JOB_ALREADY_ADDED, message, params...)
}

func NewThresholdExceededError(message string, params ...interface{}) *Error {
	return New(ERR_THRESHOLD_EXCEEDED, message, params...)
}

func NewNetworkError(message string, params ...interface{}) *Error {
	return New(ERR_NETWORK_ERROR, message, params...)
}

func NewNetworkTimeoutError(message string, params ...interface{}) *Error {
	return New(ERR_NETWORK_TIMEOUT, message, params...)
}

func NewNetworkInvalidResponseError(message string, params ...interface{}) *Error {
	return New(ERR_NETWORK_INVALID_RESPONSE, message, params...)
}

func NewServiceUnavailableError(message string, params ...interface{}) *Error {
	return New(ERR_SERVICE_UNAVAILABLE, message, params...)
}

func NewServiceNotStartedError(message string, params ...interface{}) *Error {
	return New(ERR_SERVICE_NOT_STARTED, message, params...)
}

func NewServiceError(message string, params ...interface{}) *Error {
	return New(ERR_SERVICE_ERROR, message, params...)
}
