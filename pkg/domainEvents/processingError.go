package domainEvents

import "fmt"

type ProcessingStage string

const (
	ProcessingStage_Decode    ProcessingStage = "decode"
	ProcessingStage_Transform ProcessingStage = "transform"
	ProcessingStage_Persist   ProcessingStage = "persist"
)

type ProcessingErrorType string

const (
	ProcessingError_TransactionDecodeFailed ProcessingErrorType = "transaction_decode_failed"
	ProcessingError_HandlerFailed           ProcessingErrorType = "handler_failed"
	ProcessingError_HandlerPanicked         ProcessingErrorType = "handler_panicked"
	ProcessingError_RuleApplicationFailed   ProcessingErrorType = "rule_application_failed"
	ProcessingError_AggregationFailed       ProcessingErrorType = "aggregation_failed"
	ProcessingError_PersistFailed           ProcessingErrorType = "persist_failed"
)

// ProcessingError is a recoverable failure recorded against a transaction.
// It never aborts processing of the block that contains it.
type ProcessingError struct {
	Type     ProcessingErrorType    `json:"type"`
	Stage    ProcessingStage        `json:"stage"`
	Message  string                 `json:"message"`
	LogIndex *uint64                `json:"logIndex,omitempty"`
	Context  map[string]interface{} `json:"context,omitempty"`
	Err      error                  `json:"-"`
}

func NewProcessingError(stage ProcessingStage, t ProcessingErrorType, err error) *ProcessingError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ProcessingError{
		Type:    t,
		Stage:   stage,
		Message: msg,
		Context: make(map[string]interface{}),
		Err:     err,
	}
}

func (e *ProcessingError) Error() string {
	if e.LogIndex != nil {
		return fmt.Sprintf("%s error (%s) at log %d: %s", e.Stage, e.Type, *e.LogIndex, e.Message)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Stage, e.Type, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func (e *ProcessingError) WithLogIndex(logIndex uint64) *ProcessingError {
	e.LogIndex = &logIndex
	return e
}

func (e *ProcessingError) WithContext(key string, value interface{}) *ProcessingError {
	e.Context[key] = value
	return e
}
