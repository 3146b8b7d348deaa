package proto

import "fmt"

const (
	CodeIllegalPayloadFormat       = 1
	CodeMissingFieldTopic          = 2
	CodeMissingFieldData           = 3
	CodeMissingTopicHandler        = 4
	CodeInvalidDataForTopicHandler = 5
)

// ProtocolError is reported back across the boundary whenever an inbound
// message cannot be dispatched. The set of errors is closed; use the
// constructors below rather than building values by hand.
type ProtocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

func IllegalPayloadFormat() ProtocolError {
	return ProtocolError{Code: CodeIllegalPayloadFormat, Message: "Illegal payload format"}
}

func MissingFieldTopic() ProtocolError {
	return ProtocolError{Code: CodeMissingFieldTopic, Message: "Missing field: 'topic'"}
}

func MissingFieldData() ProtocolError {
	return ProtocolError{Code: CodeMissingFieldData, Message: "Missing field: 'data'"}
}

func MissingTopicHandler() ProtocolError {
	return ProtocolError{Code: CodeMissingTopicHandler, Message: "Missing topic handler"}
}

func InvalidDataForTopicHandler(topic string) ProtocolError {
	return ProtocolError{
		Code:    CodeInvalidDataForTopicHandler,
		Message: fmt.Sprintf("Invalid data for topic. Expected data topic '%s'", topic),
	}
}

// ErrorList is the data member of every error envelope. Errors are always
// sent as a list, even when only one occurred.
type ErrorList struct {
	Errors []ProtocolError `json:"errors"`
}

func NewErrorList(errs ...ProtocolError) ErrorList {
	if errs == nil {
		errs = []ProtocolError{}
	}
	return ErrorList{Errors: errs}
}

func (l ErrorList) Codes() []int {
	codes := make([]int, 0, len(l.Errors))
	for _, e := range l.Errors {
		codes = append(codes, e.Code)
	}
	return codes
}
