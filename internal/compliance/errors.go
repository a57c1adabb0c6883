package compliance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// UnknownToolError reports a tool name that is not registered.
type UnknownToolError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownToolError) Error() string {
	msg := "Unknown tool: " + e.Name
	if len(e.Suggestions) > 0 {
		msg += " (did you mean " + strings.Join(e.Suggestions, ", ") + "?)"
	}
	return msg
}

func (e *UnknownToolError) Unwrap() error { return ErrUnknownTool }

// InvalidArgumentsError reports arguments that do not match the tool's input schema.
type InvalidArgumentsError struct {
	Tool   string
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

func (e *InvalidArgumentsError) Unwrap() error { return ErrInvalidArguments }

func firstLeafValidationError(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	if err == nil {
		return nil
	}
	if len(err.Causes) == 0 {
		return err
	}
	for _, c := range err.Causes {
		if leaf := firstLeafValidationError(c); leaf != nil {
			return leaf
		}
	}
	return err
}

// describeValidation turns a schema validation failure into "at <location>: <message>".
func describeValidation(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	leaf := firstLeafValidationError(ve)
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	msg := leaf.Message
	if msg == "" {
		msg = leaf.Error()
	}
	return "at " + loc + ": " + msg
}
