// ABOUTME: Envelope and parameter checks shared by the dispatch engine.
// ABOUTME: Every check returns a dispatchError carrying the client-facing message.

package mcp

import (
	"encoding/json"
	"errors"
)

// ErrNotInitialized is the failure for any method other than initialize before the handshake.
var ErrNotInitialized = errors.New("MCP Server not initialized!")

// dispatchError is a failure that becomes a JSON-RPC error object.
type dispatchError struct {
	code    int
	message string
}

func (e *dispatchError) Error() string {
	return e.message
}

func errNotInitialized() *dispatchError {
	return &dispatchError{code: CodeDispatchError, message: ErrNotInitialized.Error()}
}

func checkJSONRPCVersion(envelope map[string]json.RawMessage) *dispatchError {
	var version *string
	raw, ok := envelope["jsonrpc"]
	if ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			version = nil
		}
	}
	if version == nil || *version != JSONRPCVersion {
		return &dispatchError{
			code:    CodeDispatchError,
			message: "Missing or invalid JSON-RPC version -- must be version 2.0!",
		}
	}
	return nil
}

func checkProtocolVersion(params map[string]json.RawMessage) *dispatchError {
	version, derr := stringParam(params, "protocolVersion")
	if derr != nil {
		return derr
	}
	if version != SupportedProtocolVersion {
		return &dispatchError{
			code:    CodeDispatchError,
			message: "Unsupported MCP protocol version: " + version,
		}
	}
	return nil
}

// stringParam extracts a required string member of obj.
func stringParam(obj map[string]json.RawMessage, name string) (string, *dispatchError) {
	raw, ok := obj[name]
	if !ok {
		return "", &dispatchError{
			code:    CodeDispatchError,
			message: "Missing parameter '" + name + "' in JSON object.",
		}
	}

	var value *string
	if err := json.Unmarshal(raw, &value); err != nil || value == nil {
		return "", &dispatchError{
			code:    CodeDispatchError,
			message: "Parameter '" + name + "' must be a string.",
		}
	}
	return *value, nil
}

// objectParam returns the named member as an object, or an empty object when it
// is absent or not an object.
func objectParam(obj map[string]json.RawMessage, name string) map[string]json.RawMessage {
	params := map[string]json.RawMessage{}
	if raw, ok := obj[name]; ok {
		if err := json.Unmarshal(raw, &params); err != nil || params == nil {
			return map[string]json.RawMessage{}
		}
	}
	return params
}
