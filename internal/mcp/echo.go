// ABOUTME: Built-in echo tool registered on the first successful initialize.
// ABOUTME: Returns the passed message prefixed with "Echo: ".

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const echoToolName = "echo"

const echoInputSchema = `{"type":"object","properties":{"message":{"type":"string","description":"The message that shall be echoed."}},"required":["message"]}`

type echoArgs struct {
	Message *string `json:"message"`
}

func registerEchoTool(r ToolRegistrar) {
	r.RegisterTool(echoToolName,
		"A simple tool that returns the passed message as its response.",
		json.RawMessage(echoInputSchema),
		echo,
	)
}

func echo(_ context.Context, arguments json.RawMessage) (*ToolResult, error) {
	var args echoArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Message == nil {
		return nil, errors.New("missing required argument 'message'")
	}
	return TextResult("Echo: " + *args.Message), nil
}
