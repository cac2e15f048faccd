// ABOUTME: Tests for the stdio transport using in-memory readers and writers.
// ABOUTME: Covers ordering, blank lines, malformed input and EOF shutdown.

package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, tr Transport) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("transport did not finish")
	}
}

func readLines(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m), scanner.Text())
		lines = append(lines, m)
	}
	return lines
}

func TestStdioRoundTrip(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
		``,
		`   `,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"nope"}`,
	}, "\n"))
	var out bytes.Buffer

	tr := NewStdio(in, &out, nil)
	require.NoError(t, tr.Start(context.Background(), newEngineHandler(t)))
	waitDone(t, tr)
	assert.False(t, tr.IsRunning(), "EOF stops the transport")

	lines := readLines(t, &out)
	require.Len(t, lines, 3, "blank lines produce no output")

	assert.Equal(t, float64(1), lines[0]["id"])
	assert.Equal(t, float64(2), lines[1]["id"])
	content := lines[1]["result"].(map[string]any)["content"].([]any)
	assert.Equal(t, "Echo: hi", content[0].(map[string]any)["text"])
	assert.Equal(t, float64(-1), lines[2]["error"].(map[string]any)["code"])
}

func TestStdioMalformedLineContinues(t *testing.T) {
	in := strings.NewReader("not json at all\n" + `{"jsonrpc":"2.0","id":9,"method":"tools/list"}` + "\n")
	var out bytes.Buffer

	tr := NewStdio(in, &out, nil)
	require.NoError(t, tr.Start(context.Background(), newEngineHandler(t)))
	waitDone(t, tr)

	lines := readLines(t, &out)
	require.Len(t, lines, 2)

	assert.Nil(t, lines[0]["id"])
	errObj := lines[0]["error"].(map[string]any)
	assert.Equal(t, float64(-32700), errObj["code"])
	assert.True(t, strings.HasPrefix(errObj["message"].(string), "Error while parsing received JSON text: "))

	assert.Equal(t, float64(9), lines[1]["id"])
	assert.Equal(t, "MCP Server not initialized!", lines[1]["error"].(map[string]any)["message"])
}

func TestStdioOneResponsePerRequest(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString(`{"jsonrpc":"2.0","id":`)
		b.WriteString(strings.Repeat("1", 1+i%3))
		b.WriteString(`,"method":"tools/list"}` + "\n")
	}
	var out bytes.Buffer

	tr := NewStdio(strings.NewReader(b.String()), &out, nil)
	require.NoError(t, tr.Start(context.Background(), newEngineHandler(t)))
	waitDone(t, tr)

	assert.Len(t, readLines(t, &out), 100)
}

func TestStdioStop(t *testing.T) {
	pr, pw := io.Pipe()
	var out bytes.Buffer

	tr := NewStdio(pr, &out, nil)
	handler := newEngineHandler(t)
	require.NoError(t, tr.Start(context.Background(), handler))
	assert.True(t, tr.IsRunning())
	assert.ErrorIs(t, tr.Start(context.Background(), handler), ErrAlreadyRunning)

	require.NoError(t, tr.Stop())
	assert.False(t, tr.IsRunning())
	assert.ErrorIs(t, tr.Stop(), ErrNotRunning)

	// The blocked read returns with this line, which must not be dispatched.
	_, err := pw.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n"))
	require.NoError(t, err)
	waitDone(t, tr)
	_ = pw.Close()

	assert.Empty(t, out.String())
}
