package rpc

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runServe(t *testing.T, input string, handle Handler) []Response {
	t.Helper()
	var out bytes.Buffer
	s := New(strings.NewReader(input), &out, handle)
	require.NoError(t, s.Serve())

	var responses []Response
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestServeEchoesIDOnSuccess(t *testing.T) {
	responses := runServe(t, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`+"\n", func(method string, params json.RawMessage) (any, *Error) {
		return map[string]string{"protocolVersion": "2024-11-05"}, nil
	})

	require.Len(t, responses, 1)
	assert.JSONEq(t, "1", string(responses[0].ID))
	require.NotNil(t, responses[0].Result)
	assert.Contains(t, string(responses[0].Result), "2024-11-05")
}

func TestServeReturnsParseErrorOnMalformedJSON(t *testing.T) {
	responses := runServe(t, "not json\n", func(string, json.RawMessage) (any, *Error) {
		t.Fatal("handler should not run for malformed input")
		return nil, nil
	})

	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, CodeParseError, responses[0].Error.Code)
}

func TestServeMethodNotFoundDoesNotStopLoop(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"bogus"}` + "\n" + `{"jsonrpc":"2.0","id":2,"method":"initialize"}` + "\n"

	responses := runServe(t, input, func(method string, params json.RawMessage) (any, *Error) {
		if method == "bogus" {
			return nil, &Error{Code: CodeMethodNotFound, Message: "unknown method"}
		}
		return map[string]bool{"ok": true}, nil
	})

	require.Len(t, responses, 2)
	assert.Equal(t, CodeMethodNotFound, responses[0].Error.Code)
	assert.Nil(t, responses[1].Error)
}

func TestServeSkipsReplyForNotifications(t *testing.T) {
	called := false
	responses := runServe(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`+"\n", func(method string, params json.RawMessage) (any, *Error) {
		called = true
		return nil, nil
	})

	assert.True(t, called)
	assert.Empty(t, responses)
}

func TestNotifyWritesNotificationLine(t *testing.T) {
	var out bytes.Buffer
	s := New(strings.NewReader(""), &out, func(string, json.RawMessage) (any, *Error) { return nil, nil })

	s.Log("info", "test", "hello world")

	var n Notification
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &n))
	assert.Equal(t, "notifications/message", n.Method)

	var params LogNotificationParams
	require.NoError(t, json.Unmarshal(n.Params, &params))
	assert.Equal(t, "hello world", params.Message)
}
