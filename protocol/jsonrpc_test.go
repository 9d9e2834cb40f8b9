package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRPCRequestDecoding(t *testing.T) {
	var req JSONRPCRequest
	err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":"req-123","method":"tools/list","params":{"cursor":"x"}}`), &req)
	require.NoError(t, err)

	assert.Equal(t, "2.0", req.JSONRPC)
	assert.Equal(t, `"req-123"`, string(req.ID))
	assert.Equal(t, "tools/list", req.Method)
	assert.False(t, req.IsNotification())

	var params ListToolsRequestParams
	require.NoError(t, UnmarshalParams(req.Params, &params))
	assert.Equal(t, "x", params.Cursor)
}

func TestJSONRPCNotificationHasNoID(t *testing.T) {
	var req JSONRPCRequest
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`), &req))
	assert.True(t, req.IsNotification())

	// An explicit null id is still a request.
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":null,"method":"ping"}`), &req))
	assert.False(t, req.IsNotification())
}

func TestUnmarshalParamsAbsent(t *testing.T) {
	params := CallToolParams{Name: "keep"}
	require.NoError(t, UnmarshalParams(nil, &params))
	require.NoError(t, UnmarshalParams(json.RawMessage("null"), &params))
	assert.Equal(t, "keep", params.Name)

	err := UnmarshalParams(json.RawMessage(`[1,2]`), &params)
	assert.Error(t, err)
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(json.RawMessage(`42`), map[string]string{"status": "ok"})
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.JSONEq(t, `{"jsonrpc":"2.0","id":42,"result":{"status":"ok"}}`, string(data))
}

func TestNewSuccessResponseEmptyResult(t *testing.T) {
	data, err := json.Marshal(NewSuccessResponse(json.RawMessage(`"p"`), nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"p","result":{}}`, string(data))
}

func TestNewErrorResponse(t *testing.T) {
	errorResp := NewErrorResponse(json.RawMessage(`"err-id"`), CodeInternalError, "Internal error", nil)
	assert.Equal(t, "2.0", errorResp.JSONRPC)
	assert.Nil(t, errorResp.Result)
	require.NotNil(t, errorResp.Error)
	assert.Equal(t, CodeInternalError, errorResp.Error.Code)

	// Unknown id serializes as null.
	data, err := json.Marshal(NewErrorResponse(nil, CodeParseError, "Parse error", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`, string(data))
}

func TestMCPErrorResponse(t *testing.T) {
	mcpErr := NewError(CodeInvalidParams, "bad config", map[string]interface{}{"configPath": "/tmp/x.json"})
	resp := NewErrorResponseFrom(json.RawMessage(`7`), mcpErr)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"error":{"code":-32602,"message":"bad config","data":{"configPath":"/tmp/x.json"}}}`, string(data))
	assert.Contains(t, mcpErr.Error(), "Code=-32602")
}

func TestNewMethodNotFoundError(t *testing.T) {
	err := NewMethodNotFoundError("resources/list")
	assert.Equal(t, CodeMethodNotFound, err.Code)
	assert.Equal(t, "Method not found: resources/list", err.Message)
}

func TestToolSchemaRequiredIsArray(t *testing.T) {
	tool := Tool{
		Name:        "t",
		InputSchema: ToolInputSchema{Type: "object", Required: []string{}},
	}
	data, err := json.Marshal(tool)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"t","inputSchema":{"type":"object","required":[]}}`, string(data))
}

func TestNewTextResult(t *testing.T) {
	data, err := json.Marshal(NewTextResult("2025-08-26"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"2025-08-26"}]}`, string(data))
}
