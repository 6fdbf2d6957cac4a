package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runnerTransaction = `{
  "name": "/tasks/{id} > Get task by ID > 200 > application/json",
  "id": "GET (200) /tasks/1",
  "host": "127.0.0.1",
  "port": "8080",
  "protocol": "http:",
  "fullPath": "/tasks/1",
  "origin": {"resourceName": "/tasks/{id}", "actionName": "Get task by ID"},
  "request": {
    "method": "GET",
    "uri": "/tasks/1",
    "headers": {"Accept": "application/json"},
    "body": "",
    "bodyEncoding": "utf-8"
  },
  "expected": {
    "statusCode": "200",
    "headers": {"Content-Type": "application/json"},
    "bodySchema": "{\"type\":\"object\"}"
  },
  "skip": false
}`

func TestTransaction_Decode(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(runnerTransaction), &tx))

	assert.Equal(t, "/tasks/{id} > Get task by ID > 200 > application/json", tx.Name)
	assert.Equal(t, "/tasks/1", tx.FullPath)
	assert.Equal(t, "GET", tx.Request.Method)
	assert.Equal(t, "/tasks/1", tx.Request.URI)
	assert.Equal(t, "application/json", tx.Request.Header("accept"))
	assert.Equal(t, StatusCode(200), tx.Expected.StatusCode)
}

func TestTransaction_EncodeKeepsRunnerFields(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(runnerTransaction), &tx))

	tx.FullPath = "/tasks/42"
	tx.Request.URI = "/tasks/42"
	tx.Request.SetHeader("Authorization", "Bearer abc")

	encoded, err := json.Marshal(&tx)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(encoded, &out))

	assert.Equal(t, "GET (200) /tasks/1", out["id"])
	assert.Equal(t, "8080", out["port"])
	assert.Equal(t, false, out["skip"])
	assert.Equal(t, "/tasks/42", out["fullPath"])

	origin := out["origin"].(map[string]any)
	assert.Equal(t, "Get task by ID", origin["actionName"])

	request := out["request"].(map[string]any)
	assert.Equal(t, "utf-8", request["bodyEncoding"])
	assert.Equal(t, "/tasks/42", request["uri"])
	headers := request["headers"].(map[string]any)
	assert.Equal(t, "Bearer abc", headers["Authorization"])
	assert.Equal(t, "application/json", headers["Accept"])

	expected := out["expected"].(map[string]any)
	assert.Equal(t, "200", expected["statusCode"])
	assert.Equal(t, `{"type":"object"}`, expected["bodySchema"])
}

func TestStatusCode_Decode(t *testing.T) {
	tests := []struct {
		in   string
		want StatusCode
	}{
		{`200`, 200},
		{`"401"`, 401},
		{`""`, 0},
		{`null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got StatusCode
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	var bad StatusCode
	assert.Error(t, json.Unmarshal([]byte(`"OK"`), &bad))
}

func TestRequest_SetHeaderReplacesOtherSpellings(t *testing.T) {
	r := Request{Headers: map[string]string{"authorization": "Bearer old", "Accept": "*/*"}}

	r.SetHeader("Authorization", "Bearer new")

	assert.Equal(t, map[string]string{"Authorization": "Bearer new", "Accept": "*/*"}, r.Headers)
	assert.Equal(t, "Bearer new", r.Header("AUTHORIZATION"))
}

func TestRequest_SetHeaderOnNilMap(t *testing.T) {
	var r Request
	r.SetHeader("Authorization", "Bearer x")
	assert.Equal(t, "Bearer x", r.Header("Authorization"))
}

func TestRequest_SetJSONBody(t *testing.T) {
	var r Request
	require.NoError(t, r.SetJSONBody(map[string]string{"title": ""}))
	assert.JSONEq(t, `{"title": ""}`, r.Body)
}

func TestResourceID_Decode(t *testing.T) {
	var task Task
	require.NoError(t, json.Unmarshal([]byte(`{"id": 17, "user_id": "u-3", "title": "x"}`), &task))
	assert.Equal(t, ResourceID("17"), task.ID)
	assert.Equal(t, ResourceID("u-3"), task.UserID)
}

func TestSession_States(t *testing.T) {
	s := NewSession()
	assert.False(t, s.Authenticated())
	assert.Equal(t, "", s.BearerToken())
	assert.Equal(t, "unauthenticated", s.State())

	s.Token = "tok"
	s.TaskID = "9"
	assert.True(t, s.Authenticated())
	assert.True(t, s.HasSeededTask())
	assert.Equal(t, "Bearer tok", s.BearerToken())
	assert.Equal(t, "authenticated", s.State())

	var nilSession *Session
	assert.False(t, nilSession.Authenticated())
	assert.False(t, nilSession.HasSeededTask())
}

func TestNewAPIError(t *testing.T) {
	err := NewAPIError("POST", "/register", 400, []byte(`{"error":"username already exists"}`))

	assert.True(t, err.IsClientError())
	assert.False(t, err.IsUnauthorized())
	assert.Equal(t, "username already exists", err.Message)
	assert.Equal(t, "POST /register: [400] username already exists", err.Error())

	plain := NewAPIError("DELETE", "/tasks/3", 404, []byte("not json"))
	assert.True(t, plain.IsNotFound())
	assert.Equal(t, "DELETE /tasks/3: [404] Not Found", plain.Error())

	wrapped := error(plain)
	got, ok := AsAPIError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 404, got.StatusCode)
}
