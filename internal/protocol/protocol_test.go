package protocol

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/homectlx/panel/internal/errors"
)

func TestParseFunctionPath(t *testing.T) {
	tests := []struct {
		path   string
		module string
		op     string
	}{
		{"a/b", "a", "b"},
		{"a", "a", "ctl"},
		{"a/", "a", "ctl"},
		{"alarms/set/extra", "alarms", "set"},
		{" lights/status ", "lights", "status"},
		{"files/undefined", "files", "ctl"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			module, op, err := ParseFunctionPath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.module, module)
			assert.Equal(t, tt.op, op)
		})
	}

	for _, bad := range []string{"", "/status", "   "} {
		_, _, err := ParseFunctionPath(bad)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeProtocolInvalidFunctionPath), "path %q", bad)
	}
}

func TestFromURL(t *testing.T) {
	tests := []struct {
		raw    string
		module string
		op     string
		args   string
	}{
		{"http://panel/lights/status?room=kitchen", "lights", "status", `{"room":"kitchen"}`},
		{"http://panel/", "start", "ctl", `{}`},
		{"http://panel", "start", "ctl", `{}`},
		{"http://panel/files", "files", "ctl", `{}`},
		{"http://panel/files/directory?b=2&a=1&b=3", "files", "directory", `{"b":"3","a":"1"}`},
		{"http://panel/x/y?msg=hello%20world&empty=", "x", "y", `{"msg":"hello world","empty":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			cmd := FromURL(u)
			assert.Equal(t, tt.module, cmd.Module)
			assert.Equal(t, tt.op, cmd.Operation)
			got, err := json.Marshal(cmd.Args)
			require.NoError(t, err)
			assert.JSONEq(t, tt.args, string(got))
			assert.NotEmpty(t, cmd.ID)
		})
	}
}

func TestExecuteMessageShape(t *testing.T) {
	u, _ := url.Parse("http://panel/lights/status?room=kitchen")
	data, err := Encode(MessageTypeExecute, FromURL(u).Payload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"execute","payload":{"vm":"lights","func":"status","args":{"room":"kitchen"}}}`, string(data))

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeExecute, msg.Type)

	var p ExecutePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, "lights", p.VM)
	v, ok := p.Args.Get("room")
	require.True(t, ok)
	assert.Equal(t, "kitchen", v.Scalar)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProtocolInvalidMessage))

	_, err = Decode([]byte(`{"payload":{}}`))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProtocolInvalidMessage))
}

func TestArgMap_OrderAndShapes(t *testing.T) {
	m := NewArgMap()
	m.SetScalar("name", "first")
	m.EnsureList("rooms")
	m.AppendList("rooms", "kitchen")
	m.AppendList("rooms", "hall")
	m.EnsureList("empty")
	b := NewFileBundle([]string{"a.txt", "b.png"})
	b.Bytes[0] = "data:text/plain;base64,YQ=="
	b.Bytes[1] = "data:image/png;base64,iVBO"
	m.SetFiles("upload", b)
	m.SetScalar("name", "second")

	assert.Equal(t, []string{"name", "rooms", "empty", "upload"}, m.Keys())

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t,
		`{"name":"second","rooms":["kitchen","hall"],"empty":[],"upload":{"names":["a.txt","b.png"],"bytes":["data:text/plain;base64,YQ==","data:image/png;base64,iVBO"]}}`,
		string(data))

	var back ArgMap
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m.Keys(), back.Keys())
	v, _ := back.Get("empty")
	assert.Equal(t, KindList, v.Kind)
	assert.Empty(t, v.List)
	v, _ = back.Get("upload")
	assert.Equal(t, KindFiles, v.Kind)
	assert.Equal(t, []string{"a.txt", "b.png"}, v.Files.Names)
}

func TestArgMap_EnsureListKeepsExisting(t *testing.T) {
	m := NewArgMap()
	m.AppendList("c", "1")
	m.EnsureList("c")
	v, _ := m.Get("c")
	assert.Equal(t, []string{"1"}, v.List)
}

func TestArgMap_Merge(t *testing.T) {
	a := NewArgMap()
	a.SetScalar("x", "1")
	a.SetScalar("y", "2")
	b := NewArgMap()
	b.SetScalar("y", "override")
	b.SetScalar("z", "3")
	a.Merge(b)

	assert.Equal(t, []string{"x", "y", "z"}, a.Keys())
	v, _ := a.Get("y")
	assert.Equal(t, "override", v.Scalar)
}

func TestFragmentSet_Decode(t *testing.T) {
	payload := json.RawMessage(`{"panel-2":"<div id='panel-2'>b</div>","panel-1":"<div id='panel-1'>ok</div>","_error":"","skip":null}`)
	set, err := DecodeResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, []string{"panel-2", "panel-1", "_error"}, set.IDs())

	markup, ok := set.Get("panel-1")
	require.True(t, ok)
	assert.Equal(t, "<div id='panel-1'>ok</div>", markup)
	assert.True(t, set[2].IsNotification())

	out, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `{"panel-2":"<div id='panel-2'>b</div>","panel-1":"<div id='panel-1'>ok</div>","_error":""}`, string(out))
}

func TestFragmentSet_DecodeInvalid(t *testing.T) {
	for _, raw := range []string{`[]`, `{"a":1}`, `"x"`} {
		_, err := DecodeResponse(json.RawMessage(raw))
		assert.True(t, apperrors.IsCode(err, apperrors.CodeProtocolInvalidFragmentSet), raw)
	}
}
