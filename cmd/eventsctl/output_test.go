package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRenderJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", []byte(`{"events":[{"id":1}]}`)))
	assert.Equal(t, "{\n  \"events\": [\n    {\n      \"id\": 1\n    }\n  ]\n}\n", buf.String())
}

func TestRenderYAMLKeepsTypesAndOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "yaml", []byte(`{"title":"Go meetup","id":7,"code":"123","tags":["a","b"]}`)))

	out := buf.String()
	assert.NotContains(t, out, "{")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("title")), bytes.Index(buf.Bytes(), []byte("id")))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Go meetup", decoded["title"])
	assert.Equal(t, 7, decoded["id"])
	assert.Equal(t, "123", decoded["code"])
	assert.Equal(t, []any{"a", "b"}, decoded["tags"])
}

func TestRenderEmptyPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", nil))
	assert.Empty(t, buf.String())
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, render(&buf, "xml", []byte(`{}`)))
}
