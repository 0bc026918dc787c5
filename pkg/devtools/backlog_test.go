package devtools

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgs(b *backlog) []string {
	var out []string
	for _, raw := range b.drain() {
		out = append(out, string(raw))
	}
	return out
}

func TestBacklog_DropOldest(t *testing.T) {
	b := newBacklog(2, DropOldest)
	assert.False(t, b.push([]byte("1")))
	assert.False(t, b.push([]byte("2")))
	assert.True(t, b.push([]byte("3")))
	assert.Equal(t, []string{"2", "3"}, msgs(b))
	assert.Zero(t, b.len())
}

func TestBacklog_DropNewest(t *testing.T) {
	b := newBacklog(2, DropNewest)
	b.push([]byte("1"))
	b.push([]byte("2"))
	assert.True(t, b.push([]byte("3")))
	assert.Equal(t, []string{"1", "2"}, msgs(b))
}

func TestBacklog_Requeue(t *testing.T) {
	b := newBacklog(3, DropOldest)
	b.push([]byte("3"))
	b.requeue([][]byte{[]byte("1"), []byte("2")})
	assert.Equal(t, []string{"1", "2", "3"}, msgs(b))

	b.push([]byte("4"))
	b.push([]byte("5"))
	b.requeue([][]byte{[]byte("2"), []byte("3")})
	assert.Equal(t, []string{"3", "4", "5"}, msgs(b))

	b = newBacklog(3, DropNewest)
	b.push([]byte("4"))
	b.push([]byte("5"))
	b.requeue([][]byte{[]byte("2"), []byte("3")})
	assert.Equal(t, []string{"2", "3", "4"}, msgs(b))
}

func TestBacklog_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultBacklogSize, newBacklog(0, DropOldest).size)
}

type node struct {
	Name   string `json:"name"`
	Parent *node  `json:"parent,omitempty"`
	secret string
}

func TestSafeMarshal_Cycles(t *testing.T) {
	m := map[string]any{"a": 1}
	m["self"] = m

	raw, err := safeMarshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"self":"[CIRCULAR]"}`, string(raw))

	n := &node{Name: "root", secret: "x"}
	n.Parent = n
	raw, err = safeMarshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"root","parent":"[CIRCULAR]"}`, string(raw))
}

func TestSafeMarshal_SharedValuesAreNotCircular(t *testing.T) {
	shared := map[string]any{"v": 1}
	raw, err := safeMarshal(map[string]any{"x": shared, "y": shared})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":{"v":1},"y":{"v":1}}`, string(raw))
}

func TestSafeMarshal_Unencodable(t *testing.T) {
	raw, err := safeMarshal(map[string]any{
		"fn": func() {},
		"ch": make(chan int),
		"ok": []int{1, 2},
	})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "[func()]", out["fn"])
	assert.Equal(t, "[chan int]", out["ch"])
	assert.Equal(t, []any{1.0, 2.0}, out["ok"])
}

func TestTranslate(t *testing.T) {
	_, ok := translate(domain.Event{Type: domain.EventFunctionEnd, Data: map[string]any{
		domain.DataOutput: domain.Payload(nil),
	}})
	assert.False(t, ok, "functionEnd without output is not forwarded")

	msg, ok := translate(domain.Event{
		Type:          domain.EventFunctionError,
		Source:        "ft",
		ExecutionID:   "e1",
		FunctionIndex: domain.IndexOf(2),
		Data: map[string]any{
			domain.DataName:  "charge",
			domain.DataError: map[string]any{"kind": "StepExecutionError", "message": "declined"},
		},
	})
	require.True(t, ok)
	assert.Equal(t, MsgExecutionFunctionError, msg.Type)

	raw, err := safeMarshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "executionFunctionError",
		"source": "ft",
		"data": {"execution": {
			"executionId": "e1",
			"functionIndex": 2,
			"error": {"name": "StepExecutionError", "message": "declined", "func": "charge"}
		}}
	}`, string(raw))
}
