package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"label":  "alpha",
		"weight": float64(3),
		"ratio":  0.25,
		"tags":   []any{"a", true},
		"none":   nil,
	})
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	assert.Equal(t, String("alpha"), obj["label"])
	assert.Equal(t, Int(3), obj["weight"], "whole floats become Int")
	assert.Equal(t, Float(0.25), obj["ratio"])
	assert.Equal(t, Array{String("a"), Bool(true)}, obj["tags"])
	assert.Equal(t, Null{}, obj["none"])
}

func TestFromGoRejectsUnsupported(t *testing.T) {
	_, err := FromGo(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `["ch"]`)
}

func TestToGoRoundTrip(t *testing.T) {
	in := map[string]any{
		"n": int64(1),
		"f": 1.5,
		"s": "x",
		"a": []any{int64(2)},
	}
	v, err := FromGo(in)
	require.NoError(t, err)
	assert.Equal(t, in, ToGo(v))
}

func TestObjectJSON(t *testing.T) {
	var obj Object
	require.NoError(t, json.Unmarshal([]byte(`{"b":1,"a":0.5,"c":[true,"x"]}`), &obj))
	assert.Equal(t, Int(1), obj["b"])
	assert.Equal(t, Float(0.5), obj["a"])

	out, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":0.5,"b":1,"c":[true,"x"]}`, string(out))
}

func TestObjectUnmarshalRejectsNonObject(t *testing.T) {
	var obj Object
	err := json.Unmarshal([]byte(`[1,2]`), &obj)
	require.Error(t, err)
}

func TestObjectCloneIsDeep(t *testing.T) {
	orig := Object{"inner": Object{"k": Int(1)}, "list": Array{Int(1)}}
	cp := orig.Clone()

	cp["inner"].(Object)["k"] = Int(2)
	cp["list"].(Array)[0] = Int(9)

	assert.Equal(t, Int(1), orig["inner"].(Object)["k"])
	assert.Equal(t, Int(1), orig["list"].(Array)[0])
	assert.Nil(t, Object(nil).Clone())
}

func TestObjectMerge(t *testing.T) {
	base := Object{"fill": String("red"), "size": Int(10)}
	merged := base.Merge(Object{"size": Int(20)})

	assert.Equal(t, Object{"fill": String("red"), "size": Int(20)}, merged)
	assert.Equal(t, Int(10), base["size"], "base must not change")
}
