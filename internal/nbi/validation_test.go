package nbi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestDecodeFailureStateRequest(t *testing.T) {
	in, err := structpb.NewStruct(map[string]any{"ids": []any{3, 4}, "up": false})
	require.NoError(t, err)

	var req FailureStateRequest
	require.NoError(t, decodeRequest(in, &req))
	assert.Equal(t, []int64{3, 4}, req.IDs)
	require.NotNil(t, req.Up)
	assert.False(t, *req.Up)
}

func TestDecodeRequestErrors(t *testing.T) {
	var req FailureStateRequest
	assert.ErrorIs(t, decodeRequest(nil, &req), ErrInvalidRequest)

	in, err := structpb.NewStruct(map[string]any{"ids": []any{1.5}, "up": true})
	require.NoError(t, err)
	assert.ErrorIs(t, decodeRequest(in, &req), ErrInvalidRequest)
}

func TestStructConversionKeepsJSONNames(t *testing.T) {
	up := true
	s, err := toStruct(FailureStateRequest{IDs: []int64{9}, Up: &up})
	require.NoError(t, err)
	assert.Contains(t, s.GetFields(), "ids")
	assert.True(t, s.GetFields()["up"].GetBoolValue())

	var back FailureStateRequest
	require.NoError(t, fromStruct(s, &back))
	assert.Equal(t, []int64{9}, back.IDs)
}
