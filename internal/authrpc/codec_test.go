package authrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodec_Registered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	assert.Equal(t, CodecName, c.Name())
}

func TestCodec_FieldNames(t *testing.T) {
	b, err := jsonCodec{}.Marshal(&RefreshRequest{RefreshToken: "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"refreshToken":"abc"}`, string(b))

	var out Tokens
	require.NoError(t, jsonCodec{}.Unmarshal([]byte(`{"accessToken":"a","expiresIn":900}`), &out))
	assert.Equal(t, "a", out.AccessToken)
	assert.Equal(t, int64(900), out.ExpiresIn)
}

func TestCodec_EmptyPayload(t *testing.T) {
	var e Empty
	assert.NoError(t, jsonCodec{}.Unmarshal(nil, &e))
}

func TestCodec_BadPayload(t *testing.T) {
	var out Tokens
	assert.Error(t, jsonCodec{}.Unmarshal([]byte("{"), &out))
}
