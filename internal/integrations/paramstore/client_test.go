package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut  *ssm.GetParameterOutput
	getErr  error
	lastIn  *ssm.GetParameterInput
	callCnt int
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastIn = in
	f.callCnt++
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func valueOut(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: strPtr(v)}}
}

func TestGetParameter_PrefixedAndDecrypted(t *testing.T) {
	api := &fakeAPI{getOut: valueOut("sk-1")}
	client, err := New(api, "/market-bot/")
	require.NoError(t, err)

	v, err := client.GetParameter(context.Background(), "openai-token")
	require.NoError(t, err)
	require.Equal(t, "sk-1", v)
	require.Equal(t, "/market-bot/openai-token", *api.lastIn.Name)
	require.True(t, *api.lastIn.WithDecryption)
}

func TestParameterName(t *testing.T) {
	c := &Client{prefix: "/market-bot"}
	require.Equal(t, "/market-bot/line-token", c.ParameterName("line-token"))
	require.Equal(t, "/abs/name", c.ParameterName("/abs/name"))
	require.Equal(t, "", c.ParameterName("  "))
	require.Equal(t, "bare", (&Client{}).ParameterName("bare"))
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api, "")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{getErr: errors.New("boom")}, "")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	client, err := New(&fakeAPI{}, "/x")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "/x")
	require.ErrorContains(t, err, "must not be nil")
}

func TestParseToken(t *testing.T) {
	v, err := ParseToken(`{"token":"sk-json"}`)
	require.NoError(t, err)
	require.Equal(t, "sk-json", v)

	v, err = ParseToken("  raw-token \n")
	require.NoError(t, err)
	require.Equal(t, "raw-token", v)

	_, err = ParseToken(`{"other":"value"}`)
	require.ErrorContains(t, err, "empty")

	_, err = ParseToken(`{"broken`)
	require.ErrorContains(t, err, "unmarshal")
}

func TestSecret_LiteralWins(t *testing.T) {
	api := &fakeAPI{getOut: valueOut("from-ssm")}
	client, _ := New(api, "/x")

	s := NewSecret("from-env", client, "token")
	v, err := s.Value(context.Background())
	require.NoError(t, err)
	require.Equal(t, "from-env", v)
	require.Zero(t, api.callCnt)
}

func TestSecret_FetchedOnceOnSuccess(t *testing.T) {
	api := &fakeAPI{getOut: valueOut(`{"token":"sk-ssm"}`)}
	client, _ := New(api, "/x")
	s := NewSecret("", client, "token")
	require.True(t, s.Configured())

	for i := 0; i < 3; i++ {
		v, err := s.Value(context.Background())
		require.NoError(t, err)
		require.Equal(t, "sk-ssm", v)
	}
	require.Equal(t, 1, api.callCnt)
}

func TestSecret_RetriesAfterFailure(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("throttled")}
	client, _ := New(api, "/x")
	s := NewSecret("", client, "token")

	_, err := s.Value(context.Background())
	require.ErrorContains(t, err, "throttled")

	api.getErr = nil
	api.getOut = valueOut("sk-later")
	v, err := s.Value(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-later", v)
	require.Equal(t, 2, api.callCnt)
}

func TestSecret_NotConfigured(t *testing.T) {
	s := NewSecret("", nil, "token")
	require.False(t, s.Configured())
	_, err := s.Value(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)

	var nilSecret *Secret
	_, err = nilSecret.Value(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
	require.True(t, Static("x").Configured())
}
