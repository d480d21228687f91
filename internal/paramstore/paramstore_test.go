package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	in  *ssm.GetParameterInput
	out *ssm.GetParameterOutput
	err error
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.in = in
	return f.out, f.err
}

type fakeGetter struct {
	val   string
	err   error
	calls int
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.val, f.err
}

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func TestStoreGetParameter(t *testing.T) {
	api := &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: strPtr("sk-123")}}}
	s, err := New(api)
	require.NoError(t, err)

	v, err := s.GetParameter(context.Background(), " /clinic/openai ")
	require.NoError(t, err)
	require.Equal(t, "sk-123", v)
	require.Equal(t, "/clinic/openai", *api.in.Name)
	require.True(t, *api.in.WithDecryption)
}

func TestStoreErrors(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	_, err = (&Store{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")

	s, _ := New(&fakeSSM{})
	_, err = s.GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")

	s, _ = New(&fakeSSM{err: errors.New("access denied")})
	_, err = s.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "access denied")

	s, _ = New(&fakeSSM{out: &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{}}})
	_, err = s.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "no value")
}

// ---------------------------------------------------------------------------
// ResolveSecret
// ---------------------------------------------------------------------------

func TestResolveSecretInlineWins(t *testing.T) {
	g := &fakeGetter{val: "from-ssm"}
	v, err := ResolveSecret(context.Background(), g, " sk-inline ", "/p")
	require.NoError(t, err)
	require.Equal(t, "sk-inline", v)
	require.Zero(t, g.calls)
}

func TestResolveSecretNothingConfigured(t *testing.T) {
	v, err := ResolveSecret(context.Background(), nil, "", "")
	require.NoError(t, err)
	require.Empty(t, v)
}

func TestResolveSecretFromParameter(t *testing.T) {
	cases := map[string]string{
		"sk-plain\n":               "sk-plain",
		`{"token":"sk-json"}`:      "sk-json",
		`{"value":" sk-value "}`:   "sk-value",
		`{"key":"sk-key","x":"y"}`: "sk-key",
	}
	for raw, want := range cases {
		v, err := ResolveSecret(context.Background(), &fakeGetter{val: raw}, "", "/p")
		require.NoError(t, err, raw)
		require.Equal(t, want, v)
	}
}

func TestResolveSecretFailures(t *testing.T) {
	_, err := ResolveSecret(context.Background(), nil, "", "/p")
	require.ErrorContains(t, err, "no store")

	_, err = ResolveSecret(context.Background(), &fakeGetter{err: errors.New("boom")}, "", "/p")
	require.ErrorContains(t, err, "boom")

	_, err = ResolveSecret(context.Background(), &fakeGetter{val: `{"broken`}, "", "/p")
	require.ErrorContains(t, err, "not valid JSON")

	_, err = ResolveSecret(context.Background(), &fakeGetter{val: `{"other":"x"}`}, "", "/p")
	require.ErrorContains(t, err, "empty")
}
