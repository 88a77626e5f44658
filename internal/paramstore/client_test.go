package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out    *ssm.GetParameterOutput
	err    error
	lastIn *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastIn = in
	return f.out, f.err
}

func withValue(v *string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name:  aws.String("/rollcall/bot-token"),
		Type:  types.ParameterTypeSecureString,
		Value: v,
	}}
}

func TestGetParameter(t *testing.T) {
	api := &fakeSSM{out: withValue(aws.String("123:abc\n"))}
	c, err := New(api)
	require.NoError(t, err)

	v, err := c.GetParameter(context.Background(), " /rollcall/bot-token ")
	require.NoError(t, err)
	require.Equal(t, "123:abc", v)
	require.Equal(t, "/rollcall/bot-token", aws.ToString(api.lastIn.Name))
	require.True(t, aws.ToBool(api.lastIn.WithDecryption))
}

func TestGetParameter_Failures(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeSSM
		arg  string
		want string
	}{
		{"empty name", &fakeSSM{}, "  ", "name is required"},
		{"api error", &fakeSSM{err: errors.New("ParameterNotFound")}, "p", "ParameterNotFound"},
		{"nil output", &fakeSSM{}, "p", "has no value"},
		{"nil value", &fakeSSM{out: withValue(nil)}, "p", "has no value"},
		{"blank value", &fakeSSM{out: withValue(aws.String("  "))}, "p", "is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.api)
			require.NoError(t, err)
			_, err = c.GetParameter(context.Background(), tt.arg)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "must not be nil")
}
