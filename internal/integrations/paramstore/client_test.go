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
	getOut *ssm.GetParameterOutput
	getErr error

	values      map[string]string
	batchErr    error
	batchInputs []*ssm.GetParametersInput
}

func (f *fakeAPI) GetParameter(_ context.Context, _ *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return f.getOut, f.getErr
}

func (f *fakeAPI) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.batchInputs = append(f.batchInputs, in)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		v, ok := f.values[name]
		if !ok {
			out.InvalidParameters = append(out.InvalidParameters, name)
			continue
		}
		out.Parameters = append(out.Parameters, types.Parameter{Name: strPtr(name), Value: strPtr(v)})
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr(`{"k":"v"}`),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
}

func TestGetParameter_HappyPath_SecureString(t *testing.T) {
	typeStr := "SecureString"
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr(`{"k":"v"}`), Type: types.ParameterType(typeStr),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	api := &fakeAPI{}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestGetParameters_HappyPath(t *testing.T) {
	api := &fakeAPI{values: map[string]string{
		"/pod/config/chat_model":   "gpt-4o-mini",
		"/pod/config/vision_model": "gpt-4o",
	}}
	client, err := New(api)
	require.NoError(t, err)

	got, err := client.GetParameters(context.Background(), "/pod/config/chat_model", " /pod/config/vision_model ")
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"/pod/config/chat_model":   "gpt-4o-mini",
		"/pod/config/vision_model": "gpt-4o",
	}, got)
	require.Len(t, api.batchInputs, 1)
	require.True(t, *api.batchInputs[0].WithDecryption)
}

func TestGetParameters_Batches(t *testing.T) {
	api := &fakeAPI{values: map[string]string{}}
	names := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		name := "/pod/p" + string(rune('a'+i))
		api.values[name] = "v"
		names = append(names, name)
	}
	client, err := New(api)
	require.NoError(t, err)

	got, err := client.GetParameters(context.Background(), names...)
	require.NoError(t, err)
	require.Len(t, got, 12)
	require.Len(t, api.batchInputs, 2)
	require.Len(t, api.batchInputs[0].Names, 10)
	require.Len(t, api.batchInputs[1].Names, 2)
}

func TestGetParameters_Invalid(t *testing.T) {
	api := &fakeAPI{values: map[string]string{"/pod/a": "v"}}
	client, err := New(api)
	require.NoError(t, err)

	_, err = client.GetParameters(context.Background(), "/pod/a", "/pod/missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "/pod/missing")
}

func TestGetParameters_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{batchErr: errors.New("throttled")})
	require.NoError(t, err)
	_, err = client.GetParameters(context.Background(), "/pod/a")
	require.ErrorContains(t, err, "throttled")
}

func TestGetParameters_RequiresNames(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.GetParameters(context.Background())
	require.Error(t, err)
	_, err = client.GetParameters(context.Background(), "/pod/a", " ")
	require.ErrorContains(t, err, "required")
}
