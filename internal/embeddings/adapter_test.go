package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	dims int
	vec  []float32
}

func (p staticProvider) Name() string    { return "static" }
func (p staticProvider) Dimensions() int { return p.dims }
func (p staticProvider) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range out {
		out[i] = p.vec
	}
	return out, nil
}

func TestWrapToDimsPassthrough(t *testing.T) {
	base := staticProvider{dims: 4, vec: []float32{1, 2, 3, 4}}
	assert.Equal(t, Provider(base), WrapToDims(base, 4, ""))
	assert.Nil(t, WrapToDims(nil, 4, ""))
}

func TestWrapToDimsTruncates(t *testing.T) {
	base := staticProvider{dims: 6, vec: []float32{1, 2, 3, 4, 5, 6}}
	p := WrapToDims(base, 4, "")
	assert.Equal(t, 4, p.Dimensions())

	vecs, err := p.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, []float32{1, 2, 3, 4}, vecs[0])
}

func TestWrapToDimsPads(t *testing.T) {
	base := staticProvider{dims: 2, vec: []float32{1, 2}}
	p := WrapToDims(base, 4, "")

	vecs, err := p.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, []float32{1, 2, 0, 0}, vecs[0])
}

func TestNewFromEnvDisabled(t *testing.T) {
	t.Setenv("EMBEDDINGS_PROVIDER", "")
	assert.Nil(t, NewFromEnv())

	t.Setenv("EMBEDDINGS_PROVIDER", "something-else")
	assert.Nil(t, NewFromEnv())
}
