package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/newsembed/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "same text")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "same text")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "other text")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 384)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockEmbedder_UnitLength(t *testing.T) {
	v := GenerateDeterministicVector("hello", 16)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_Injection(t *testing.T) {
	m := NewMockEmbedder()
	boom := errors.New("boom")
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}

	_, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	_, err = m.EmbedText(context.Background(), "a")
	assert.NoError(t, err)
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(ai.NewConfig(ai.WithBackend(ai.BackendMock), ai.WithDimension(8)))
	require.NoError(t, err)
	assert.Equal(t, 8, b.Dimension())

	require.NoError(t, b.Close())
	assert.True(t, b.(*MockEmbedder).Closed())
}
