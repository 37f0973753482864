package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"don't stop", []string{"don't", "stop"}},
		{"it’s fine", []string{"it’s", "fine"}},
		{"'quoted' words", []string{"quoted", "words"}},
		{"abc123def", []string{"abc", "def"}},
		{"über Straße", []string{"über", "straße"}},
		{"!!! 42 ...", []string{}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestStopwordScore(t *testing.T) {
	assert.InDelta(t, 0.5, StopwordScore("the cat and dog"), 1e-9)
	assert.Equal(t, 0.0, StopwordScore(""))
	assert.Equal(t, 0.0, StopwordScore("12345 !!!"))
	assert.Equal(t, 0.0, StopwordScore("El zorro marrón rápido salta sobre el perro perezoso."))
	assert.Equal(t, 0.0, StopwordScore("这是一个中文句子"))
	assert.GreaterOrEqual(t, StopwordScore("Machine learning models benefit from clean, well labeled data."), 0.08)
	assert.Equal(t, StopwordScore(englishText), StopwordScore(englishText))
}
