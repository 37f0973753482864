package gate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDenyList_Match(t *testing.T) {
	d := NewDenyList([]string{"darn", "Heck No", "  ", "darn"})
	assert.Equal(t, 2, d.Len())

	tests := []struct {
		text string
		want bool
	}{
		{"well darn it", true},
		{"DARN!", true},
		{"darned socks", false},
		{"undarn", false},
		{"heck no, not today", true},
		{"HECK   no", true},
		{"heck yes", false},
		{"no heck", false},
		{"dárn it", true},
		{"darń it", true},
		{"that is darn's fault", true},
		{"darn'd it all", true},
		{"darn’s sake", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Match(tt.text))
		})
	}
}

func TestDenyList_DefaultCatchesContractions(t *testing.T) {
	d := DefaultDenyList()
	assert.True(t, d.Match("that is shit's fault"))
	assert.True(t, d.Match("fuck'n hell"))
	assert.True(t, d.Match("what the shit."))
	assert.False(t, d.Match("shitake mushrooms"))
	assert.False(t, d.Match("it's a fine day"))
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"shit", "s", "fault"}, Words("Shit's fault"))
	assert.Equal(t, []string{"abc123def", "42"}, Words("abc123def, 42!"))
	assert.Empty(t, Words("... '' !!!"))
}

func TestDenyList_AccentedTerms(t *testing.T) {
	d := NewDenyList([]string{"crème"})
	assert.True(t, d.Match("la creme de la creme"))
	assert.True(t, d.Match("CRÈME brûlée"))
	assert.False(t, d.Match("cream"))
}

func TestDenyList_EmptyMatchesNothing(t *testing.T) {
	var nilList *DenyList
	assert.False(t, nilList.Match("anything"))
	assert.False(t, NewDenyList(nil).Match("shit"))
}

func TestDefaultDenyList(t *testing.T) {
	d := DefaultDenyList()
	assert.True(t, d.Match(profaneText))
	assert.True(t, d.Match("what a son of a bitch"))
	assert.False(t, d.Match(englishText))
}

func TestLoadDenyList(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}

	t.Run("yaml", func(t *testing.T) {
		d, err := LoadDenyList(write("terms.yaml", "terms:\n  - darn\n  - heck no\n"))
		require.NoError(t, err)
		assert.Equal(t, 2, d.Len())
		assert.True(t, d.Match("oh heck no"))
	})

	t.Run("toml", func(t *testing.T) {
		d, err := LoadDenyList(write("terms.toml", "terms = [\"darn\", \"blast\"]\n"))
		require.NoError(t, err)
		assert.True(t, d.Match("blast it"))
	})

	t.Run("plain text", func(t *testing.T) {
		d, err := LoadDenyList(write("terms.txt", "# mild words\ndarn\n\nblast\n"))
		require.NoError(t, err)
		assert.Equal(t, 2, d.Len())
	})

	t.Run("empty file is an error", func(t *testing.T) {
		_, err := LoadDenyList(write("empty.txt", "# nothing\n"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := LoadDenyList(write("bad.yml", "terms: [unclosed\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadDenyList(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}
