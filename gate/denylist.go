package gate

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/teranos/curate/errors"
)

// defaultTerms is the built-in deny-list used when no file is configured.
var defaultTerms = []string{
	"asshole",
	"bastard",
	"bitch",
	"bullshit",
	"cunt",
	"dickhead",
	"fuck",
	"fucking",
	"motherfucker",
	"shit",
	"son of a bitch",
}

// DenyList matches profane terms on word boundaries. Terms and record text
// are split into Words, so matching is case-insensitive, an apostrophe ends a
// word ("shit's" matches "shit") and multi-word terms match as consecutive
// words. Diacritics are ignored on both sides
// ("fück" matches "fuck"). There is no stemming.
type DenyList struct {
	// first token -> token sequences starting with it
	byFirst map[string][][]string
	size    int
}

// NewDenyList builds a deny-list from terms. Terms without letters or digits
// are ignored.
func NewDenyList(terms []string) *DenyList {
	d := &DenyList{byFirst: make(map[string][][]string)}
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		tokens := Words(fold(term))
		if len(tokens) == 0 {
			continue
		}
		key := strings.Join(tokens, " ")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		d.byFirst[tokens[0]] = append(d.byFirst[tokens[0]], tokens)
		d.size++
	}
	return d
}

// DefaultDenyList returns the built-in deny-list.
func DefaultDenyList() *DenyList {
	return NewDenyList(defaultTerms)
}

// Len is the number of distinct terms.
func (d *DenyList) Len() int {
	if d == nil {
		return 0
	}
	return d.size
}

// Match reports whether text contains any deny-listed term.
func (d *DenyList) Match(text string) bool {
	if d.Len() == 0 {
		return false
	}
	tokens := Words(fold(text))
	for i, tok := range tokens {
		for _, seq := range d.byFirst[tok] {
			if hasPrefix(tokens[i:], seq) {
				return true
			}
		}
	}
	return false
}

// fold strips combining marks after NFKD decomposition.
func fold(s string) string {
	if isASCII(s) {
		return s
	}
	// transform chains are stateful, one per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func hasPrefix(tokens, seq []string) bool {
	if len(seq) > len(tokens) {
		return false
	}
	for i := range seq {
		if tokens[i] != seq[i] {
			return false
		}
	}
	return true
}

// denyListFile is the structured deny-list file shape (yaml or toml).
type denyListFile struct {
	Terms []string `yaml:"terms" toml:"terms"`
}

// LoadDenyList reads a deny-list file. .yaml/.yml and .toml files carry a
// "terms" list; any other extension is plain text with one term per line
// and # comments.
func LoadDenyList(path string) (*DenyList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read deny-list %s", path)
	}

	var file denyListFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, errors.Wrapf(err, "failed to parse yaml deny-list %s", path)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &file); err != nil {
			return nil, errors.Wrapf(err, "failed to parse toml deny-list %s", path)
		}
	default:
		file.Terms = parseTermLines(data)
	}

	list := NewDenyList(file.Terms)
	if list.Len() == 0 {
		return nil, errors.WithHint(
			errors.Newf("deny-list %s contains no terms", path),
			"an empty deny-list disables the profanity gate; remove gates.deny_list_file to use the built-in list",
		)
	}
	return list, nil
}

func parseTermLines(data []byte) []string {
	var terms []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	return terms
}
