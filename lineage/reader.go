package lineage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/curate/errors"
)

// ErrUnsupportedSchema marks an entry written with an incompatible schema.
var ErrUnsupportedSchema = errors.New("unsupported lineage schema")

// ReadAll reads every complete entry of the manifest at path. A torn trailing
// line (a write in progress or an interrupted one) is ignored. A missing
// manifest has no entries.
func ReadAll(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, errors.Wrapf(err, "failed to read manifest %s", path)
	}

	if i := bytes.LastIndexByte(data, '\n'); i < len(data)-1 {
		data = data[:i+1]
	}
	entries, err := parseLines(data)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	return entries, nil
}

func parseLines(data []byte) ([]Entry, error) {
	constraint, err := semver.NewConstraint(supportedSchemas)
	if err != nil {
		return nil, errors.Wrap(err, "invalid schema constraint")
	}

	entries := make([]Entry, 0)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, errors.Wrapf(err, "line %d is not a valid entry", line)
		}
		v, err := semver.NewVersion(e.SchemaVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d has invalid schema_version %q", line, e.SchemaVersion)
		}
		if !constraint.Check(v) {
			return nil, errors.Mark(
				errors.Newf("line %d has schema_version %s, supported %s", line, e.SchemaVersion, supportedSchemas),
				ErrUnsupportedSchema,
			)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan manifest")
	}
	return entries, nil
}
