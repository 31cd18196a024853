// SPDX-License-Identifier: Apache-2.0
package train

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	assert.NoError(t, r.Record(Sample{Chosen: 1}))
	assert.NoError(t, r.Close())
}

func TestFileRecorder(t *testing.T) {
	t.Run("appends newline-delimited JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "samples.jsonl")
		r, err := NewFileRecorder(path)
		assert.NoError(t, err)

		assert.NoError(t, r.Record(Sample{FrontierKey: "a", Chosen: 0, Cost: 1.5}))
		assert.NoError(t, r.Record(Sample{FrontierKey: "b", Chosen: -1, Cost: 2.5}))
		assert.NoError(t, r.Close())

		f, err := os.Open(path)
		assert.NoError(t, err)
		defer f.Close()

		scanner := bufio.NewScanner(f)
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		assert.Len(t, lines, 2)

		var first Sample
		assert.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
		assert.Equal(t, "a", first.FrontierKey)
		assert.NotEmpty(t, first.ID)
	})
}
