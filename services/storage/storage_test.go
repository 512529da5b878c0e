package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantio/grantscraper/internal/grant"
)

func sampleGrants() []*grant.Grant {
	deadline := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	a := &grant.Grant{
		SourceID:    "mfcr",
		SourceName:  "Ministerstvo financí",
		GrantURL:    "https://mfcr.gov.cz/dotace/1",
		Title:       "Podpora bydlení",
		Deadline:    &deadline,
		Status:      grant.StatusOK,
		GrantType:   grant.TypeCall,
		ExtractedAt: time.Now().UTC(),
	}
	b := &grant.Grant{
		SourceID:    "msmt",
		SourceName:  "MŠMT",
		GrantURL:    "https://msmt.gov.cz/dotace/2",
		Title:       "Podpora sportu",
		Status:      grant.StatusPartial,
		GrantType:   grant.TypeCall,
		ExtractedAt: time.Now().UTC(),
	}
	a.EnsureHash()
	b.EnsureHash()
	return []*grant.Grant{a, b}
}

func TestSaveJSON(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriter(dir)

	path, err := writer.SaveJSON(sampleGrants())
	require.NoError(t, err)
	assert.Equal(t, ".json", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)

	assert.Equal(t, "Podpora bydlení", records[0]["title"])
	assert.Equal(t, "2026-01-09", records[0]["deadline"])
	assert.Nil(t, records[1]["deadline"])
	assert.Equal(t, "partial", records[1]["status"])
}

func TestSaveJSONEmpty(t *testing.T) {
	writer := NewWriter(t.TempDir())

	path, err := writer.SaveJSON(nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Empty(t, records)
}

func TestSaveJSONL(t *testing.T) {
	writer := NewWriter(t.TempDir())

	path, err := writer.SaveJSONL(sampleGrants())
	require.NoError(t, err)
	assert.Equal(t, ".jsonl", filepath.Ext(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var record map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		assert.Equal(t, "grant", record["recordType"])
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, lines)
}

func TestStateRoundTrip(t *testing.T) {
	dir := t.TempDir()

	state := LoadState(dir)
	assert.Zero(t, state.Len())

	state.Add("hash-a")
	state.Add("hash-b")
	state.Add("hash-a")
	assert.Equal(t, 2, state.Len())
	require.NoError(t, state.Save())

	reloaded := LoadState(dir)
	assert.Equal(t, 2, reloaded.Len())
	assert.True(t, reloaded.Contains("hash-a"))
	assert.True(t, reloaded.Contains("hash-b"))
	assert.False(t, reloaded.Contains("hash-c"))
}

func TestStateCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFileName), []byte("{not json"), 0o644))

	state := LoadState(dir)
	assert.Zero(t, state.Len())
}

func TestStateSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")

	state := LoadState(dir)
	state.Add("hash-a")
	require.NoError(t, state.Save())

	assert.True(t, LoadState(dir).Contains("hash-a"))
}
