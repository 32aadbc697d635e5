package csvfile

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"counselordev/leads"
	"counselordev/logger"
)

func testCSV(t *testing.T) (*CSV, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.csv")
	log := logger.Connect(logger.LoggerConnectProps{Production: false})
	return Connect(context.Background(), CSVConnectProps{Logger: log, Path: path}), path
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestAppendCreatesFileWithHeader(t *testing.T) {
	store, path := testCSV(t)

	lead := leads.Lead{
		SessionID: "s-1",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Fields:    leads.FieldMap{"Country": "UK, USA", "Name": "Priya"},
	}
	require.NoError(t, store.Append(context.Background(), lead))

	rows := readAll(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, leads.Headers, rows[0])
	assert.Equal(t, lead.Row(), rows[1])
}

func TestAppendWritesHeaderOnlyOnce(t *testing.T) {
	store, path := testCSV(t)

	require.NoError(t, store.Append(context.Background(), leads.Lead{SessionID: "s-1"}))
	require.NoError(t, store.Append(context.Background(), leads.Lead{SessionID: "s-2"}))

	rows := readAll(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, "s-1", rows[1][0])
	assert.Equal(t, "s-2", rows[2][0])
}

func TestAppendFailsWhenDirectoryMissing(t *testing.T) {
	log := logger.Connect(logger.LoggerConnectProps{Production: false})
	store := Connect(context.Background(), CSVConnectProps{
		Logger: log,
		Path:   filepath.Join(t.TempDir(), "no", "such", "dir", "leads.csv"),
	})

	err := store.Append(context.Background(), leads.Lead{SessionID: "s-1"})
	assert.Error(t, err)
}
