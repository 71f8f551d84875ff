package restyutil_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"curlcards-backend/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestFilesystemOutputClearsPreviousRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcripts")

	err := os.MkdirAll(dir, 0755)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("old"), 0644)
	require.NoError(t, err)

	output, err := restyutil.NewFilesystemOutput(dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "stale.txt"))
	require.True(t, os.IsNotExist(err))

	output.Write("1", "contents")
	data, err := os.ReadFile(filepath.Join(dir, "1.txt"))
	require.NoError(t, err)
	require.Equal(t, "contents", string(data))
}

func TestInstrumentDebugRecordsTraffic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "transcripts")
	output, err := restyutil.NewFilesystemOutput(dir)
	require.NoError(t, err)

	client := resty.New()
	client.SetBaseURL(server.URL)
	restyutil.InstrumentDebug(client, output)

	res, err := client.R().SetFormData(map[string]string{"handle": "teapot"}).Post("/brew")
	require.NoError(t, err)
	require.Equal(t, http.StatusTeapot, res.StatusCode())

	data, err := os.ReadFile(filepath.Join(dir, "1.txt"))
	require.NoError(t, err)
	transcript := string(data)
	require.Contains(t, transcript, "POST "+server.URL+"/brew")
	require.Contains(t, transcript, "handle=teapot")
	require.Contains(t, transcript, "418")
	require.Contains(t, transcript, "short and stout")
}

func TestInstrumentDebugRecordsTransportFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	// taking the server down makes every request fail in transport
	server.Close()

	dir := filepath.Join(t.TempDir(), "transcripts")
	output, err := restyutil.NewFilesystemOutput(dir)
	require.NoError(t, err)

	client := resty.New()
	client.SetBaseURL(server.URL)
	restyutil.InstrumentDebug(client, output)

	_, err = client.R().Get("/unreachable")
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "1.txt"))
	require.NoError(t, err)
	transcript := string(data)
	require.Contains(t, transcript, "GET "+server.URL+"/unreachable")
	require.Contains(t, transcript, "---- ERROR ----")
	require.Contains(t, transcript, "connection refused")
}
