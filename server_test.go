package googlestt

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStartAndStop(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Address = "127.0.0.1:0"
	server := NewServer(cfg, &fakeProvider{}, log.New(io.Discard))

	startErrChan := make(chan error, 1)
	go func() {
		startErrChan <- server.Start()
	}()

	// Give the listener a moment to come up.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, server.Stop())

	select {
	case err := <-startErrChan:
		assert.NoError(t, err, "Start should return nil after Stop")
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestServerMetricsEndpoint(t *testing.T) {
	server := NewServer(testConfig(), &fakeProvider{}, log.New(io.Discard))

	testServer := httptest.NewServer(server.srv.Handler)
	defer testServer.Close()

	resp, err := http.Get(testServer.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "stt_sessions_started_total")
}
