package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/relay-bank/internal/relay"
	"github.com/sweeney/relay-bank/internal/status"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubOutput struct{ err error }

func (o *stubOutput) Write(uint16) error { return o.err }

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:      10,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		TopicPrefix: "relays/bank",
		HTTPAddr:    ":80",
		FaultLEDPin: 21,
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

// armed returns a bank with channel 2 on for 1000ms from t=0.
func armed(t *testing.T, out relay.Output) *relay.Bank {
	t.Helper()
	b := relay.NewBank(out)
	var cmd relay.Command
	cmd.OnTimes[2] = 1000
	_, err := b.Apply(cmd, 0)
	require.NoError(t, err)
	return b
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err, "GET %s", url)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v), "decode JSON")
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err, "GET %s", url)
	resp.Body.Close()
	return resp
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(armed(t, &stubOutput{}), 250)
	tr.SetMQTTConnected(true)

	var sj status.StatusJSON
	resp := getJSON(t, ts.URL+"/index.json", &sj)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "0x0004", sj.Status.Mask)
	require.Len(t, sj.Status.Channels, relay.NumChannels)
	assert.Equal(t, "ON", sj.Status.Channels[2].State)
	assert.EqualValues(t, 750, sj.Status.Channels[2].RemainingMs)
	assert.True(t, sj.Status.MQTT.Connected)
	assert.Equal(t, "tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	assert.Equal(t, 1, sj.Status.Counts.On)
	assert.EqualValues(t, 10, sj.Status.Config.PollMs)
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	var sj status.StatusJSON
	getJSON(t, ts.URL+"/index.json", &sj)

	require.NotNil(t, sj.Status.Network)
	assert.Equal(t, "192.168.1.42", sj.Status.Network.IP)
}

func TestChannelsEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(armed(t, &stubOutput{}), 100)

	var body struct {
		Mask     string               `json:"mask"`
		InSync   bool                 `json:"in_sync"`
		Channels []status.ChannelJSON `json:"channels"`
	}
	resp := getJSON(t, ts.URL+"/api/v1/channels", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0x0004", body.Mask)
	assert.True(t, body.InSync)
	require.Len(t, body.Channels, relay.NumChannels)
	for i, ch := range body.Channels {
		assert.Equal(t, i, ch.Channel)
	}
}

func TestSingleChannelEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(armed(t, &stubOutput{}), 400)

	var ch status.ChannelJSON
	resp := getJSON(t, ts.URL+"/api/v1/channels/2", &ch)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, status.ChannelJSON{Channel: 2, State: "ON", DurationMs: 1000, RemainingMs: 600}, ch)
}

func TestSingleChannelOutOfRange(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, id := range []string{"16", "-1", "abc"} {
		resp := get(t, ts.URL+"/api/v1/channels/"+id)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "channel %q", id)
	}
}

func TestHealthz(t *testing.T) {
	ts, tr := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	out := &stubOutput{err: errors.New("i2c nak")}
	b := relay.NewBank(out)
	b.SetChannel(0, true)
	tr.Update(b, 0)

	body = nil
	resp = getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "fault", body["status"])
	assert.Contains(t, body["fault"], "i2c nak")

	out.err = nil
	b.Tick(1)
	tr.Update(b, 1)
	body = nil
	resp = getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "recovered")
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(armed(t, &stubOutput{}), 0)

	resp := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := get(t, ts.URL+"/index.html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTMLShowsFault(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{FaultLEDPin: -1})
	b := relay.NewBank(&stubOutput{err: errors.New("bus stuck")})
	b.SetChannel(7, true)
	tr.Update(b, 0)

	var sb strings.Builder
	require.NoError(t, renderHTML(&sb, tr.Snapshot()))
	html := sb.String()
	assert.Contains(t, html, "bus stuck", "fault text in page")
	assert.Contains(t, html, "disabled", "fault LED shown as disabled")
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := get(t, ts.URL+"/nonexistent")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)
	b := armed(t, &stubOutput{})
	tr.Update(b, 0)

	var sj1 status.StatusJSON
	getJSON(t, ts.URL+"/index.json", &sj1)
	require.Equal(t, "ON", sj1.Status.Channels[2].State)

	b.Tick(1000)
	tr.Update(b, 1000)
	tr.SetMQTTConnected(true)

	var sj2 status.StatusJSON
	getJSON(t, ts.URL+"/index.json", &sj2)
	assert.Equal(t, "OFF", sj2.Status.Channels[2].State, "channel 2 after expiry")
	assert.Equal(t, "0x0000", sj2.Status.Mask)
	assert.Equal(t, 1, sj2.Status.Counts.Off)
	assert.True(t, sj2.Status.MQTT.Connected)
}
