package serialmux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/banshee-data/gait.report/internal/gait/offset"
)

const frameLine = "1,2,3,4,5,6,7,8,9,10,11,12,13,14,15"

func TestSendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.SendCommand("START"))
	require.NoError(t, mux.SendCommand("STOP\n"))
	assert.Equal(t, "START\nSTOP\n", string(port.GetWrittenData()))

	port.WriteError = io.ErrClosedPipe
	assert.ErrorIs(t, mux.SendCommand("START"), io.ErrClosedPipe)

	port.ShortWrite = true
	assert.ErrorIs(t, mux.SendCommand("START"), ErrWriteFailed)
}

func TestInitialize(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	require.NoError(t, mux.Initialize())
	assert.Equal(t, strings.Join(DefaultStartCommands, "\n")+"\n", string(port.GetWrittenData()))

	port.WriteError = errors.New("boom")
	err := NewSerialMux(port).Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"STOP"`)
}

func TestMonitor_FansOutToSubscribers(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("# header\n" + frameLine + "\n"))
	mux := NewSerialMux(port)

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))

	for _, ch := range []chan string{a, b} {
		assert.Equal(t, "# header", <-ch)
		assert.Equal(t, frameLine, <-ch)
	}
}

func TestMonitor_DropsForLaggingSubscriber(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte(strings.Repeat(frameLine+"\n", subscriberBuffer+6)))
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))
	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, MuxStats{Lines: subscriberBuffer + 6, Dropped: 6, Subscribers: 1}, mux.Stats())
}

func TestMonitor_ReadError(t *testing.T) {
	port := NewTestableSerialPort()
	port.ReadError = errors.New("device unplugged")
	mux := NewSerialMux(port)

	err := mux.Monitor(context.Background())
	assert.EqualError(t, err, "device unplugged")
}

func TestMonitor_ContextCancel(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	require.NoError(t, mux.Close())
}

func TestUnsubscribeAndClose(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)
	mux.Unsubscribe(id) // second call is a no-op

	_, ch2 := mux.Subscribe()
	require.NoError(t, mux.Close())
	_, ok = <-ch2
	assert.False(t, ok)
	assert.True(t, port.Closed)
}

func TestMockSerialMux(t *testing.T) {
	mux := NewMockSerialMux([]string{frameLine, "# done"}, time.Millisecond, false)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))
	assert.Equal(t, frameLine, <-ch)
	assert.Equal(t, "# done", <-ch)

	require.NoError(t, mux.SendCommand("START"))
	assert.Equal(t, "START\n", mux.port.Written())
	require.NoError(t, mux.Close())
	require.NoError(t, mux.Close())
}

func TestMockSerialMux_Loops(t *testing.T) {
	mux := NewMockSerialMux([]string{"a", "b"}, time.Millisecond, true)
	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	go mux.Monitor(ctx)
	defer cancel()

	var got []string
	for len(got) < 5 {
		select {
		case line := <-ch:
			got = append(got, line)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %v", got)
		}
	}
	assert.Equal(t, []string{"a", "b", "a", "b", "a"}, got)
	require.NoError(t, mux.Close())
}

func TestPortOptions(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{"defaults", PortOptions{}, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"even", PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"}, PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"}, false},
		{"odd", PortOptions{Parity: " o "}, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "O"}, false},
		{"bad data bits", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"bad stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"bad parity", PortOptions{Parity: "M"}, PortOptions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, PortOptions{}.Equal(PortOptions{BaudRate: DefaultBaudRate, Parity: "none"}))
	assert.False(t, PortOptions{}.Equal(PortOptions{BaudRate: 9600}))
	assert.False(t, PortOptions{DataBits: 9}.Equal(PortOptions{DataBits: 9}))
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{StopBits: 2, Parity: "E"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{BaudRate: DefaultBaudRate, DataBits: 8, Parity: serial.EvenParity, StopBits: serial.TwoStopBits}, mode)

	mode, err = PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	_, err = PortOptions{StopBits: 5}.SerialMode()
	assert.Error(t, err)
}

func TestNewRealSerialMux_InvalidPath(t *testing.T) {
	mux, err := NewRealSerialMux("/dev/nonexistent-serial-port-12345", PortOptions{})
	assert.Error(t, err)
	assert.Nil(t, mux)

	_, err = NewRealSerialMux("/dev/nonexistent-serial-port-12345", PortOptions{Parity: "X"})
	assert.Error(t, err)
}

func TestParseFrame(t *testing.T) {
	got, err := ParseFrame(" 1, 2,3 4\t5;6,7,8,9,10,11,12,13,14,-15.5 ")
	require.NoError(t, err)
	require.Len(t, got, offset.FrameWidth)
	assert.Equal(t, -15.5, got[14])

	_, err = ParseFrame("1,2,3")
	assert.ErrorIs(t, err, offset.ErrMalformedFrame)

	_, err = ParseFrame(strings.Replace(frameLine, "7", "x", 1))
	assert.ErrorIs(t, err, offset.ErrMalformedFrame)
}

func TestClassifyPayload(t *testing.T) {
	tests := map[string]string{
		frameLine:            EventTypeFrame,
		"-0.5,1":             EventTypeFrame,
		".5 1":               EventTypeFrame,
		`{"battery": 0.93}`:  EventTypeStatus,
		"# calibrating":      EventTypeComment,
		"":                   EventTypeUnknown,
		"ERR sensor 3 stale": EventTypeUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ClassifyPayload(in), "payload %q", in)
	}
}

func TestHandleEvent(t *testing.T) {
	var frames [][]float64
	h := FrameHandlerFunc(func(raw []float64) error {
		frames = append(frames, raw)
		return nil
	})
	state := &HubState{}

	require.NoError(t, HandleEvent(h, state, frameLine))
	require.NoError(t, HandleEvent(h, state, `{"battery": 0.93, "sensors": 5}`))
	require.NoError(t, HandleEvent(h, state, `{"battery": 0.91}`))
	require.NoError(t, HandleEvent(h, state, "# note"))
	require.NoError(t, HandleEvent(h, state, "garbage"))
	require.NoError(t, HandleEvent(h, nil, `{"ignored": true}`))

	require.Len(t, frames, 1)
	assert.Equal(t, 15.0, frames[0][14])
	assert.Equal(t, map[string]any{"battery": 0.91, "sensors": 5.0}, state.Snapshot())

	assert.ErrorIs(t, HandleEvent(h, state, "1,2"), offset.ErrMalformedFrame)
	assert.Error(t, HandleEvent(h, state, "{not json"))

	failing := FrameHandlerFunc(func([]float64) error { return fmt.Errorf("full") })
	assert.ErrorContains(t, HandleEvent(failing, state, frameLine), "full")
}

func TestDisabledSerialMux(t *testing.T) {
	d := NewDisabledSerialMux()
	require.NoError(t, d.Initialize())
	assert.ErrorIs(t, d.SendCommand("START"), ErrSerialDisabled)

	id, ch := d.Subscribe()
	d.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	_, ch = d.Subscribe()
	require.NoError(t, d.Close())
	_, ok = <-ch
	assert.False(t, ok)
	require.NoError(t, d.Close())

	_, ch = d.Subscribe()
	_, ok = <-ch
	assert.False(t, ok, "subscribe after close returns a closed channel")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Monitor(ctx), context.Canceled)

	mux := http.NewServeMux()
	d.AttachAdminRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/serial", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled": false}`, rec.Body.String())
}

// localHostRequest creates a request that passes tsweb's loopback check.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestAdminRoutes_SendCommandAPI(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	post := func(command string) *httptest.ResponseRecorder {
		form := url.Values{"command": {command}}
		req := localHostRequest(http.MethodPost, "/debug/send-command-api", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		httpMux.ServeHTTP(rec, req)
		return rec
	}

	rec := post("START")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "START\n", string(port.GetWrittenData()))

	assert.Equal(t, http.StatusBadRequest, post(" ").Code)

	port.WriteError = io.ErrShortWrite
	assert.Equal(t, http.StatusInternalServerError, post("START").Code)

	rec = httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/send-command-api", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestAdminRoutes_Stats(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte(frameLine + "\n"))
	mux := NewSerialMux(port)
	require.NoError(t, mux.Monitor(context.Background()))

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)
	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/serial", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled": true, "lines": 1, "dropped": 0, "subscribers": 0}`, rec.Body.String())
}

func TestAdminRoutes_Tail(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	srv := httptest.NewServer(httpMux)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/debug/tail")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := make([]byte, len(": ping\n\n"))
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	assert.Equal(t, ": ping\n\n", string(buf))

	// the handler has subscribed once the ping is written
	port.AddReadData([]byte(frameLine + "\n"))
	want := "data: " + frameLine + "\n\n"
	buf = make([]byte, len(want))
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	assert.Equal(t, want, string(buf))

	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodPost, "/debug/tail", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	require.NoError(t, mux.Close())
}
