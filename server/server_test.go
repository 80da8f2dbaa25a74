package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
	"github.com/OrlandoFon/Backend-TCCRolamentos/dataset"
	"github.com/OrlandoFon/Backend-TCCRolamentos/simulation"
	"github.com/OrlandoFon/Backend-TCCRolamentos/spectrum"
)

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRing(t *testing.T) {
	r := NewRing[int](3)
	require.Zero(t, r.Len())
	r.Push(1)
	r.Push(2)
	require.Equal(t, []int{1, 2}, r.Slice())
	for v := 3; v <= 5; v++ {
		r.Push(v)
	}
	require.Equal(t, 3, r.Len())
	require.Equal(t, []int{3, 4, 5}, r.Slice())
	r.Reset()
	require.Empty(t, r.Slice())
}

func TestHubBacklogAndFanout(t *testing.T) {
	h := NewHub(2)
	h.Broadcast([]byte("a"))
	h.Broadcast([]byte("b"))
	h.Broadcast([]byte("c"))

	ch, replay, cancel := h.Subscribe(1)
	require.Equal(t, [][]byte{[]byte("b"), []byte("c")}, replay)
	require.Equal(t, 1, h.Subscribers())

	require.NoError(t, h.BroadcastJSON(map[string]int{"n": 1}))
	require.Equal(t, `{"n":1}`, string(<-ch))
	require.Zero(t, h.Evicted())

	cancel()
	cancel()
	_, ok := <-ch
	require.False(t, ok)
	require.Zero(t, h.Subscribers())

	h.Reset()
	_, replay, cancel = h.Subscribe(1)
	defer cancel()
	require.Empty(t, replay)
}

func TestHubEvictsSlowSubscriber(t *testing.T) {
	h := NewHub(4096)
	slow, _, cancelSlow := h.Subscribe(256)
	defer cancelSlow()
	roomy, _, cancelRoomy := h.Subscribe(512)
	defer cancelRoomy()

	for i := 1; i <= 300; i++ {
		h.Broadcast([]byte(fmt.Sprintf(`{"type":"esi","minute":%d}`, i)))
	}
	h.Broadcast([]byte(`{"type":"status","status":"completed"}`))
	h.Broadcast([]byte(`{"type":"simulation_end","code":0}`))

	require.Equal(t, 1, h.Evicted())
	require.Equal(t, 1, h.Subscribers())

	// A subscriber that keeps up sees every record through the end.
	require.Len(t, roomy, 302)
	var last []byte
	for range 302 {
		last = <-roomy
	}
	require.Contains(t, string(last), "simulation_end")

	// The slow one gets an unbroken prefix, then its channel closes.
	var got [][]byte
	for msg := range slow {
		got = append(got, msg)
	}
	require.Len(t, got, 256)
	for i, msg := range got {
		require.Equal(t, fmt.Sprintf(`{"type":"esi","minute":%d}`, i+1), string(msg))
	}

	// Resubscribing replays the whole run, terminal records included.
	_, replay, cancel := h.Subscribe(256)
	defer cancel()
	require.Len(t, replay, 302)
	require.Contains(t, string(replay[300]), `"status"`)
	require.Contains(t, string(replay[301]), "simulation_end")
}

func testServer(t *testing.T, delay time.Duration) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.StepDelay = delay

	src := dataset.NewMemory()
	src.AddBearing(dataset.Metadata{Bearing: "Bearing1_2", Condition: "35Hz12kN", FDT: 2, Steps: 6, Vt: 0.1, Wt: 0.05})
	for s := 1; s <= 6; s++ {
		src.Put("35Hz12kN", "Bearing1_2", s, []float64{float64(s)})
	}
	analyzer := simulation.AnalyzerFunc(func(sig []float64) (spectrum.Spectrum, error) {
		return spectrum.Spectrum{Amplitude: []float64{sig[0]}, Frequency: []float64{0}}, nil
	})
	factory := func(req StartRequest) (*simulation.Driver, error) {
		return simulation.New(cfg, src, req.BearingName,
			simulation.WithAnalyzer(analyzer), simulation.WithThreshold(500), simulation.WithLogger(quiet())), nil
	}

	s := New(cfg, factory, WithLogger(quiet()))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, url, body string) (int, map[string]string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestBearingsList(t *testing.T) {
	_, ts := testServer(t, 0)
	resp, err := http.Get(ts.URL + "/api/bearings")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var list []bearingOption
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 6)
	require.Equal(t, bearingOption{Value: "Bearing1_2", Label: "Artigo B1 (C1) (Bearing1_2)"}, list[0])
}

func TestStartConflictAndStop(t *testing.T) {
	s, ts := testServer(t, 100*time.Millisecond)

	code, body := post(t, ts.URL+"/api/start-simulation", `{}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body["error"], "bearingName")

	code, body = post(t, ts.URL+"/api/start-simulation", `{"bearingName":"Bearing1_2"}`)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, body["run_id"])

	code, _ = post(t, ts.URL+"/api/start-simulation", `{"bearingName":"Bearing1_2"}`)
	require.Equal(t, http.StatusConflict, code)

	bearing, running := s.Running()
	require.True(t, running)
	require.Equal(t, "Bearing1_2", bearing)

	resp, err := http.Get(ts.URL + "/api/stop-simulation")
	require.NoError(t, err)
	resp.Body.Close()
	s.Wait()

	_, running = s.Running()
	require.False(t, running)
	require.False(t, s.Stop())

	ch, replay, cancel := s.Hub().Subscribe(1)
	defer cancel()
	require.Empty(t, ch)
	var end endRecord
	require.NoError(t, json.Unmarshal(replay[len(replay)-1], &end))
	require.Equal(t, "simulation_end", end.Type)
	require.Equal(t, body["run_id"], end.RunID)
	require.Equal(t, CodeStopped, end.Code)
}

func TestEventsOverSSE(t *testing.T) {
	s, ts := testServer(t, 0)
	_, err := s.Start(StartRequest{BearingName: "Bearing1_2"})
	require.NoError(t, err)
	s.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var types []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		types = append(types, rec["type"].(string))
		if rec["type"] == "simulation_end" {
			require.EqualValues(t, CodeCompleted, rec["code"])
			break
		}
	}
	// 6 indicator records, RUL at steps 3 and 6, completion, end
	require.Len(t, types, 10)
	require.Equal(t, "status", types[8])
}

func TestEventsOverWebSocket(t *testing.T) {
	s, ts := testServer(t, 0)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)
	_, err = s.Start(StartRequest{BearingName: "Bearing1_2"})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var kinds []string
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var rec map[string]any
		require.NoError(t, json.Unmarshal(msg, &rec))
		kinds = append(kinds, rec["type"].(string))
		if rec["type"] == "simulation_end" {
			break
		}
	}
	require.Equal(t, "esi", kinds[0])
	require.Len(t, kinds, 10)
}

func TestDriverFactory(t *testing.T) {
	cfg := config.Default()
	factory := NewDriverFactory(cfg, "", "csv", quiet())

	_, err := factory(StartRequest{BearingName: "Bearing1_2"})
	require.ErrorIs(t, err, ErrBadRequest)

	zero := 0
	_, err = factory(StartRequest{BearingName: "Bearing1_2", BasePath: t.TempDir(), FdtPersistenceLen: &zero})
	require.ErrorIs(t, err, ErrBadRequest)

	off := false
	drv, err := factory(StartRequest{BearingName: "Bearing1_2", BasePath: t.TempDir(), UseCustomFdt: &off, FdtPersistenceLen: &zero})
	require.NoError(t, err)
	require.NotNil(t, drv)

	_, err = NewDriverFactory(cfg, t.TempDir(), "flac", quiet())(StartRequest{BearingName: "Bearing1_2"})
	require.Error(t, err)
}
