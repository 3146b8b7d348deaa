package web

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/nativebridge/bridge"
	"github.com/mbocsi/nativebridge/broker"
	"github.com/mbocsi/nativebridge/proto"
	"github.com/mbocsi/nativebridge/sample"
	"github.com/mbocsi/nativebridge/services"
	"github.com/mbocsi/nativebridge/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *transport.WSTransport) {
	t.Helper()
	tr := transport.NewWSTransport(bridge.WithFraming(bridge.RawEnvelope))
	tr.SetTap(broker.NewBroker())
	tr.OnSession(sample.Register)

	srv := NewServer(tr, services.NewBridgeService(tr), Options{BridgePath: "/bridge", EventName: "nativebridge"})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		tr.Shutdown()
		ts.Close()
	})
	return ts, tr
}

func connectDocument(t *testing.T, ts *httptest.Server, tr *transport.WSTransport) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/bridge"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return tr.Sessions().Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func post(t *testing.T, url, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestHandleHome(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), `"nativebridge"`)
	assert.Contains(t, string(body), `"/bridge"`)
	assert.Contains(t, string(body), "window.NativeBridge")
}

func TestSessionsAndTopics(t *testing.T) {
	ts, tr := newTestServer(t)
	connectDocument(t, ts, tr)

	var sessions struct {
		Sessions []transport.SessionInfo `json:"sessions"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/sessions", &sessions))
	require.Len(t, sessions.Sessions, 1)
	assert.Equal(t, []string{sample.GaConfTopic, sample.TestTopic}, sessions.Sessions[0].Topics)

	var topics struct {
		Topics []string `json:"topics"`
	}
	getJSON(t, ts.URL+"/api/topics", &topics)
	assert.Equal(t, []string{sample.GaConfTopic, sample.TestTopic}, topics.Topics)

	var detail transport.SessionInfo
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/sessions/"+sessions.Sessions[0].Id, &detail))
	assert.Equal(t, sessions.Sessions[0].Id, detail.Id)

	var info services.TransportInfo
	getJSON(t, ts.URL+"/api/transport", &info)
	assert.Equal(t, "connected", info.Status)
	assert.Equal(t, 1, info.Sessions)
}

func TestSessionDetail_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/sessions/ws-missing", &body))
	assert.Equal(t, services.ErrCodeNotFound, body["code"])
}

func TestSendMessageToSession(t *testing.T) {
	ts, tr := newTestServer(t)
	conn := connectDocument(t, ts, tr)
	id := tr.Sessions().List()[0].Id

	resp, _ := post(t, ts.URL+"/api/sessions/"+id+"/messages", `{"topic":"notice","data":{"value":"hi"}}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"topic":"notice","data":{"value":"hi"}}`, string(msg))
}

func TestSendMessage_BadRequests(t *testing.T) {
	ts, tr := newTestServer(t)
	connectDocument(t, ts, tr)
	id := tr.Sessions().List()[0].Id

	resp, _ := post(t, ts.URL+"/api/sessions/"+id+"/messages", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, ts.URL+"/api/sessions/"+id+"/messages", `{"topic":" ","data":{}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, ts.URL+"/api/sessions/ws-missing/messages", `{"topic":"t","data":{}}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBroadcast(t *testing.T) {
	ts, tr := newTestServer(t)
	conn := connectDocument(t, ts, tr)

	resp, body := post(t, ts.URL+"/api/messages", `{"topic":"all","data":[1]}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"topic":"all","sessions":1}`, body)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"topic":"all","data":[1]}`, string(msg))
}

func TestDocumentRoundTrip(t *testing.T) {
	ts, tr := newTestServer(t)
	conn := connectDocument(t, ts, tr)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"topic":"testTopic","data":{"texttt":"x"}}`)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var env proto.Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, sample.TestTopic, env.Topic)

	var list proto.ErrorList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, []int{proto.CodeInvalidDataForTopicHandler}, list.Codes())
}

func readTraffic(t *testing.T, lines <-chan string) broker.Traffic {
	t.Helper()
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "traffic stream ended")
			data, found := strings.CutPrefix(line, "data: ")
			if !found {
				continue
			}
			var traffic broker.Traffic
			require.NoError(t, json.Unmarshal([]byte(data), &traffic))
			return traffic
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for traffic event")
		}
	}
}

func TestTrafficStream(t *testing.T) {
	ts, tr := newTestServer(t)
	conn := connectDocument(t, ts, tr)
	id := tr.Sessions().List()[0].Id

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/traffic?session="+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("abc")))

	in := readTraffic(t, lines)
	assert.Equal(t, broker.Inbound, in.Direction)
	assert.Equal(t, id, in.SessionID)
	assert.Equal(t, "abc", in.Payload)

	out := readTraffic(t, lines)
	assert.Equal(t, broker.Outbound, out.Direction)
	assert.JSONEq(t, `{"topic":"error","data":{"errors":[{"code":1,"message":"Illegal payload format"}]}}`, out.Payload)
}

func TestTrafficStream_UnknownSession(t *testing.T) {
	ts, _ := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/traffic?session=ws-missing", &body))
}

func TestTrafficStream_Disabled(t *testing.T) {
	tr := transport.NewWSTransport()
	tr.OnSession(sample.Register)
	ts := httptest.NewServer(NewServer(tr, services.NewBridgeService(tr), Options{BridgePath: "/bridge"}).Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/traffic")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
