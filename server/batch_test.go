package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/quotes/pkg/pipeline"
	"github.com/xhad/quotes/pkg/report"
	"github.com/xhad/quotes/pkg/store"
)

func dialBatch(t *testing.T, srv *Server) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/batch"

	header := http.Header{}
	header.Set(UserHeader, "broker-1")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()

	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func readUntilSummary(t *testing.T, conn *websocket.Conn) ([]pipeline.Progress, *pipeline.Summary) {
	t.Helper()
	var progress []pipeline.Progress
	for {
		var msg BatchMessage
		require.NoError(t, conn.ReadJSON(&msg))
		switch msg.Type {
		case BatchProgress:
			progress = append(progress, *msg.Progress)
		case BatchSummary:
			return progress, msg.Summary
		default:
			t.Fatalf("unexpected message %+v", msg)
		}
	}
}

func TestBatchStreamsProgress(t *testing.T) {
	docs := &fakeDocuments{fail: map[string]error{"b.pdf": errors.New("AI parsing failed: bad json")}}
	srv, _ := newTestServer(t, docs)
	conn, done := dialBatch(t, srv)
	defer done()

	for _, f := range []BatchRequest{
		{Type: BatchFile, FileName: "a.pdf", Category: "current", Content: []byte("%PDF-1.7 Sun Life")},
		{Type: BatchFile, FileName: "b.pdf", Category: "alternative", Content: []byte("%PDF-1.7 Manulife")},
		{Type: BatchFile, FileName: "c.pdf", Content: []byte("%PDF-1.7 Beneva")},
		{Type: BatchRun},
	} {
		require.NoError(t, conn.WriteJSON(f))
	}

	progress, summary := readUntilSummary(t, conn)
	assert.Len(t, progress, 6)
	assert.Equal(t, pipeline.StatusCompletedWithErrors, summary.Status)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, "Sun Life", summary.Results[0].Document.Carrier)
	assert.Equal(t, pipeline.FileFailed, summary.Results[1].Status)
	assert.Equal(t, "AI parsing failed: bad json", summary.Results[1].Message)
	assert.Equal(t, "alternative", string(summary.Results[2].Category))
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, docs.Calls())

	// the server closes the connection once the batch is done
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestBatchRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		msgs    []BatchRequest
		wantErr string
	}{
		{"empty", []BatchRequest{{Type: BatchRun}}, "batch has no files"},
		{"not pdf", []BatchRequest{{Type: BatchFile, FileName: "a.txt", Content: []byte("hello")}}, "only PDF documents are supported"},
		{"bad category", []BatchRequest{{Type: BatchFile, FileName: "a.pdf", Category: "x", Content: []byte("%PDF-1.7")}}, "unknown document category"},
		{"unknown type", []BatchRequest{{Type: "start"}}, "unknown batch message type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := &fakeDocuments{}
			srv, _ := newTestServer(t, docs)
			conn, done := dialBatch(t, srv)
			defer done()

			for _, m := range tt.msgs {
				require.NoError(t, conn.WriteJSON(m))
			}
			var msg BatchMessage
			require.NoError(t, conn.ReadJSON(&msg))
			assert.Equal(t, BatchError, msg.Type)
			assert.Contains(t, msg.Error, tt.wantErr)
			assert.Empty(t, docs.Calls())
		})
	}
}

func TestBatchRequiresUser(t *testing.T) {
	srv, _ := newTestServer(t, &fakeDocuments{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/batch", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBatchClosingSocketCancelsRemainingFiles(t *testing.T) {
	docs := &fakeDocuments{hang: true, released: make(chan string, 4)}
	reports, err := report.NewService(report.ServiceConfig{Store: store.NewMemoryReportStore(), Secret: "secret"})
	require.NoError(t, err)
	srv, err := New(Config{Documents: docs, Reports: reports, FileTimeout: time.Minute})
	require.NoError(t, err)

	conn, done := dialBatch(t, srv)
	defer done()

	for _, f := range []BatchRequest{
		{Type: BatchFile, FileName: "a.pdf", Category: "current", Content: []byte("%PDF-1.7 Sun Life")},
		{Type: BatchFile, FileName: "b.pdf", Content: []byte("%PDF-1.7 Beneva")},
		{Type: BatchRun},
	} {
		require.NoError(t, conn.WriteJSON(f))
	}

	var msg BatchMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, BatchProgress, msg.Type)
	assert.Equal(t, "a.pdf", msg.Progress.FileName)
	assert.Equal(t, pipeline.FileProcessing, msg.Progress.Status)

	require.NoError(t, conn.Close())

	select {
	case name := <-docs.released:
		assert.Equal(t, "a.pdf", name)
	case <-time.After(5 * time.Second):
		t.Fatal("first file was not cancelled after the socket closed")
	}
	// the runner checks for cancellation before starting the next file
	assert.Never(t, func() bool { return len(docs.Calls()) > 1 }, 200*time.Millisecond, 20*time.Millisecond)
	assert.Equal(t, []string{"a.pdf"}, docs.Calls())
}
