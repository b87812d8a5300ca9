package ws

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"prodcat/internal"
	"prodcat/internal/config"
	"prodcat/internal/pipeline"
	"prodcat/internal/storage"
)

func dialTestChannel(t *testing.T) (*websocket.Conn, *storage.DB) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	cfg := config.Config{ImportChunkSize: 10, ImportStageDelayMs: 0, ImportMaxReportedErrors: 10}
	registry := NewRegistry(logger)
	controller := NewController(db, registry, pipeline.NewImportService(cfg, logger), logger)

	srv := httptest.NewServer(http.HandlerFunc(controller.Serve))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client, db
}

func readEvent(t *testing.T, client *websocket.Conn) internal.Event {
	t.Helper()
	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev internal.Event
	if err := client.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestPingPong(t *testing.T) {
	client, _ := dialTestChannel(t)

	if err := client.WriteJSON(map[string]any{"action": "ping"}); err != nil {
		t.Fatal(err)
	}
	ev := readEvent(t, client)
	if ev.Type != internal.EventPong {
		t.Fatalf("expected pong, got %+v", ev)
	}
}

func TestEmptyRowsYieldsSingleError(t *testing.T) {
	client, db := dialTestChannel(t)

	if err := client.WriteJSON(map[string]any{"action": "start_upload", "rows": []any{}, "duplicate_action": "skip"}); err != nil {
		t.Fatal(err)
	}
	ev := readEvent(t, client)
	if ev.Type != internal.EventError {
		t.Fatalf("expected error event, got %+v", ev)
	}

	// The channel must stay usable and the catalog untouched.
	if err := client.WriteJSON(map[string]any{"action": "ping"}); err != nil {
		t.Fatal(err)
	}
	if ev := readEvent(t, client); ev.Type != internal.EventPong {
		t.Fatalf("expected pong, got %+v", ev)
	}
	products, err := db.ListProducts()
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 0 {
		t.Fatalf("catalog written on empty upload: %+v", products)
	}
}

func TestInvalidPolicyRejected(t *testing.T) {
	client, _ := dialTestChannel(t)

	rows := []map[string]any{{"name": "Bolt", "description": "d", "price": 1, "quantity": 1}}
	if err := client.WriteJSON(map[string]any{"action": "start_upload", "rows": rows, "duplicate_action": "merge"}); err != nil {
		t.Fatal(err)
	}
	ev := readEvent(t, client)
	if ev.Type != internal.EventError {
		t.Fatalf("expected error event, got %+v", ev)
	}
}

func TestImportOverChannel(t *testing.T) {
	client, db := dialTestChannel(t)

	rows := []map[string]any{
		{"name": "Bolt", "description": "M6 bolt", "price": "1,50", "quantity": "10"},
		{"name": "Nut", "description": "M6 nut", "price": 0.75, "quantity": 20},
		{"name": "", "description": "nameless", "price": 1, "quantity": 1},
	}
	if err := client.WriteJSON(map[string]any{"action": "start_upload", "rows": rows, "duplicate_action": "skip"}); err != nil {
		t.Fatal(err)
	}

	last := -1
	var final internal.Event
	for {
		ev := readEvent(t, client)
		if ev.Progress != nil {
			if *ev.Progress < last {
				t.Fatalf("progress regressed: %d after %d", *ev.Progress, last)
			}
			last = *ev.Progress
		}
		if ev.Type == internal.EventComplete || ev.Type == internal.EventError {
			final = ev
			break
		}
	}

	if final.Type != internal.EventComplete {
		t.Fatalf("unexpected terminal event: %+v", final)
	}
	if final.Progress == nil || *final.Progress != 100 {
		t.Fatalf("terminal progress: %+v", final.Progress)
	}

	summary, ok := final.Data.(map[string]any)
	if !ok {
		t.Fatalf("summary payload: %+v", final.Data)
	}
	if summary["total_rows"].(float64) != 3 || summary["created"].(float64) != 2 || summary["errors_count"].(float64) != 1 {
		t.Fatalf("summary: %+v", summary)
	}

	products, err := db.ListProducts()
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 2 {
		t.Fatalf("products: %+v", products)
	}
	bolt, err := db.FindProductByNameCI("bolt")
	if err != nil {
		t.Fatal(err)
	}
	if bolt == nil || bolt.Price != 1.50 {
		t.Fatalf("comma decimal price lost: %+v", bolt)
	}
}

func TestPingAnsweredDuringImport(t *testing.T) {
	client, _ := dialTestChannel(t)

	rows := make([]map[string]any, 0, 50)
	for i := 0; i < 50; i++ {
		rows = append(rows, map[string]any{"name": "P", "description": "d", "price": 1, "quantity": 1})
	}
	if err := client.WriteJSON(map[string]any{"action": "start_upload", "rows": rows, "duplicate_action": "create_new"}); err != nil {
		t.Fatal(err)
	}
	if err := client.WriteJSON(map[string]any{"action": "ping"}); err != nil {
		t.Fatal(err)
	}

	// The pong may land anywhere relative to the progress stream, including
	// after the terminal event; it only must arrive.
	sawPong := false
	sawTerminal := false
	for !sawPong || !sawTerminal {
		ev := readEvent(t, client)
		if ev.Type == internal.EventPong {
			sawPong = true
		}
		if ev.Type == internal.EventComplete || ev.Type == internal.EventError {
			sawTerminal = true
		}
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	conn := &Conn{ID: "x", sock: nil}

	// Not registered: must be a no-op, not a panic.
	registry.Unregister(conn)
	if registry.Count() != 0 {
		t.Fatalf("count=%d", registry.Count())
	}
}
