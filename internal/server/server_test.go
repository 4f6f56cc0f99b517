package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dexbot/goswap/internal/domain"
	"github.com/dexbot/goswap/internal/events"
	"github.com/dexbot/goswap/internal/services"
	"github.com/dexbot/goswap/internal/store"
	"github.com/dexbot/goswap/internal/venues"
)

type fixture struct {
	ts     *httptest.Server
	store  *store.SQLiteStore
	queue  *services.JobQueue
	bcast  *services.Broadcaster
	mock   *venues.MockAdapter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	mock := venues.NewMockAdapter("uniswap")
	adapters := []venues.Adapter{mock}
	bcast := services.NewBroadcaster()
	monitor := services.NewPoolMonitor(adapters, nil, 25*time.Millisecond, 10)
	router := services.NewRouter(adapters)
	pipeline := services.NewPipeline(st, bcast, monitor, router, adapters)
	queue := services.NewJobQueue(pipeline, services.QueueOptions{
		Workers:     2,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	})
	queue.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = queue.Stop(ctx)
	})

	srv := New(st, queue, bcast, nil, adapters)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, store: st, queue: queue, bcast: bcast, mock: mock}
}

func (f *fixture) postOrder(t *testing.T, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.ts.URL+"/api/orders/", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	return resp, out
}

const validBody = `{"token_address":"0x3333333333333333333333333333333333333333","amount_in":"1.5","slippage":"0.5"}`

func TestCreateOrder_ValidRequest(t *testing.T) {
	f := newFixture(t)
	resp, out := f.postOrder(t, validBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", resp.StatusCode, out)
	}
	if out["status"] != "pending" {
		t.Fatalf("expected pending, got %v", out["status"])
	}
	orderID, _ := out["order_id"].(string)
	if orderID == "" {
		t.Fatalf("missing order_id")
	}
	if sp, _ := out["stream_path"].(string); !strings.Contains(sp, orderID) {
		t.Fatalf("stream_path should reference the order: %v", out["stream_path"])
	}

	// Immediately retrievable by id.
	getResp, err := http.Get(f.ts.URL + "/api/orders/" + orderID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", getResp.StatusCode)
	}
}

func TestCreateOrder_UniqueIDs(t *testing.T) {
	f := newFixture(t)
	_, first := f.postOrder(t, validBody)
	_, second := f.postOrder(t, validBody)
	if first["order_id"] == second["order_id"] {
		t.Fatalf("order ids must be unique")
	}
}

func TestCreateOrder_MissingFieldCreatesNoOrder(t *testing.T) {
	f := newFixture(t)
	cases := []string{
		`{}`,
		`{"token_address":"0x3333333333333333333333333333333333333333"}`,
		`{"token_address":"0x3333333333333333333333333333333333333333","amount_in":"1.5"}`,
		`{"token_address":"nonsense","amount_in":"1.5","slippage":"0.5"}`,
		`{"token_address":"0x3333333333333333333333333333333333333333","amount_in":"-1","slippage":"0.5"}`,
	}
	for _, body := range cases {
		resp, _ := f.postOrder(t, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, resp.StatusCode)
		}
	}
	orders, err := f.store.List(context.Background(), 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("invalid requests created %d orders", len(orders))
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.ts.URL + "/api/orders/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestOrderRunsToConfirmed(t *testing.T) {
	f := newFixture(t)
	_, out := f.postOrder(t, validBody)
	orderID := out["order_id"].(string)

	deadline := time.Now().Add(5 * time.Second)
	for {
		order, err := f.store.GetByID(context.Background(), orderID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if order.Status == domain.StatusConfirmed {
			if order.TxHash == nil {
				t.Fatalf("confirmed without tx_hash")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("order stuck in %s", order.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOrderStream_DeliversEventsUntilTerminal(t *testing.T) {
	f := newFixture(t)

	// Hold discovery back a few ticks so the observer attaches before
	// the terminal event.
	f.mock.PoolExistsAfter = 6

	_, out := f.postOrder(t, validBody)
	orderID := out["order_id"].(string)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/api/orders/" + orderID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var last events.OrderEvent
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			// Normal closure after the final event is fine.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && last.Final {
				break
			}
			t.Fatalf("read: %v (last=%+v)", err, last)
		}
		if err := json.Unmarshal(payload, &last); err != nil {
			t.Fatalf("bad event: %v", err)
		}
		if last.Final {
			break
		}
	}
	if last.Status != domain.StatusConfirmed {
		t.Fatalf("expected terminal confirmed, got %s", last.Status)
	}
	if last.TxHash == "" {
		t.Fatalf("confirmed event missing tx hash")
	}
}

func TestOrderStream_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/api/orders/nope/stream"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on unknown order")
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("expected ok, got %s", body.Status)
	}
	if body.Checks["store"].Status != "ok" || body.Checks["queue"].Status != "ok" {
		t.Fatalf("unexpected checks: %+v", body.Checks)
	}
}

func TestQueueStats(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.ts.URL + "/api/queue/stats")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var st services.Stats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Workers != 2 || !st.Accepting {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
