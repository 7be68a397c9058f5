package wsduplex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestRequestResponseCorrelationUnderConcurrency is P7: firing many
// concurrent requests at once must never deliver one waiter's response to
// another, even though the requests reach the server in an order that
// differs from the order their goroutines were started.
func TestRequestResponseCorrelationUnderConcurrency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Accept(w, r)
		if err != nil {
			return
		}
		conn.HandleRequests(func(method string, data json.RawMessage) (any, error) {
			var req struct {
				Token string `json:"token"`
			}
			if err := json.Unmarshal(data, &req); err != nil {
				return nil, err
			}
			// Delay each reply briefly. Every token is 7 characters long,
			// so the delay is the same 2ms for all of them; the server's
			// read loop answers requests one at a time, in arrival order.
			time.Sleep(time.Duration(len(req.Token)%5) * time.Millisecond)
			return struct {
				Token string `json:"token"`
			}{Token: req.Token}, nil
		})
		<-conn.done
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(context.Background(), wsURL, http.Header{})
	require.NoError(t, err)
	defer client.Disconnect()

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 50; i++ {
		token := fmt.Sprintf("tok-%03d", i)
		g.Go(func() error {
			var res struct {
				Token string `json:"token"`
			}
			req := struct {
				Token string `json:"token"`
			}{Token: token}
			if err := client.Request(ctx, "echo", req, &res); err != nil {
				return err
			}
			if res.Token != token {
				return fmt.Errorf("correlation mixup: sent %q, got back %q", token, res.Token)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

// TestResponseSubscriptionIsolatedByEventName guards the other half of
// wsduplex's demultiplexing: a subscription to one event name over a Conn
// that also carries another event name must see only its own payloads.
func TestResponseSubscriptionIsolatedByEventName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Accept(w, r)
		if err != nil {
			return
		}
		_ = conn.Publish("a", map[string]string{"from": "a"})
		_ = conn.Publish("b", map[string]string{"from": "b"})
		<-conn.done
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(context.Background(), wsURL, http.Header{})
	require.NoError(t, err)
	defer client.Disconnect()

	subA := client.Response("a")
	defer subA.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, ok := subA.Next(ctx)
	require.True(t, ok)
	var decoded struct {
		From string `json:"from"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, "a", decoded.From)
}
