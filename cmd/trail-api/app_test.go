package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trailshare/trailshare/internal/api/rpc"
	"github.com/trailshare/trailshare/internal/models"
	"github.com/trailshare/trailshare/internal/services/tracks"
	"github.com/trailshare/trailshare/internal/storage/pgtrack"
)

type fakeRepo struct{}

func (r *fakeRepo) CreateTrack(ctx context.Context, in models.TrackCreateInput) (*models.Track, error) {
	return &models.Track{ID: 1}, nil
}
func (r *fakeRepo) ListTracks(ctx context.Context) ([]*models.Track, error) {
	return []*models.Track{}, nil
}
func (r *fakeRepo) GetTrack(ctx context.Context, id int64) (*models.Track, error) {
	return nil, nil
}
func (r *fakeRepo) UpdateTrack(ctx context.Context, upd pgtrack.TrackUpdate) (*models.Track, error) {
	return nil, nil
}
func (r *fakeRepo) DeleteTrack(ctx context.Context, id int64) error { return nil }

type fakeConsumer struct {
	mu   sync.Mutex
	got  [][]byte
	done chan struct{}
}

func (c *fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	c.mu.Lock()
	msgs := c.got
	c.mu.Unlock()
	for _, m := range msgs {
		if err := handler(nil, m); err != nil {
			return err
		}
	}
	if c.done != nil {
		close(c.done)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunTrailAPI_ServesAndStops(t *testing.T) {
	svc := tracks.New(&fakeRepo{}, nil, 0, nil, "")
	handler := rpc.NewServer(svc, rpc.Options{}).Router()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := trailAPIOpts{
		httpAddr:      "127.0.0.1:0",
		topic:         "t",
		consumerGroup: "g",
		onListen:      func(addr string) { addrCh <- addr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runTrailAPI(ctx, opts, handler, svc, nil)
	}()

	addr := <-addrCh

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	body, err := json.Marshal(map[string]any{"method": "getTracks"})
	require.NoError(t, err)
	rpcResp, err := http.Post("http://"+addr+"/rpc", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer rpcResp.Body.Close()
	require.Equal(t, 200, rpcResp.StatusCode)

	cancel()

	select {
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting server to stop")
	case err := <-errCh:
		require.Error(t, err)
	}
}

func TestRunTrailAPI_ConsumerInvalidatesThroughService(t *testing.T) {
	svc := tracks.New(&fakeRepo{}, nil, 0, nil, "")
	handler := rpc.NewServer(svc, rpc.Options{}).Router()

	msg, err := json.Marshal(map[string]any{"track_id": 7, "action": "updated"})
	require.NoError(t, err)
	cons := &fakeConsumer{got: [][]byte{msg}, done: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := trailAPIOpts{
		httpAddr: "127.0.0.1:0",
		topic:    "t",
		onListen: func(addr string) { addrCh <- addr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runTrailAPI(ctx, opts, handler, svc, cons)
	}()

	<-addrCh

	select {
	case <-cons.done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer was not drained")
	}

	cancel()
	require.Error(t, <-errCh)
}
