package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDaemon_RequiresCrawlFunc(t *testing.T) {
	_, err := NewDaemon(Config{Interval: time.Second})
	require.Error(t, err)
}

func TestNewDaemon(t *testing.T) {
	cfg := Config{
		Interval: 5 * time.Minute,
		Crawl:    func(ctx context.Context) error { return nil },
		Logger:   zerolog.Nop(),
	}

	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	assert.NotNil(t, d)
	assert.Equal(t, cfg.Interval, d.interval)
}

func TestDaemon_StartAndCancel(t *testing.T) {
	var calls atomic.Int64
	d, err := NewDaemon(Config{
		Interval: 50 * time.Millisecond,
		Crawl: func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Start(ctx)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not shut down within timeout")
	}

	assert.GreaterOrEqual(t, calls.Load(), int64(2))
	assert.GreaterOrEqual(t, d.CrawlCount(), int64(2))
}

func TestDaemon_CrawlErrorDoesNotStopLoop(t *testing.T) {
	var calls atomic.Int64
	d, err := NewDaemon(Config{
		Interval: 50 * time.Millisecond,
		Crawl: func(ctx context.Context) error {
			n := calls.Add(1)
			if n == 1 {
				return errors.New("transient failure")
			}
			return nil
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Start(ctx)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()
	<-errCh

	assert.GreaterOrEqual(t, calls.Load(), int64(2))
	health := d.Health()
	assert.Equal(t, int64(1), health.CrawlErrors)
}

func TestDaemon_MetricsServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	d, err := NewDaemon(Config{
		Interval:    time.Minute,
		MetricsPort: port,
		Crawl:       func(ctx context.Context) error { return nil },
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return d.MetricsAddr() != ""
	}, 2*time.Second, 10*time.Millisecond)

	addr := d.MetricsAddr()

	resp, err := http.Get(fmt.Sprintf("http://%s/health", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	<-errCh
}

func TestDaemon_Health(t *testing.T) {
	d, err := NewDaemon(Config{
		Interval: 5 * time.Minute,
		Crawl:    func(ctx context.Context) error { return nil },
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	health := d.Health()
	assert.Equal(t, "healthy", health.Status)
	assert.GreaterOrEqual(t, health.Uptime, int64(0))
}
