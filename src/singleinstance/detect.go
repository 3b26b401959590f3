package singleinstance

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultProbeTimeout = 300 * time.Millisecond
	probeParallelism    = 8
)

// DetectResidentPort probes every port of the range and returns the lowest
// one whose listener answers PING, or false when none does.
func DetectResidentPort(ctx context.Context) (int, bool) {
	timeout := defaultProbeTimeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < timeout {
			timeout = d
		}
	}
	start, end := getPortRange()

	var (
		mu    sync.Mutex
		found int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeParallelism)
	for port := start; port <= end; port++ {
		g.Go(func() error {
			addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
			if !ping(gctx, addr, timeout) {
				return nil
			}
			mu.Lock()
			if found == 0 || port < found {
				found = port
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return found, found != 0
}

// ping reports whether addr is a resident.
func ping(ctx context.Context, addr string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if _, err := conn.Write([]byte(pingRequest)); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}
