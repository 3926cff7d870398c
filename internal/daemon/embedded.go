package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jcdickinson/doxnav/internal/config"
	"github.com/jcdickinson/doxnav/internal/db"
)

const (
	startTimeout = 5 * time.Second
	pollInterval = 50 * time.Millisecond
)

// Embedded is a daemon served from the calling process. The --debug flag
// uses it so handler logs reach the terminal instead of the log file.
type Embedded struct {
	*Client
	srv  *Server
	done chan error
}

// StartEmbedded takes over socketPath from any daemon already listening
// there and serves it from this process. The database is opened only once
// the previous owner has released the socket, since DuckDB holds a file lock
// until Stop closes it. Inactivity expiry stops the server but never exits
// the process.
func StartEmbedded(cfg *config.Config, dbPath, socketPath string) (*Embedded, error) {
	client := NewClient(socketPath)
	if client.IsAvailable() {
		slog.Info("replacing running daemon", "socket", socketPath)
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		err := client.Shutdown(ctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("stopping running daemon: %w", err)
		}
		released := poll(startTimeout, func() bool {
			_, err := os.Stat(socketPath)
			return os.IsNotExist(err)
		})
		if !released {
			return nil, fmt.Errorf("daemon on %s did not release its socket", socketPath)
		}
	}

	var database *db.DB
	var openErr error
	opened := poll(startTimeout, func() bool {
		database, openErr = db.New(dbPath)
		return openErr == nil
	})
	if !opened {
		return nil, fmt.Errorf("opening database: %w", openErr)
	}

	srv := NewServer(cfg, database, socketPath)
	srv.exit = func() {}
	e := &Embedded{Client: client, srv: srv, done: make(chan error, 1)}
	go func() { e.done <- srv.Start(context.Background()) }()

	deadline := time.After(startTimeout)
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for !client.IsAvailable() {
		select {
		case err := <-e.done:
			database.Close()
			if err == nil {
				err = errors.New("server closed before accepting connections")
			}
			return nil, fmt.Errorf("starting in-process daemon: %w", err)
		case <-deadline:
			srv.Stop(context.Background())
			return nil, fmt.Errorf("in-process daemon did not start within %s", startTimeout)
		case <-tick.C:
		}
	}
	return e, nil
}

// Close stops the server and waits for its serve loop to return.
func (e *Embedded) Close(ctx context.Context) error {
	stopErr := e.srv.Stop(ctx)
	select {
	case err := <-e.done:
		return errors.Join(stopErr, err)
	case <-ctx.Done():
		return errors.Join(stopErr, ctx.Err())
	}
}

// poll calls ready every pollInterval until it reports true or timeout
// elapses. ready is always called at least once.
func poll(timeout time.Duration, ready func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if ready() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
