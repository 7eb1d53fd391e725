package queueaccess

import (
	"context"
	"errors"
	"fmt"

	"vodpipe/internal/apiclient"
	"vodpipe/internal/queue"
)

// Session is a queue access handle plus its cleanup.
type Session struct {
	Access Access
	close  func() error
}

// Close releases the store when the session opened one.
func (s Session) Close() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}

// OpenWithFallback prefers the daemon API and drops to the queue database
// only when the daemon is unreachable. Any other API error is returned, since
// editing the database under a live daemon would race with it.
func OpenWithFallback(ctx context.Context, client *apiclient.Client, openStore func() (*queue.Store, error)) (Session, error) {
	live, err := daemonAnswers(ctx, client)
	if err != nil {
		return Session{}, err
	}
	if live {
		return Session{Access: NewAPIAccess(client)}, nil
	}
	if openStore == nil {
		return Session{}, errors.New("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{Access: NewStoreAccess(store), close: store.Close}, nil
}

func daemonAnswers(ctx context.Context, client *apiclient.Client) (bool, error) {
	if client == nil {
		return false, nil
	}
	_, err := client.Status(ctx)
	switch {
	case err == nil:
		return true, nil
	case apiclient.IsUnavailable(err):
		return false, nil
	default:
		return false, fmt.Errorf("daemon api: %w", err)
	}
}
