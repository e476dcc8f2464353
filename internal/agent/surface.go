package agent

import (
	"context"
	"sync"
	"sync/atomic"
)

// Alert is a rendered, user-visible notification.
type Alert struct {
	Title string
	Body  string
	Icon  string
	Badge string
	Data  map[string]string

	// OnClose is called once when the alert is dismissed.
	OnClose func()

	closeOnce sync.Once
	closed    atomic.Bool
}

func (a *Alert) Close() {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		if a.OnClose != nil {
			a.OnClose()
		}
	})
}

func (a *Alert) Closed() bool { return a.closed.Load() }

// Surface renders alerts on the device.
type Surface interface {
	Show(ctx context.Context, a *Alert) error
}

// Client is an open application view.
type Client interface {
	URL() string
	Focus(ctx context.Context) error
}

// Clients enumerates and opens application views.
type Clients interface {
	MatchAll(ctx context.Context) ([]Client, error)
	Open(ctx context.Context, url string) error
}
