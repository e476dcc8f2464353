package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/NordCoder/Gorev/internal/domain/notification"
)

// Router handles a click on an alert: focus an open view of the app, or open
// one at the alert's deep link.
type Router struct {
	Origin  string
	Clients Clients
}

func (r Router) Route(ctx context.Context, a *Alert) error {
	a.Close()
	noteID := a.Data["noteId"]

	views, err := r.Clients.MatchAll(ctx)
	if err != nil {
		return fmt.Errorf("match clients: %w", err)
	}
	for _, v := range views {
		if sameOrigin(v.URL(), r.Origin) {
			return v.Focus(ctx)
		}
	}
	if err := r.Clients.Open(ctx, notification.AbsoluteLink(r.Origin, noteID)); err != nil {
		return fmt.Errorf("open client: %w", err)
	}
	return nil
}

func sameOrigin(url, origin string) bool {
	origin = strings.TrimRight(origin, "/")
	return url == origin || strings.HasPrefix(url, origin+"/")
}
