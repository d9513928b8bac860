package broadcast

import (
	"context"
	"encoding/json"
	"net/http"

	gosse "github.com/alexandrevicenzi/go-sse"
	"github.com/diwise/alert-engine/pkg/types"
)

const AlertEventName string = "alert"

type WebEvents interface {
	Sink
	http.Handler
	Shutdown()
}

type webEvents struct {
	s *gosse.Server
}

// NewWebEvents creates a server-sent events endpoint. Clients subscribe to
// the alerts of one organization with the organization_id query parameter.
func NewWebEvents() WebEvents {
	return &webEvents{
		s: gosse.NewServer(&gosse.Options{
			ChannelNameFunc: func(r *http.Request) string {
				return OrganizationChannel(r.URL.Query().Get("organization_id"))
			},
		}),
	}
}

func OrganizationChannel(organizationID string) string {
	return "organization:" + organizationID
}

func (we *webEvents) Name() string {
	return "sse"
}

func (we *webEvents) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	we.s.ServeHTTP(w, r)
}

func (we *webEvents) Shutdown() {
	we.s.Shutdown()
}

func (we *webEvents) Publish(ctx context.Context, b types.AlertBroadcast) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}

	message := gosse.NewMessage(b.AlertID, string(data), AlertEventName)
	we.s.SendMessage(OrganizationChannel(b.OrganizationID), message)

	return nil
}
