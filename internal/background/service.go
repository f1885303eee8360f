// internal/background/service.go
package background

import (
	"context"

	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/messaging"
)

// Service is the background context: it owns the fetch proxy and the tab
// controller and answers bus traffic from the other contexts.
type Service struct {
	proxy *Proxy
	tabs  *TabController
	log   *zap.Logger
}

// NewService assembles the background context.
func NewService(proxy *Proxy, tabs *TabController, logger *zap.Logger) *Service {
	return &Service{proxy: proxy, tabs: tabs, log: logger.Named("background")}
}

// Tabs exposes the controller for the host environment's navigation events.
func (s *Service) Tabs() *TabController { return s.tabs }

// Attach registers the background listener on the bus.
func (s *Service) Attach(bus *messaging.Bus) {
	bus.Register(messaging.AddressBackground, s.handle)
}

// handle answers one delivery. Fetches are asynchronous: the handler
// signals pending and completes from its own goroutine so the background
// loop keeps processing other messages while the network call is out.
func (s *Service) handle(ctx context.Context, d messaging.Delivery, respond func(any)) bool {
	switch msg := d.Payload.(type) {
	case schemas.FetchResumeRequest:
		go func() {
			env, err := s.proxy.FetchResource(ctx, msg.DownloadURL, msg.Token)
			if err != nil {
				s.log.Warn("Proxied fetch failed",
					zap.String("correlation_id", d.ID),
					zap.Error(err))
				respond(schemas.FetchResumeResponse{OK: false, Error: err.Error()})
				return
			}
			respond(schemas.FetchResumeResponse{OK: true, Envelope: &env})
		}()
		return true

	case schemas.FieldDetectedReport:
		s.tabs.OnFieldDetected(msg.TabID)
		respond(schemas.UploadResult{OK: true})
		return false

	default:
		s.log.Warn("Unrecognized message", zap.String("correlation_id", d.ID))
		return false
	}
}
