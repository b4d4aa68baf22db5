package notify

import (
	"context"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/soundpool-go/internal/errors"
)

// Sender delivers a single notification. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, title, body string) error
}

// ShoutrrrSender sends notifications via nicholas-fedor/shoutrrr. One
// sender fans out to every configured service URL.
type ShoutrrrSender struct {
	urls   []string
	sender *router.ServiceRouter
}

// NewShoutrrrSender validates the service URLs and builds the router.
// Service URLs may embed tokens, so they are never echoed back in errors
// or logs.
func NewShoutrrrSender(urls []string, timeout time.Duration) (*ShoutrrrSender, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(err).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Context("url_count", len(urls)).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrSender{
		urls:   slices.Clone(urls),
		sender: sender,
	}, nil
}

// Send pushes one notification to all configured services. The router
// handles its own per-service timeouts, so ctx is not consulted here.
func (s *ShoutrrrSender) Send(ctx context.Context, title, body string) error {
	_ = ctx

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	errs := s.sender.Send(body, &params)
	for _, e := range errs {
		if e != nil {
			return errors.New(e).
				Component("notify").
				Category(errors.CategoryIntegration).
				Context("url_count", len(s.urls)).
				Build()
		}
	}
	return nil
}
