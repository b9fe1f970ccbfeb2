package headless

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestResponseMetaCapturesDocumentStatus(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	require.Zero(t, meta.status())

	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 404},
	})
	require.Zero(t, meta.status())

	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 200},
	})
	require.Equal(t, 200, meta.status())

	meta.captureEvent("not an event")
	require.Equal(t, 200, meta.status())
}
