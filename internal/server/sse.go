package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/fleetyard/internal/analytics"
)

const heartbeatInterval = 15 * time.Second

// handleEvents streams the fleet view as server-sent events. A "fleet" event
// is sent on connect and again whenever the view changes between polls.
func handleEvents(svc *analytics.Service, interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		ctx := c.Request.Context()
		var last []byte
		poll := func() {
			fleet, err := svc.Fleet(ctx)
			if err != nil {
				if ctx.Err() == nil {
					c.Error(err)
				}
				return
			}
			data, err := json.Marshal(fleet)
			if err != nil || bytes.Equal(data, last) {
				return
			}
			last = data
			writeSSE(c.Writer, "fleet", data)
			c.Writer.Flush()
		}

		writeSSE(c.Writer, "connected", []byte(`{"type":"connected"}`))
		poll()

		ticker := time.NewTicker(interval)
		heartbeat := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", []byte(fmt.Sprintf(`{"timestamp":%q}`, time.Now().UTC().Format(time.RFC3339))))
				c.Writer.Flush()
			case <-ticker.C:
				poll()
			}
		}
	}
}

// writeSSE writes a single SSE event with a JSON payload.
func writeSSE(w io.Writer, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
