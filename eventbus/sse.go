package eventbus

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// WriteSSE encodes ev as one §6 SSE line group ("event: <name>\ndata:
// <JSON>\n\n") to w. Grounded on Gurpartap-agentframe's NDJSON handler
// shape, adapted from newline-delimited JSON to the spec's named-event SSE
// framing.
func WriteSSE(w io.Writer, ev Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("eventbus: encode event %q: %w", ev.Name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload); err != nil {
		return err
	}
	if f, ok := w.(interface{ Flush() }); ok {
		f.Flush()
	}
	return nil
}

// StreamTo ranges over events until the channel closes, writing each as an
// SSE line group. The caller is expected to have already subscribed via
// Bus.Subscribe and to close the response once this returns (the server
// closes the stream on execution_complete/execution_cancelled per §6, so
// callers typically select on ev.Name alongside StreamTo's return).
func StreamTo(w io.Writer, events <-chan Event) error {
	for ev := range events {
		if err := WriteSSE(w, ev); err != nil {
			return err
		}
		if ev.Name == ExecutionComplete || ev.Name == ExecutionCancelled {
			return nil
		}
	}
	return nil
}
