package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/flowrun/flowrun/internal/flow"
	"github.com/flowrun/flowrun/internal/format"
	"github.com/flowrun/flowrun/internal/logging"
)

// sseWriter writes server-sent events and flushes after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, true
}

// send writes v as the data of an event named name. The payload gains a
// "seq" field so clients can detect gaps.
func (s *sseWriter) send(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.seq++
	if data, err = sjson.SetBytes(data, "seq", s.seq); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var opts []flow.StreamOption
	if v := r.URL.Query().Get("format"); v != "" {
		parsed, perr := format.Parse(v)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr)
			return
		}
		opts = append(opts, flow.WithFormat(parsed))
	}
	sse, ok := newSSEWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	for ev := range s.flows.Stream(r.Context(), req.Query, r.PathValue("id"), req.Context, opts...) {
		if err := sse.send(string(ev.Kind), ev); err != nil {
			logging.Debug("Stream client went away", "error", err)
			return
		}
	}
}

// handleEvents relays bus events until the client disconnects. The kind and
// flow query parameters narrow the relayed events; kind may list several
// comma-separated kinds.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	kinds := map[flow.EventKind]bool{}
	for _, k := range strings.Split(r.URL.Query().Get("kind"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds[flow.EventKind(k)] = true
		}
	}
	flowID := r.URL.Query().Get("flow")

	// Every event published after the client sees the headers is relayed.
	ctx := r.Context()
	events := s.flows.Subscribe(ctx)

	sse, ok := newSSEWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if len(kinds) > 0 && !kinds[e.Payload.Kind] {
				continue
			}
			if flowID != "" && e.Payload.FlowID != flowID {
				continue
			}
			if err := sse.send(string(e.Payload.Kind), e.Payload); err != nil {
				logging.Debug("Event client went away", "error", err)
				return
			}
		}
	}
}
