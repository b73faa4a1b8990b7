package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cloudchase/chatstream/engine"
	"github.com/cloudchase/chatstream/metrics"
	"github.com/cloudchase/chatstream/prompt"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Detail: msg})
}

// decodeJSON decodes exactly one JSON value from r into v.
func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

// handleChatStream handles POST {prefix}/chat/stream. The body is the
// generated text, written and flushed fragment by fragment.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := zerolog.Ctx(ctx)

	var req ChatRequest
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		metrics.RequestsRejected.WithLabelValues("malformed").Inc()
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		metrics.RequestsRejected.WithLabelValues("validation").Inc()
		var verr *ValidationError
		if errors.As(err, &verr) {
			log.Debug().Str("field", verr.Field).Msg("rejected chat request")
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	params := engine.Resolve(s.defaults, req.Overrides(), s.bridge.Engine().Info())
	st, err := s.bridge.Start(ctx, prompt.Build(req.Message, req.system()), params)
	if err != nil {
		// Start only fails while waiting for a slot, i.e. the client left.
		log.Info().Err(err).Msg("client gone before generation started")
		return
	}
	defer st.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Trailer", TrailerStatus)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	start := time.Now()
	fragments := 0
	status := StatusComplete
	for {
		fragment, ok := st.Next(ctx)
		if !ok {
			break
		}
		if _, err := io.WriteString(w, fragment); err != nil {
			status = StatusCancelled
			break
		}
		flusher.Flush()
		fragments++
	}

	switch {
	case status == StatusCancelled || ctx.Err() != nil:
		status = StatusCancelled
	case st.Truncated():
		status = StatusTruncated
	}
	w.Header().Set(TrailerStatus, status)

	log.Info().
		Str("stream_id", st.ID()).
		Str("status", status).
		Int("fragments", fragments).
		Dur("duration", time.Since(start)).
		Msg("chat stream finished")
}
