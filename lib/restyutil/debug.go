package restyutil

import (
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// InstrumentDebug writes a transcript of every request to output,
// including requests that died in transport before a response came
// back. Tracing is left to the telemetry package; this only records
// the raw traffic. A nil output makes it a no-op.
func InstrumentDebug(client *resty.Client, output Output) {
	if output == nil {
		return
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := strconv.FormatUint(atomic.AddUint64(&idcounter, 1), 10)
		output.Write(id, formatTranscript(res))
		slog.Debug(
			"recorded http transcript",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"status", res.StatusCode(),
			"transcript_id", id,
		)
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		id := strconv.FormatUint(atomic.AddUint64(&idcounter, 1), 10)
		output.Write(id, formatErrorTranscript(req, err))
		slog.Debug(
			"recorded failed http transcript",
			"method", req.Method,
			"url", req.URL,
			"err", err,
			"transcript_id", id,
		)
	})
}
