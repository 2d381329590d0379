package telemetry

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/rollbar/rollbar-go"
)

// Reporter forwards unexpected failures to Rollbar when a token is
// configured. It always logs through slog.
type Reporter struct {
	enabled bool
}

func NewReporter(token, environment, codeVersion string) *Reporter {
	if token == "" {
		rollbar.SetEnabled(false)
		return &Reporter{}
	}
	host, _ := os.Hostname()
	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	rollbar.SetCodeVersion(codeVersion)
	rollbar.SetServerHost(host)
	rollbar.SetEnabled(true)
	slog.Info("rollbar error reporting enabled", "environment", environment)
	return &Reporter{enabled: true}
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// Error reports err. req may be nil.
func (r *Reporter) Error(err error, req *http.Request) {
	if err == nil {
		return
	}
	attrs := []any{"error", err}
	if req != nil {
		attrs = append(attrs, "method", req.Method, "path", req.URL.Path)
	}
	slog.Error("unexpected error", attrs...)
	if !r.Enabled() {
		return
	}
	if req != nil {
		rollbar.Error(err, req)
		return
	}
	rollbar.Error(err)
}

func (r *Reporter) Panic(value interface{}, req *http.Request) {
	err, ok := value.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", value)
	}
	slog.Error("recovered panic", "panic", value, "method", req.Method, "path", req.URL.Path)
	if r.Enabled() {
		rollbar.Critical(err, req)
	}
}

// Close waits for queued Rollbar items to be sent.
func (r *Reporter) Close() {
	if r.Enabled() {
		rollbar.Wait()
	}
}
