// Package metrics exposes the process's Prometheus collectors: an HTTP handler wrapper that
// times every control-plane API request, and a set of gauges reflecting the controllers'
// in-memory view of deployments and batch jobs. Grounded on the teacher's
// internal/metrics (HandlerWrapperBuilder/pathTree/labels.go), generalized from the teacher's
// inventory API paths to this service's own routes.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HandlerWrapperBuilder configures an HTTP middleware that records request_count and
// request_duration histograms per (method, path, code), the path collapsed through a pathTree
// so that path parameters don't blow up label cardinality.
type HandlerWrapperBuilder struct {
	paths      []string
	subsystem  string
	registerer prometheus.Registerer
}

type handlerWrapper struct {
	paths           pathTree
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

type handler struct {
	owner   *handlerWrapper
	handler http.Handler
}

var _ http.Handler = (*handler)(nil)

type responseWriter struct {
	code   int
	writer http.ResponseWriter
}

var _ http.ResponseWriter = (*responseWriter)(nil)

func NewHandlerWrapper() *HandlerWrapperBuilder {
	return &HandlerWrapperBuilder{registerer: prometheus.DefaultRegisterer}
}

func (b *HandlerWrapperBuilder) AddPath(value string) *HandlerWrapperBuilder {
	b.paths = append(b.paths, value)
	return b
}

func (b *HandlerWrapperBuilder) AddPaths(values ...string) *HandlerWrapperBuilder {
	b.paths = append(b.paths, values...)
	return b
}

func (b *HandlerWrapperBuilder) SetSubsystem(value string) *HandlerWrapperBuilder {
	b.subsystem = value
	return b
}

func (b *HandlerWrapperBuilder) SetRegisterer(value prometheus.Registerer) *HandlerWrapperBuilder {
	if value == nil {
		value = prometheus.DefaultRegisterer
	}
	b.registerer = value
	return b
}

func (b *HandlerWrapperBuilder) Build() (func(http.Handler) http.Handler, error) {
	if b.subsystem == "" {
		return nil, fmt.Errorf("subsystem is mandatory")
	}

	requestCount, err := registerCounterVec(b.registerer, prometheus.CounterOpts{
		Subsystem: b.subsystem,
		Name:      "request_count",
		Help:      "Number of control plane API requests served.",
	}, requestLabelNames)
	if err != nil {
		return nil, err
	}

	requestDuration, err := registerHistogramVec(b.registerer, prometheus.HistogramOpts{
		Subsystem: b.subsystem,
		Name:      "request_duration",
		Help:      "Control plane API request duration in seconds.",
		Buckets:   []float64{0.1, 1.0, 10.0, 30.0},
	}, requestLabelNames)
	if err != nil {
		return nil, err
	}

	paths := pathTree{}
	for _, path := range b.paths {
		paths.add(path)
	}

	wrapper := &handlerWrapper{paths: paths, requestCount: requestCount, requestDuration: requestDuration}
	return wrapper.wrap, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) (*prometheus.HistogramVec, error) {
	vec := prometheus.NewHistogramVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(*prometheus.HistogramVec), nil
		}
		return nil, err
	}
	return vec, nil
}

func (w *handlerWrapper) wrap(h http.Handler) http.Handler {
	return &handler{owner: w, handler: h}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writer := responseWriter{code: http.StatusOK, writer: w}

	start := time.Now()
	h.handler.ServeHTTP(&writer, r)
	elapsed := time.Since(start)

	labels := prometheus.Labels{
		methodLabelName: methodLabel(r.Method),
		pathLabelName:   pathLabel(h.owner.paths, r.URL.Path),
		codeLabelName:   codeLabel(writer.code),
	}
	h.owner.requestCount.With(labels).Inc()
	h.owner.requestDuration.With(labels).Observe(elapsed.Seconds())
}

func (w *responseWriter) Header() http.Header { return w.writer.Header() }

func (w *responseWriter) Write(b []byte) (int, error) { return w.writer.Write(b) }

func (w *responseWriter) WriteHeader(code int) {
	w.code = code
	w.writer.WriteHeader(code)
}

func (w *responseWriter) Flush() {
	if flusher, ok := w.writer.(http.Flusher); ok {
		flusher.Flush()
	}
}
