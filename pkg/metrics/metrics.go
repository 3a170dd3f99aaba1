// Package metrics exposes prometheus metrics described by tagged structs.
//
// Sample usage:
//
//	type myMetrics struct {
//	  Requests struct {
//	    Count  prometheus.Counter     `metric:"total" description:"number of requests"`
//	    Errors *prometheus.CounterVec `metric:"errors_total" labels:"code"`
//	  } `group:"requests"`
//	}
//
//	m := &myMetrics{}
//	reg := prometheus.NewRegistry()
//	err := metrics.Register(reg, "myapp", m)
//	m.Requests.Count.Inc()
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Namespace prefixes the metrics of this module
const Namespace = "voteview"

const shutdownTimeout = 15 * time.Second

// Register allocates the metrics declared by m, a pointer to a struct, and registers them.
//
// Registration errors are combined: fields registered successfully remain usable.
func Register(reg prometheus.Registerer, namespace string, m interface{}) error {
	return scanStruct(namespace, m, reg.Register)
}

// Handler serves the metrics gathered by a registry
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on a listener until the context is done
func Serve(ctx context.Context, lis net.Listener, g prometheus.Gatherer, l *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			l.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	l.Info("serving metrics", zap.String("addr", lis.Addr().String()))
	err := server.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}
