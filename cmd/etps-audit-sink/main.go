// etps-audit-sink consumes linkgate telemetry events from NATS and appends
// them to an audit log, exposing consumption metrics over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/zapr"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linkgate-platform/linkgate/internal/etps"
)

var (
	eventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgate_audit_events_consumed_total",
			Help: "Telemetry events consumed from the bus by kind.",
		},
		[]string{"kind"},
	)
	eventsMalformedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkgate_audit_events_malformed_total",
			Help: "Messages that could not be decoded as telemetry events.",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsConsumedTotal, eventsMalformedTotal)
}

func main() {
	var natsURL string
	var subject string
	var metricsAddr string
	var auditPath string

	flag.StringVar(&natsURL, "nats-url", nats.DefaultURL, "NATS server URL")
	flag.StringVar(&subject, "subject", etps.DefaultSubject, "subject carrying telemetry events")
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":9108", "address for the /metrics endpoint")
	flag.StringVar(&auditPath, "audit-log", "linkgate_audit.jsonl", "append-only audit log path")
	flag.Parse()

	zl, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	log := zapr.NewLogger(zl).WithName("audit-sink")

	audit, err := etps.NewFileSink(auditPath)
	if err != nil {
		log.Error(err, "cannot open audit log")
		os.Exit(1)
	}
	defer audit.Close()

	nc, err := nats.Connect(natsURL)
	if err != nil {
		log.Error(err, "cannot connect to nats", "url", natsURL)
		os.Exit(1)
	}
	defer nc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev etps.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			eventsMalformedTotal.Inc()
			log.Error(err, "malformed event payload")
			return
		}
		eventsConsumedTotal.WithLabelValues(string(ev.Kind)).Inc()
		if err := audit.Deliver(ctx, ev); err != nil {
			log.Error(err, "audit append failed", "traceID", ev.TraceID)
		}
		if ev.Severity >= etps.SeverityCritical {
			log.Info("critical decision recorded",
				"traceID", ev.TraceID, "kind", ev.Kind, "detail", ev.Detail)
		}
	})
	if err != nil {
		log.Error(err, "subscribe failed", "subject", subject)
		os.Exit(1)
	}
	defer func() { _ = sub.Unsubscribe() }()

	srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("audit sink running", "subject", subject, "metrics", metricsAddr, "audit", auditPath)
	if err := g.Wait(); err != nil {
		log.Error(err, "audit sink stopped")
		os.Exit(1)
	}
}
