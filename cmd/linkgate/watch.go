package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/linkgate-platform/linkgate/internal/core"
	"github.com/linkgate-platform/linkgate/internal/etps"
	"github.com/linkgate-platform/linkgate/internal/manifest"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-validate the project whenever its declarations change",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().String("nats-url", "", "publish telemetry to this NATS server instead of the log")
	watchCmd.Flags().String("subject", etps.DefaultSubject, "NATS subject for telemetry events")
	watchCmd.Flags().String("metrics-bind-address", "", "serve prometheus metrics on this address (e.g. :9108)")
	watchCmd.Flags().Duration("settle", 250*time.Millisecond, "quiet period after a change before re-validating")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	log, flush, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer flush()

	root, err := cmd.Flags().GetString("project")
	if err != nil {
		return err
	}
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}

	var sink etps.Sink = etps.NewLogSink(log)
	if natsURL, _ := cmd.Flags().GetString("nats-url"); natsURL != "" {
		subject, _ := cmd.Flags().GetString("subject")
		sink, err = etps.NewNATSSink(natsURL, subject)
		if err != nil {
			return err
		}
	}

	c := core.New(p.coreOptions(sink, log))
	defer func() { _ = c.Close(context.Background()) }()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	// Component declarations live one level down.
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := watcher.Add(filepath.Join(root, entry.Name())); err != nil {
				log.Error(err, "cannot watch component dir", "dir", entry.Name())
			}
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if addr, _ := cmd.Flags().GetString("metrics-bind-address"); addr != "" {
		srv := &http.Server{Addr: addr, Handler: promhttp.Handler()}
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
	}

	settle, _ := cmd.Flags().GetDuration("settle")
	revalidate := func() {
		m, err := manifest.Discover(root)
		if err != nil {
			log.Error(err, "manifest reload failed", "root", root)
			return
		}
		components, err := m.ComponentSet()
		if err != nil {
			log.Error(err, "component declarations invalid")
			return
		}
		edges, err := m.EdgeSet()
		if err != nil {
			log.Error(err, "dependency declarations invalid")
			return
		}
		verdict := c.Validator.Validate(ctx, components, edges)
		log.Info("revalidated project",
			"verdict", verdict.Severity.String(),
			"offending", len(verdict.Offending),
			"trace", verdict.TraceID,
			"telemetryQueued", c.Emitter.QueueDepth(),
			"telemetryDropped", c.Emitter.Dropped(),
		)
	}

	g.Go(func() error {
		var timer *time.Timer
		fire := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !relevant(ev) {
					continue
				}
				// Editors fire bursts of events; debounce them.
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(settle, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Error(err, "watch error")
			case <-fire:
				revalidate()
			}
		}
	})

	log.Info("watching project", "root", root)
	revalidate()
	return g.Wait()
}

func relevant(ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	return name == manifest.ProjectFileName || name == manifest.ComponentFileName
}
