package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/wuhaolei455/mfbo-go/observability"
	"github.com/wuhaolei455/mfbo-go/optimizer"
)

// buildObservability wires the --metrics/--tracing/--audit-log flags into
// optimizer.Options, returning a shutdown func that releases whatever was
// started (a no-op when nothing was enabled).
func buildObservability(v *viper.Viper) ([]optimizer.Option, func(), error) {
	var opts []optimizer.Option
	var closers []func()
	shutdown := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if v.GetBool("tracing") {
		tp, err := observability.InitTracing("mfbo", true)
		if err != nil {
			return nil, shutdown, fmt.Errorf("initializing tracing: %w", err)
		}
		closers = append(closers, func() { _ = tp.Shutdown(context.Background()) })
	}

	if v.GetBool("metrics") {
		if _, err := observability.InitMetrics("mfbo"); err != nil {
			return nil, shutdown, fmt.Errorf("initializing metrics: %w", err)
		}
		closers = append(closers, func() { _ = observability.ShutdownMetrics(context.Background()) })

		m, err := observability.NewOptimizerMetrics()
		if err != nil {
			return nil, shutdown, fmt.Errorf("creating optimizer metrics: %w", err)
		}
		opts = append(opts, optimizer.WithMetrics(m))
	}

	if path := v.GetString("audit-log"); path != "" {
		adapter, err := observability.NewFileAuditAdapter(path, true)
		if err != nil {
			return nil, shutdown, fmt.Errorf("opening audit log: %w", err)
		}
		closers = append(closers, func() { _ = adapter.Close() })
		opts = append(opts, optimizer.WithAuditLogger(observability.NewAuditLogger(adapter)))
	}

	return opts, shutdown, nil
}
