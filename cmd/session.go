// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Thermoquad/herald/pkg/messenger"
	"github.com/Thermoquad/herald/pkg/messenger/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// pollInterval is how long the receive loops sleep when no byte is queued
const pollInterval = time.Millisecond

// session is an open connection with a messenger running on it
type session struct {
	info  string
	ch    *messenger.StreamChannel
	m     *messenger.Messenger
	stats *messenger.Statistics
}

// openSession opens the connection selected by the flags and starts a
// messenger on it. The metrics endpoint is served when --metrics is set.
func openSession() (*session, error) {
	opts, err := messengerOptions()
	if err != nil {
		return nil, err
	}

	sep, err := separators()
	if err != nil {
		return nil, err
	}
	ch, info, err := openChannel(sep)
	if err != nil {
		return nil, err
	}

	stats := messenger.NewStatistics()
	m, err := messenger.New(ch, append(opts, messenger.WithStatistics(stats))...)
	if err != nil {
		ch.Close()
		return nil, err
	}

	serveMetrics(stats, info)

	if log != nil {
		log.Info().Str("connection", info).Msg("connected")
	}
	return &session{info: info, ch: ch, m: m, stats: stats}, nil
}

// Close stops the reader and closes the connection
func (s *session) Close() error {
	return s.ch.Close()
}

// run feeds incoming bytes to the messenger until ctx is done or the
// connection closes. after runs once per iteration, on the same goroutine.
func (s *session) run(ctx context.Context, after func()) error {
	for {
		if err := s.m.FeedIncoming(); err != nil {
			return err
		}
		if after != nil {
			after()
		}
		if s.ch.Closed() {
			if err := s.ch.Err(); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return io.EOF
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// serveMetrics exposes the messenger counters plus the Go runtime and
// process collectors on /metrics
func serveMetrics(stats *messenger.Statistics, info string) {
	if metricsAddr == "" {
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCollector(stats, prometheus.Labels{"connection": info}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		reg,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Registry:          reg,
		},
	))

	go func() {
		if err := http.ListenAndServe(metricsAddr, mux); err != nil && log != nil {
			log.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server stopped")
		}
	}()
}
