// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package tether

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Aggregate metrics across all connections in the process. Per-connection
// counters are kept separately on each Conn; these exist so an operator can
// watch the daemon as a whole without enumerating connections.
var (
	mSyncWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_sync_writes_total",
		Help: "Total number of synchronous message writes requested.",
	})
	mAsyncWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_async_writes_total",
		Help: "Total number of asynchronous message writes enqueued.",
	})
	mBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_bytes_written_total",
		Help: "Total payload bytes requested for writing.",
	})
	mBytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_bytes_read_total",
		Help: "Total payload bytes read from peers.",
	})
	mQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tether_async_queue_depth",
		Help: "Number of async writes currently buffered across all connections.",
	})
	mBrokenPipes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_broken_pipes_total",
		Help: "Number of connections that have latched a broken pipe.",
	})
)
