package config

import "time"

// Server defaults
const (
	DefaultPort        = "8080"
	DefaultWarehouse   = "BFI4"
	DefaultMaxMemoryMB = 48
)

// Cache freshness and retention
const (
	DefaultRefreshInterval = 60 * time.Second
	DefaultRetentionDays   = 60
	BadgerGCInterval       = 10 * time.Minute
)

// Fetch scheduling
const (
	DefaultSweepDays     = 60
	DefaultFetchParallel = 3
	FetchTimeout         = 30 * time.Second
)

// HTTP handler timeouts
const (
	IngestTimeout     = 5 * time.Second
	QueryTimeout      = 10 * time.Second
	AnalyticsTimeout  = 10 * time.Second
	StatsTimeout      = 5 * time.Second
	ListTimeout       = 5 * time.Second
	ExportTimeout     = 30 * time.Second
	ImportTimeout     = 30 * time.Second
	MaxQueryRangeDays = 90
)

// WebSocket configuration
const (
	WSReadBufferSize       = 1024
	WSWriteBufferSize      = 1024
	WSBroadcastBuffer      = 256
	WSChannelBuffer        = 10
	WSWriteDeadline        = 10 * time.Second
	WSReadDeadline         = 60 * time.Second
	WSPingInterval         = 30 * time.Second
	StatsBroadcastInterval = 30 * time.Second
)

// Ingest limits
const (
	MaxRecordsPerPartition = 10000
	MaxImportBodyBytes     = 64 << 20
)
