package model

import "time"

// PoolWindowMetrics stores aggregated trade metrics for a pool window.
type PoolWindowMetrics struct {
	Pool           string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	DepositCount   uint64
	WithdrawCount  uint64
	VolumeA        string
	VolumeB        string
	FeeA           string
	FeeB           string
	CloseLpSupply  string
}
