//go:build !windows

package main

import "pkt.systems/pslog"

func enableDPIAwareness(pslog.Logger) {}

func logMonitorConfiguration(pslog.Logger) {}
