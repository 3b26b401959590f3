//go:build windows

package main

import (
	"syscall"

	"pkt.systems/pslog"
)

// enableDPIAwareness makes the process per-monitor DPI aware so hook
// coordinates are physical pixels.
func enableDPIAwareness(logger pslog.Logger) {
	shcore := syscall.NewLazyDLL("Shcore.dll")
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	const processPerMonitorDPIAware = 2
	if err := setProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			logger.Debug("per-monitor DPI awareness set")
		} else {
			logger.Warn("per-monitor DPI awareness failed", "code", int(ret))
		}
		return
	}

	user32 := syscall.NewLazyDLL("user32.dll")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		logger.Warn("no DPI awareness API available")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret != 0 {
		logger.Debug("system DPI awareness set")
	} else {
		logger.Warn("system DPI awareness failed")
	}
}

func logMonitorConfiguration(logger pslog.Logger) {
	user32 := syscall.NewLazyDLL("user32.dll")
	getSystemMetrics := user32.NewProc("GetSystemMetrics")
	metric := func(index int) int {
		ret, _, _ := getSystemMetrics.Call(uintptr(index))
		return int(int32(ret))
	}
	logger.Debug("monitors",
		"count", metric(80), // SM_CMONITORS
		"virtual_x", metric(76),
		"virtual_y", metric(77),
		"virtual_w", metric(78),
		"virtual_h", metric(79),
		"primary_w", metric(0),
		"primary_h", metric(1),
	)
}
