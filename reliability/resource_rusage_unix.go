//go:build !windows

package reliability

import (
	"syscall"
	"time"
)

// sampleCPU reports user/system CPU usage as a percentage of one core,
// averaged over the interval since prev was taken. prev is the caller's
// (the owning ResourceMonitor's) last reading rather than package-global
// state, so distinct monitors never interfere with each other's baseline.
// The first call for a given monitor has no prior reading to diff against
// and returns nil for both percentages.
func sampleCPU(prev cpuState) (userPercent, sysPercent *float64, next cpuState) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return nil, nil, prev
	}

	user := time.Duration(ru.Utime.Sec)*time.Second + time.Duration(ru.Utime.Usec)*time.Microsecond
	sys := time.Duration(ru.Stime.Sec)*time.Second + time.Duration(ru.Stime.Usec)*time.Microsecond
	now := time.Now()
	next = cpuState{user: user, sys: sys, wall: now}

	if prev.wall.IsZero() {
		return nil, nil, next
	}

	wallElapsed := now.Sub(prev.wall).Seconds()
	if wallElapsed <= 0 {
		return nil, nil, next
	}

	u := (user - prev.user).Seconds() / wallElapsed * 100
	s := (sys - prev.sys).Seconds() / wallElapsed * 100

	return &u, &s, next
}
