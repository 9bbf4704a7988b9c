package gapline

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostInfos describes the series recorded by ProbeHost.
var HostInfos = []Info{
	{Key: "cpu", FullName: "CPU usage", Unit: "%", Order: 1, Color: "#EAB839"},
	{Key: "mem", FullName: "Memory usage", Unit: "%", Order: 2, Color: "#FF9830"},
	{Key: "swap", FullName: "Swap usage", Unit: "%", Order: 3, Color: "#5794F2"},
	{Key: "load1", FullName: "Load average (1 minute)", Unit: "", Order: 4, Color: "#459AEA"},
}

// cpuSampleTime is how long the CPU is watched to calculate its usage.
const cpuSampleTime = 250 * time.Millisecond

// ProbeHost takes a single measurement of the host. One series with one sample
// is returned for each entry in HostInfos.
func ProbeHost() ([]Series, error) {
	var err error
	var values [4]float64

	probes := []struct {
		key string
		fn  func()
	}{
		{"cpu", func() { values[0], err = cpuPercent() }},
		{"mem", func() { values[1], err = memPercent() }},
		{"swap", func() { values[2], err = swapPercent() }},
		{"load1", func() { values[3], err = load1() }},
	}

	for _, probe := range probes {
		probe.fn()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get %s", probe.key)
		}
	}

	now := time.Now()
	series := make([]Series, len(HostInfos))

	for i, info := range HostInfos {
		series[i] = Series{
			Info:   info,
			Values: []Sample{{X: now, Y: values[i]}},
		}
	}

	return series, nil
}

// The functions below dereference the return values.

func cpuPercent() (float64, error) {
	p, err := cpu.Percent(cpuSampleTime, false)
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, errors.New("no cpu times")
	}
	return p[0], nil
}

func memPercent() (float64, error) {
	m, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return m.UsedPercent, nil
}

func swapPercent() (float64, error) {
	m, err := mem.SwapMemory()
	if err != nil {
		return 0, err
	}
	return m.UsedPercent, nil
}

func load1() (float64, error) {
	l, err := load.Avg()
	if err != nil {
		return 0, err
	}
	return l.Load1, nil
}
