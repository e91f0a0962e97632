// Package sysinfo samples the hardware readings reported with each
// login session.
package sysinfo

import (
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type PCInfo struct {
	CPUUsage float64
	RAMUsage float64
	CPUTemp  float64
}

// Collect samples CPU, RAM and CPU temperature. A machine without a
// readable temperature sensor reports 0, not an error.
func Collect() (PCInfo, error) {
	var info PCInfo

	percents, err := cpu.Percent(time.Second, false)
	if err != nil {
		return info, err
	}
	if len(percents) > 0 {
		info.CPUUsage = percents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return info, err
	}
	info.RAMUsage = vm.UsedPercent

	if temps, err := host.SensorsTemperatures(); err == nil {
		for _, t := range temps {
			key := strings.ToLower(t.SensorKey)
			if strings.Contains(key, "cpu") || strings.Contains(key, "coretemp") || strings.Contains(key, "k10temp") {
				info.CPUTemp = t.Temperature
				break
			}
		}
	}

	return info, nil
}
