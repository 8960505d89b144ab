// Package sysinfo collects the system-information block embedded in report
// bodies: network identity, CPU temperature, memory/disk pressure, uptime.
// Every probe degrades to "unknown" instead of failing; the block is opaque
// text to the rest of the agent. Linux only (the agent targets Raspberry Pi).
package sysinfo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const unknown = "unknown"

// Collector gathers one formatted telemetry block. All probe targets are
// configurable so tests never touch real hardware or the network.
type Collector struct {
	PublicIPURL     string
	HTTPClient      *http.Client
	ThermalFile     string
	VcgencmdCommand string
	DiskPath        string
}

// New returns a Collector with the Raspberry Pi defaults.
func New() *Collector {
	return &Collector{
		PublicIPURL:     "https://api.ipify.org",
		HTTPClient:      &http.Client{Timeout: 10 * time.Second},
		ThermalFile:     "/sys/class/thermal/thermal_zone0/temp",
		VcgencmdCommand: "vcgencmd",
		DiskPath:        "/",
	}
}

// Collect returns the formatted block. It never fails; individual probes
// report "unknown" instead.
func (c *Collector) Collect(ctx context.Context) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Hostname:     %s\n", c.hostname())
	fmt.Fprintf(&sb, "Public IP:    %s\n", c.publicIP(ctx))
	fmt.Fprintf(&sb, "Private IP:   %s\n", c.privateIP())
	fmt.Fprintf(&sb, "CPU Temp:     %s\n", c.cpuTemperature(ctx))

	load, memory, uptime := c.systemStats()
	fmt.Fprintf(&sb, "CPU Load:     %s\n", load)
	fmt.Fprintf(&sb, "Memory Usage: %s\n", memory)
	fmt.Fprintf(&sb, "Disk Usage:   %s\n", c.diskUsage())
	fmt.Fprintf(&sb, "Uptime:       %s\n", uptime)

	if ifaces := c.interfaces(); len(ifaces) > 0 {
		sb.WriteString("Interfaces:\n")
		for _, line := range ifaces {
			fmt.Fprintf(&sb, "  %s\n", line)
		}
	}

	return sb.String()
}

func (c *Collector) hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return unknown
	}
	return name
}

func (c *Collector) publicIP(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PublicIPURL, nil)
	if err != nil {
		return unknown
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return unknown
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unknown
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return unknown
	}
	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return unknown
	}
	return ip
}

// privateIP finds the outbound interface address without sending anything:
// a UDP "connection" only resolves the local endpoint.
func (c *Collector) privateIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return unknown
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return unknown
	}
	return addr.IP.String()
}

func (c *Collector) cpuTemperature(ctx context.Context) string {
	if data, err := os.ReadFile(c.ThermalFile); err == nil {
		if milli, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
			return fmt.Sprintf("%.1fC", float64(milli)/1000.0)
		}
	}

	// Fallback: vcgencmd measure_temp prints "temp=48.2'C".
	out, err := exec.CommandContext(ctx, c.VcgencmdCommand, "measure_temp").Output()
	if err != nil {
		return unknown
	}
	s := strings.TrimSpace(string(bytes.TrimPrefix(bytes.TrimSpace(out), []byte("temp="))))
	if s == "" {
		return unknown
	}
	return s
}

func (c *Collector) systemStats() (load, memory, uptime string) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return unknown, unknown, unknown
	}

	// Loads are fixed-point with a 16-bit fractional part.
	const loadScale = 1 << 16
	load = fmt.Sprintf("%.2f %.2f %.2f",
		float64(si.Loads[0])/loadScale,
		float64(si.Loads[1])/loadScale,
		float64(si.Loads[2])/loadScale)

	total := uint64(si.Totalram) * uint64(si.Unit)
	free := uint64(si.Freeram) * uint64(si.Unit)
	if total > 0 {
		memory = fmt.Sprintf("%.1f%%", float64(total-free)/float64(total)*100)
	} else {
		memory = unknown
	}

	uptime = formatUptime(time.Duration(si.Uptime) * time.Second)
	return load, memory, uptime
}

func (c *Collector) diskUsage() string {
	var st unix.Statfs_t
	if err := unix.Statfs(c.DiskPath, &st); err != nil {
		return unknown
	}
	total := st.Blocks * uint64(st.Bsize)
	if total == 0 {
		return unknown
	}
	avail := st.Bavail * uint64(st.Bsize)
	return fmt.Sprintf("%.1f%%", float64(total-avail)/float64(total)*100)
}

func (c *Collector) interfaces() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var lines []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %s", iface.Name, ipNet.IP))
		}
	}
	return lines
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
