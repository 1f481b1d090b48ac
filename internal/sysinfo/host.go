// Package sysinfo reports facts about the host the assistant drives.
package sysinfo

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

type HostInfo struct {
	OS              string `json:"os"`
	Arch            string `json:"arch"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	Hostname        string `json:"hostname"`
	UptimeSeconds   uint64 `json:"uptime_seconds"`
}

type Reader func(ctx context.Context) (*host.InfoStat, error)

type Host struct {
	read Reader
}

func NewHost() *Host {
	return &Host{read: host.InfoWithContext}
}

func NewHostWithReader(read Reader) *Host {
	return &Host{read: read}
}

func (h *Host) Info(ctx context.Context) (HostInfo, error) {
	stat, err := h.read(ctx)
	if err != nil {
		return HostInfo{OS: runtime.GOOS, Arch: runtime.GOARCH}, err
	}
	out := HostInfo{
		OS:              stat.OS,
		Arch:            runtime.GOARCH,
		Platform:        stat.Platform,
		PlatformVersion: stat.PlatformVersion,
		KernelVersion:   stat.KernelVersion,
		Hostname:        stat.Hostname,
		UptimeSeconds:   stat.Uptime,
	}
	if out.OS == "" {
		out.OS = runtime.GOOS
	}
	return out, nil
}
