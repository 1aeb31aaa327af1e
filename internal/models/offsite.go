package models

import "time"

// OffsiteConfig holds the optional SSH mirror that receives a copy of every artifact.
type OffsiteConfig struct {
	Host           string
	Port           int
	Username       string
	KeyPath        string
	PrivateKey     []byte // takes precedence over KeyPath when set
	KnownHostsPath string // host key verification is skipped when empty
	RemoteDir      string
	Timeout        time.Duration
	WOL            *WOLConfig // nil if the mirror host is always on
}

// WOLConfig holds Wake-on-LAN settings for a mirror host that sleeps between backups.
type WOLConfig struct {
	MACAddress   string
	BroadcastIP  string
	Timeout      time.Duration // max time to wait for the SSH port
	PollInterval time.Duration
}

// ReplicationResult holds the result of mirroring one artifact.
type ReplicationResult struct {
	Woken      bool
	RemotePath string
	BytesSent  int64
	Duration   time.Duration
	Error      error
}
