//go:build linux

package internal

import (
	"errors"
	"fmt"
	"net/netip"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Tun opens a layer-3 TUN device (no Ethernet header, no TUN packet-info
// prefix) via /dev/net/tun and the TUNSETIFF ioctl. Recv/Send read and write
// whole IPv4 frames.
type Tun struct {
	fd   int
	name string
}

// NewTun creates or attaches to the named TUN interface, optionally assigning
// it ip (a CIDR) and bringing it up via the "ip" command-line tool.
func NewTun(name string, ip netip.Prefix) (*Tun, error) {
	if len(name) >= unix.IFNAMSIZ {
		return nil, errors.New("tun: interface name too long")
	}
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("tun: open /dev/net/tun: %w", err)
	}
	req, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tun: build ifreq: %w", err)
	}
	req.SetUint16(unix.IFF_TUN | unix.IFF_NO_PI)
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, req); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tun: TUNSETIFF: %w", err)
	}
	actualName := req.Name()

	if ip.IsValid() {
		if err := exec.Command("ip", "addr", "add", ip.String(), "dev", actualName).Run(); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("tun: assign address %s to %s: %w", ip, actualName, err)
		}
		if err := exec.Command("ip", "link", "set", "dev", actualName, "up").Run(); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("tun: bring up %s: %w", actualName, err)
		}
	}
	return &Tun{fd: fd, name: actualName}, nil
}

// Name returns the kernel-assigned interface name, which may differ from
// the requested one if the kernel picked a free index.
func (t *Tun) Name() string { return t.name }

// Recv blocks until a complete IPv4 frame is available and copies it into buf,
// returning the number of bytes written.
func (t *Tun) Recv(buf []byte) (int, error) {
	return unix.Read(t.fd, buf)
}

// Send writes one complete IPv4 frame to the interface.
func (t *Tun) Send(buf []byte) (int, error) {
	return unix.Write(t.fd, buf)
}

// Close releases the underlying file descriptor.
func (t *Tun) Close() error {
	return unix.Close(t.fd)
}

// MTU queries the interface's configured MTU over a throwaway datagram socket.
func (t *Tun) MTU() (int, error) {
	sock, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, fmt.Errorf("tun: open query socket: %w", err)
	}
	defer unix.Close(sock)
	req, err := unix.NewIfreq(t.name)
	if err != nil {
		return 0, err
	}
	if err := unix.IoctlIfreq(sock, unix.SIOCGIFMTU, req); err != nil {
		return 0, fmt.Errorf("tun: SIOCGIFMTU: %w", err)
	}
	return int(req.Uint32()), nil
}
