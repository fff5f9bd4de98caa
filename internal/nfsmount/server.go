package nfsmount

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"

	"github.com/agentic-research/resmerge/internal/ctxlog"
)

// handleCacheSize bounds the file handles go-nfs keeps per export.
const handleCacheSize = 4096

// Server manages the NFS server lifecycle.
type Server struct {
	listener net.Listener
	port     int
	done     chan error
}

// NewServer starts an NFS server on addr backed by fs. An empty addr
// listens on an ephemeral localhost port.
func NewServer(ctx context.Context, fs billy.Filesystem, addr string) (*Server, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nfs listen: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	handler := nfshelper.NewNullAuthHandler(fs)
	cacheHelper := nfshelper.NewCachingHandler(handler, handleCacheSize)

	s := &Server{listener: listener, port: port, done: make(chan error, 1)}
	go func() {
		err := nfs.Serve(listener, cacheHelper)
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
		s.done <- err
	}()

	ctxlog.FromContext(ctx).Info("nfs export listening", "addr", listener.Addr().String())
	return s, nil
}

// Port returns the TCP port the NFS server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Done yields the serve loop's terminal error once it has stopped.
func (s *Server) Done() <-chan error {
	return s.done
}

// Close stops the NFS server by closing the listener.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Mount calls the system mount command to mount the export read-only at
// mountpoint. Requires sudo.
func Mount(port int, mountpoint string) error {
	var opts string
	switch runtime.GOOS {
	case "darwin":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,locallocks,noresvport,rdonly", port, port)
	case "linux":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,local_lock=all,nolock,ro", port, port)
	default:
		return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}

	cmd := exec.Command("sudo", "mount", "-t", "nfs", "-o", opts, "localhost:/", mountpoint)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount failed: %w\n%s", err, string(output))
	}
	return nil
}

// Unmount calls the system unmount command on the mountpoint.
func Unmount(mountpoint string) error {
	if runtime.GOOS == "darwin" {
		// diskutil needs no sudo for user NFS mounts
		if err := exec.Command("diskutil", "unmount", mountpoint).Run(); err == nil {
			return nil
		}
	}
	output, err := exec.Command("sudo", "umount", mountpoint).CombinedOutput()
	if err != nil {
		return fmt.Errorf("unmount failed: %w\n%s", err, string(output))
	}
	return nil
}
