package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/winfsp/cgofuse/fuse"

	mergedfs "github.com/agentic-research/resmerge/internal/fs"
	"github.com/agentic-research/resmerge/internal/vfs"
)

func init() {
	rootCmd.AddCommand(mountCmd)
}

var mountCmd = &cobra.Command{
	Use:   "mount <mountpoint>",
	Short: "Mount the merged tree read-only through FUSE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mountPoint := args[0]

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		// Create the FS over the merged view
		mfs := mergedfs.NewMergedFS(s.ctx, vfs.New(s.host))
		host := fuse.NewFileSystemHost(mfs)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)
		go func() {
			<-sig
			host.Unmount()
		}()

		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Mounting resmerge at %s (using cgofuse)...\n", mountPoint)

		// Use -o ro (Read Only)
		// Use -o uid=N,gid=N to ensure we own the mount (critical for fuse-t/NFS)
		opts := []string{
			"-o", "ro",
			"-o", fmt.Sprintf("uid=%d", os.Getuid()),
			"-o", fmt.Sprintf("gid=%d", os.Getgid()),
		}

		// Mount blocks until unmounted.
		if !host.Mount(mountPoint, opts) {
			return fmt.Errorf("mount failed")
		}
		return nil
	},
}
