package remote

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/sftp"
)

// Upload copies every file in localPaths to remoteDir/<basename> over one
// SFTP session. File modes are copied; with preserveTimes the modification
// time is copied too and used as the access time. The first failing file
// aborts the transfer.
func (c *Client) Upload(ctx context.Context, localPaths []string, remoteDir string, preserveTimes bool) error {
	if c == nil || c.conn == nil {
		return errClientClosed
	}

	client, err := sftp.NewClient(c.conn)
	if err != nil {
		return fmt.Errorf("start sftp: %w", err)
	}

	defer client.Close()

	for _, localPath := range localPaths {
		err = ctx.Err()
		if err != nil {
			return err
		}

		remotePath := path.Join(remoteDir, filepath.Base(localPath))

		err = uploadFile(client, localPath, remotePath, preserveTimes)
		if err != nil {
			return fmt.Errorf("upload %s: %w", filepath.Base(localPath), err)
		}
	}

	return nil
}

func uploadFile(client *sftp.Client, localPath, remotePath string, preserveTimes bool) error {
	source, err := os.Open(localPath) //nolint:gosec // Paths come from discovery.
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}

	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("stat local file: %w", err)
	}

	target, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file: %w", err)
	}

	_, err = target.ReadFrom(source)
	if err != nil {
		_ = target.Close()

		return fmt.Errorf("copy: %w", err)
	}

	err = target.Close()
	if err != nil {
		return fmt.Errorf("close remote file: %w", err)
	}

	err = client.Chmod(remotePath, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("set mode: %w", err)
	}

	if !preserveTimes {
		return nil
	}

	err = client.Chtimes(remotePath, info.ModTime(), info.ModTime())
	if err != nil {
		return fmt.Errorf("set times: %w", err)
	}

	return nil
}
