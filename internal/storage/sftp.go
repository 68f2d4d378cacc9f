package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPConfig describes the connection to a self-hosted SFTP-backed store.
type SFTPConfig struct {
	Host      string
	Port      int
	User      string
	Pass      string
	RemoteDir string
}

// SFTPStore implements BlobStore over SFTP. SFTP has no native object
// metadata, so ContentType and Metadata are persisted in a JSON sidecar
// next to each object (<key>.meta).
type SFTPStore struct {
	sshClient *ssh.Client
	client    *sftp.Client
	root      string
}

type sftpSidecar struct {
	ContentType  string            `json:"content_type,omitempty"`
	CacheControl string            `json:"cache_control,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// DialSFTP connects to the configured host and returns a store rooted at
// cfg.RemoteDir.
func DialSFTP(ctx context.Context, cfg SFTPConfig) (*SFTPStore, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Pass == "" {
		return nil, errors.New("sftp: host, user, and password are required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "/"
	}

	sshCfg := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{ssh.Password(cfg.Pass)},
		// TODO: load known_hosts once the storage hosts stop rotating keys.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         20 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	type dialRes struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialRes, 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, sshCfg)
		ch <- dialRes{client: c, err: err}
	}()

	var sshClient *ssh.Client
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sftp: dial canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("sftp: dial %s: %w", addr, r.err)
		}
		sshClient = r.client
	}

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("sftp: new client: %w", err)
	}

	return &SFTPStore{sshClient: sshClient, client: client, root: cfg.RemoteDir}, nil
}

// Close releases the SFTP and SSH connections.
func (s *SFTPStore) Close() error {
	err := s.client.Close()
	if cerr := s.sshClient.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *SFTPStore) remotePath(key string) string {
	return path.Join(s.root, key)
}

func (s *SFTPStore) Put(_ context.Context, key string, body []byte, opts PutOptions) error {
	remote := s.remotePath(key)
	if err := s.client.MkdirAll(path.Dir(remote)); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", path.Dir(remote), err)
	}

	dst, err := s.client.Create(remote)
	if err != nil {
		return fmt.Errorf("sftp: create %s: %w", remote, err)
	}
	if _, err := dst.Write(body); err != nil {
		dst.Close()
		return fmt.Errorf("sftp: write %s: %w", remote, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("sftp: close %s: %w", remote, err)
	}

	return s.writeSidecar(remote, sftpSidecar{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		Metadata:     opts.Metadata,
	})
}

func (s *SFTPStore) Copy(_ context.Context, srcKey, dstKey string, directive MetadataDirective, opts PutOptions) error {
	srcRemote := s.remotePath(srcKey)
	dstRemote := s.remotePath(dstKey)

	src, err := s.client.Open(srcRemote)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, srcKey)
		}
		return fmt.Errorf("sftp: open %s: %w", srcRemote, err)
	}
	defer src.Close()

	body, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("sftp: read %s: %w", srcRemote, err)
	}

	sidecar, err := s.readSidecar(srcRemote)
	if err != nil {
		return err
	}

	if directive == DirectiveReplace {
		sidecar = sftpSidecar{
			ContentType:  opts.ContentType,
			CacheControl: opts.CacheControl,
			Metadata:     opts.Metadata,
		}
	}

	// Copy-in-place only needs the sidecar rewritten.
	if srcRemote != dstRemote {
		if err := s.client.MkdirAll(path.Dir(dstRemote)); err != nil {
			return fmt.Errorf("sftp: mkdir %s: %w", path.Dir(dstRemote), err)
		}
		dst, err := s.client.Create(dstRemote)
		if err != nil {
			return fmt.Errorf("sftp: create %s: %w", dstRemote, err)
		}
		if _, err := dst.Write(body); err != nil {
			dst.Close()
			return fmt.Errorf("sftp: write %s: %w", dstRemote, err)
		}
		if err := dst.Close(); err != nil {
			return fmt.Errorf("sftp: close %s: %w", dstRemote, err)
		}
	}

	return s.writeSidecar(dstRemote, sidecar)
}

func (s *SFTPStore) Delete(_ context.Context, key string) error {
	remote := s.remotePath(key)
	if err := s.client.Remove(remote); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("sftp: remove %s: %w", remote, err)
	}
	if err := s.client.Remove(remote + ".meta"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("sftp: remove sidecar for %s: %w", remote, err)
	}
	return nil
}

func (s *SFTPStore) Head(_ context.Context, key string) (ObjectInfo, error) {
	remote := s.remotePath(key)
	info, err := s.client.Stat(remote)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return ObjectInfo{}, fmt.Errorf("sftp: stat %s: %w", remote, err)
	}

	sidecar, err := s.readSidecar(remote)
	if err != nil {
		return ObjectInfo{}, err
	}

	return ObjectInfo{
		Key:          key,
		Size:         info.Size(),
		ContentType:  sidecar.ContentType,
		LastModified: info.ModTime(),
		Metadata:     sidecar.Metadata,
	}, nil
}

func (s *SFTPStore) ListByPrefix(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var result []ObjectInfo

	walker := s.client.Walk(path.Join(s.root, prefix))
	for walker.Step() {
		if err := walker.Err(); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("sftp: walk %s: %w", prefix, err)
		}
		info := walker.Stat()
		if info == nil || info.IsDir() {
			continue
		}
		remote := walker.Path()
		if path.Ext(remote) == ".meta" {
			continue
		}

		key, err := relativeKey(s.root, remote)
		if err != nil {
			continue
		}
		sidecar, err := s.readSidecar(remote)
		if err != nil {
			return nil, err
		}
		result = append(result, ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			ContentType:  sidecar.ContentType,
			LastModified: info.ModTime(),
			Metadata:     sidecar.Metadata,
		})
	}

	return result, nil
}

func (s *SFTPStore) BucketExists(context.Context) (bool, error) {
	info, err := s.client.Stat(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("sftp: stat root %s: %w", s.root, err)
	}
	return info.IsDir(), nil
}

func (s *SFTPStore) writeSidecar(remote string, sidecar sftpSidecar) error {
	data, err := json.Marshal(sidecar)
	if err != nil {
		return fmt.Errorf("sftp: encode sidecar: %w", err)
	}

	f, err := s.client.Create(remote + ".meta")
	if err != nil {
		return fmt.Errorf("sftp: create sidecar for %s: %w", remote, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("sftp: write sidecar for %s: %w", remote, err)
	}
	return f.Close()
}

func (s *SFTPStore) readSidecar(remote string) (sftpSidecar, error) {
	f, err := s.client.Open(remote + ".meta")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sftpSidecar{}, nil
		}
		return sftpSidecar{}, fmt.Errorf("sftp: open sidecar for %s: %w", remote, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return sftpSidecar{}, fmt.Errorf("sftp: read sidecar for %s: %w", remote, err)
	}

	var sidecar sftpSidecar
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return sftpSidecar{}, fmt.Errorf("sftp: decode sidecar for %s: %w", remote, err)
	}
	return sidecar, nil
}

func relativeKey(root, remote string) (string, error) {
	cleanRoot := path.Clean(root)
	cleanRemote := path.Clean(remote)
	if cleanRoot == "/" || cleanRoot == "." {
		return trimLeadingSlash(cleanRemote), nil
	}
	if len(cleanRemote) <= len(cleanRoot) || cleanRemote[:len(cleanRoot)] != cleanRoot {
		return "", fmt.Errorf("sftp: %s outside root %s", remote, root)
	}
	return trimLeadingSlash(cleanRemote[len(cleanRoot):]), nil
}

func trimLeadingSlash(p string) string {
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	return p
}
