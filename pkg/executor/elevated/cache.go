package elevated

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chainburn/chainburn/pkg/rpc"
)

// CacheStore places payloads into, and verifies them within, the
// per-machine package cache the elevated companion alone has write access
// to. The unelevated engine never touches cache files directly; every
// write passes through here.
type CacheStore interface {
	// Copy copies srcPath into the cache under cacheID/payloadID and
	// returns the resulting path.
	Copy(srcPath, cacheID, payloadID string) (string, error)
	// Verify hashes the cached payload and reports whether it matches
	// expectedHash (hex-encoded SHA-256, per Payload.Hash).
	Verify(cacheID, payloadID, expectedHash string) (bool, error)
	// Remove deletes an entire cache entry's directory tree.
	Remove(cacheID string) error
}

// FileCacheStore is the CacheStore used outside tests: a plain directory
// tree rooted at Root, one subdirectory per cache ID. Copy overwrites an
// existing cached file in place; no backup of it is kept.
type FileCacheStore struct {
	Root string
}

func (f *FileCacheStore) entryDir(cacheID string) string {
	return filepath.Join(f.Root, cacheID)
}

// Copy implements CacheStore.
func (f *FileCacheStore) Copy(srcPath, cacheID, payloadID string) (string, error) {
	dir := f.entryDir(cacheID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cache: create entry dir: %w", err)
	}
	dest := filepath.Join(dir, payloadID)

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("cache: open source: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("cache: stat source: %w", err)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return "", fmt.Errorf("cache: create dest: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("cache: copy: %w", err)
	}
	return dest, nil
}

// Verify implements CacheStore.
func (f *FileCacheStore) Verify(cacheID, payloadID, expectedHash string) (bool, error) {
	path := filepath.Join(f.entryDir(cacheID), payloadID)
	file, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("cache: open for verify: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return false, fmt.Errorf("cache: hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)) == expectedHash, nil
}

// Remove implements CacheStore.
func (f *FileCacheStore) Remove(cacheID string) error {
	return os.RemoveAll(f.entryDir(cacheID))
}

// handleCacheCopy places a downloaded/attached payload into the cache.
//
// Wire params: srcPath, cacheID, payloadID strings.
// Wire result: destPath string.
func (s *Server) handleCacheCopy(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	srcPath, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	cacheID, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	payloadID, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}

	dest, copyErr := s.cache.Copy(srcPath, cacheID, payloadID)
	if copyErr != nil {
		s.logger.Error().Err(copyErr).Str("cacheID", cacheID).Msg("cache copy failed")
		return rpc.EFail, nil
	}

	w := rpc.NewBufferWriter()
	w.WriteString(dest)
	return rpc.SOK, w.Bytes()
}

// handleCacheVerify hashes a cached payload and compares it against the
// expected hash from the package manifest (§ package model Payload.Hash).
//
// Wire params: cacheID, payloadID, expectedHash strings.
// Wire result: matched bool (u32).
func (s *Server) handleCacheVerify(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	cacheID, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	payloadID, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	expectedHash, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}

	matched, verifyErr := s.cache.Verify(cacheID, payloadID, expectedHash)
	if verifyErr != nil {
		return rpc.EFail, nil
	}

	w := rpc.NewBufferWriter()
	w.WriteBool(matched)
	return rpc.SOK, w.Bytes()
}

// handleCleanup removes a bundle's cache entries once the plan has
// finished (or rolled back) and permanence rules permit eviction.
//
// Wire params: cacheID string.
func (s *Server) handleCleanup(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	cacheID, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	if err := s.cache.Remove(cacheID); err != nil {
		return rpc.EFail, nil
	}
	return rpc.SOK, nil
}
