// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package latent

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrChecksumMismatch indicates a corrupted or tampered model file.
var ErrChecksumMismatch = errors.New("model checksum mismatch")

// ModelPath returns the canonical file path for a model version inside dir.
func ModelPath(dir string, version int) string {
	return filepath.Join(dir, fmt.Sprintf("latent_v%d.gob.gz", version))
}

// Save writes the model to path as gzipped gob, plus a sha256 sidecar file
// at path+".sha256". The write goes through a temp file and rename so a
// crash never leaves a truncated model behind.
func Save(model *Model, path string) error {
	var raw bytes.Buffer
	gz := gzip.NewWriter(&raw)
	if err := gob.NewEncoder(gz).Encode(model); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compressing model: %w", err)
	}

	sum := sha256.Sum256(raw.Bytes())

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing model file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalizing model file: %w", err)
	}
	if err := os.WriteFile(path+".sha256", []byte(hex.EncodeToString(sum[:])), 0o600); err != nil {
		return fmt.Errorf("writing checksum file: %w", err)
	}
	return nil
}

// Load reads a model written by Save, verifying the sha256 sidecar when
// present.
func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}

	if sumHex, err := os.ReadFile(path + ".sha256"); err == nil {
		want, err := hex.DecodeString(string(bytes.TrimSpace(sumHex)))
		if err != nil {
			return nil, fmt.Errorf("parsing checksum file: %w", err)
		}
		got := sha256.Sum256(raw)
		if !bytes.Equal(got[:], want) {
			return nil, ErrChecksumMismatch
		}
	}

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decompressing model: %w", err)
	}
	defer gz.Close()

	var model Model
	if err := gob.NewDecoder(gz).Decode(&model); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	if model.Version != ModelVersion {
		return nil, fmt.Errorf("unsupported model version %d", model.Version)
	}
	return &model, nil
}
