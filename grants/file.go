// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// extension of the stored documents.
const documentExt = ".html.gz"

// Combines multiple closers to ensure all resources are released.
type multiReadCloser struct {
	io.ReadCloser
	underlying io.Closer
}

// Implements io.Closer and ensures all resources are properly released.
func (r *multiReadCloser) Close() error {
	return errors.Join(
		r.ReadCloser.Close(),
		r.underlying.Close(),
	)
}

// FileStore keeps converted documents as gzipped HTML, one file per PDF stem.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at root. The directory is created on the
// first write.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) dirMustExist() error {
	if err := os.MkdirAll(s.root, 0o700); err != nil {
		return fmt.Errorf("setting up file store: %w", err)
	}

	return nil
}

func (s *FileStore) pathFor(stem string) (string, error) {
	if stem == "" || stem != filepath.Base(stem) || strings.HasPrefix(stem, ".") {
		return "", fmt.Errorf("invalid document name %q", stem)
	}

	return filepath.Join(s.root, stem+documentExt), nil
}

// Exists reports whether the document converted from stem is stored.
func (s *FileStore) Exists(stem string) (bool, error) {
	path, err := s.pathFor(stem)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return true, nil
}

// ExistingDocuments returns the sorted stems of the stored documents.
func (s *FileStore) ExistingDocuments() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	var ret []string

	for _, e := range entries {
		if name := e.Name(); !e.IsDir() && strings.HasSuffix(name, documentExt) && !strings.HasPrefix(name, ".") {
			ret = append(ret, strings.TrimSuffix(name, documentExt))
		}
	}

	slices.Sort(ret)

	return ret, nil
}

// PendingPDFs returns the sorted paths of the PDFs in dir whose document is
// not stored yet. Hidden files are ignored.
func (s *FileStore) PendingPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing pdfs: %w", err)
	}

	var ret []string

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}

		exists, err := s.Exists(Stem(name))
		if err != nil {
			return nil, err
		}

		if !exists {
			ret = append(ret, filepath.Join(dir, name))
		}
	}

	slices.Sort(ret)

	return ret, nil
}

// SaveDocument stores doc under its Source. The file is written to a
// temporary name and renamed, so a stored document is always complete.
func (s *FileStore) SaveDocument(doc *Document) (err error) {
	path, err := s.pathFor(doc.Source)
	if err != nil {
		return err
	}

	if err := s.dirMustExist(); err != nil {
		return err
	}

	f, err := os.CreateTemp(s.root, "."+doc.Source+"-*")
	if err != nil {
		return fmt.Errorf("creating html file: %w", err)
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(f.Name()))
		}
	}()

	gw, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		return errors.Join(fmt.Errorf("creating gzip writer: %w", err), f.Close())
	}

	if err := WriteHTML(gw, doc); err != nil {
		return errors.Join(err, gw.Close(), f.Close())
	}

	if err := gw.Close(); err != nil {
		return errors.Join(fmt.Errorf("closing gzip writer: %w", err), f.Close())
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}

	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("storing document: %w", err)
	}

	return nil
}

// Open returns the raw HTML of a stored document.
func (s *FileStore) Open(stem string) (io.ReadCloser, error) {
	path, err := s.pathFor(stem)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading html file: %w", err)
	}

	gr, err := gzip.NewReader(f)
	if err != nil {
		err1 := f.Close()

		return nil, errors.Join(fmt.Errorf("creating gzip reader: %w", err), err1)
	}

	return &multiReadCloser{gr, f}, nil
}

// GetDocument loads and parses a stored document.
func (s *FileStore) GetDocument(stem string) (*Document, error) {
	r, err := s.Open(stem)
	if err != nil {
		return nil, err
	}

	doc, err := ReadHTML(r, stem)

	if closeErr := r.Close(); closeErr != nil {
		return nil, errors.Join(err, fmt.Errorf("closing document: %w", closeErr))
	}

	if err != nil {
		return nil, fmt.Errorf("parsing document %s: %w", stem, err)
	}

	return doc, nil
}
