// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SaveAndGet(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "processed_project"))

	doc := &Document{
		Source: "2023-1",
		Paragraphs: []string{
			"ПРИКАЗ",
			"Об итогах конкурса 2023 года «Мегагранты» & <прочее>",
		},
		Tables: []Table{{Rows: [][]string{
			{"№", "Название проекта", "Российская организация"},
			{"1", "Квантовые\nсенсоры", "ООО «Ромашка»"},
			{"", "конец", ""},
		}}},
	}

	ok, err := fs.Exists("2023-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fs.SaveDocument(doc))

	ok, err = fs.Exists("2023-1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := fs.GetDocument("2023-1")
	require.NoError(t, err)

	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("GetDocument() mismatch (-want +got):\n%s", diff)
	}

	r, err := fs.Open("2023-1")
	require.NoError(t, err)

	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Contains(t, string(raw), "<td>Квантовые<br/>сенсоры</td>")

	docs, err := fs.ExistingDocuments()
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-1"}, docs)
}

func TestFileStore_PendingPDFs(t *testing.T) {
	root := t.TempDir()
	pdfDir := filepath.Join(root, "projects")
	require.NoError(t, os.MkdirAll(pdfDir, 0o700))

	for _, name := range []string{"b.pdf", "a.PDF", ".hidden.pdf", "notes.txt", "done.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(pdfDir, name), []byte("%PDF"), 0o600))
	}

	fs := NewFileStore(filepath.Join(root, "processed_project"))
	require.NoError(t, fs.SaveDocument(&Document{Source: "done"}))

	pending, err := fs.PendingPDFs(pdfDir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(pdfDir, "a.PDF"), filepath.Join(pdfDir, "b.pdf")}, pending)
}

func TestFileStore_InvalidName(t *testing.T) {
	fs := NewFileStore(t.TempDir())

	for _, stem := range []string{"", "../x", ".hidden", "a/b"} {
		_, err := fs.Exists(stem)
		assert.Error(t, err, stem)
	}
}

func TestFileStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(dir)

	require.NoError(t, fs.SaveDocument(&Document{Source: "x", Paragraphs: []string{"a"}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), e.Name())
	}

	docs, err := NewFileStore(filepath.Join(dir, "missing")).ExistingDocuments()
	require.NoError(t, err)
	assert.Empty(t, docs)
}
