// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportXLSX(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, ExportXLSX(&buf, sampleRecords()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)

	defer f.Close()

	rows, err := f.GetRows(ExportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, DatasetColumns, rows[0])
	assert.Equal(t, []string{"П1", "Г", "2023", "ООО «Ромашка»", "Ромашка", "55.7558", "37.6173"}, rows[1])
	// absent values leave the cells empty
	assert.Equal(t, []string{"П3", "Г", "", "Завод", "Завод"}, rows[3])
}
