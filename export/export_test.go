package export

import (
	"bytes"
	"testing"
	"time"

	"b2b-storefront/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestRow_FormatsCells(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)

	r := models.ExportRow{
		Customer:  "almacen-sur",
		Article:   "A-1",
		Quantity:  3,
		Subtotal:  decimal.RequireFromString("2640.004"),
		Status:    models.StatusInProcess,
		CreatedAt: time.Date(2024, 3, 4, 13, 30, 0, 0, time.UTC),
	}

	cells := Row(r, loc)
	assert.Equal(t, []interface{}{"almacen-sur", "A-1", 3, 2640.0, "En proceso", "04/03/2024 10:30"}, cells)
}

func TestRow_UnknownStatusAndZeroDate(t *testing.T) {
	cells := Row(models.ExportRow{Status: "archivado"}, nil)
	assert.Equal(t, "archivado", cells[4])
	assert.Equal(t, "", cells[5])
}

func TestWrite_ProducesReadableWorkbook(t *testing.T) {
	rows := []models.ExportRow{
		{Customer: "c1", Article: "A-1", Quantity: 10, Subtotal: decimal.NewFromInt(8800), Status: models.StatusPending, CreatedAt: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)},
		{Customer: "c1", Article: "A-2", Quantity: 1, Subtotal: decimal.NewFromInt(15000), Status: models.StatusPending, CreatedAt: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows, time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Header, got[0])
	assert.Equal(t, []string{"c1", "A-1", "10", "8800", "Pendiente", "04/03/2024 10:00"}, got[1])
	assert.Equal(t, "A-2", got[2][1])
}

func TestWrite_EmptyHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{Header}, got)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "pedidos_20240304_1005.xlsx", Filename(time.Date(2024, 3, 4, 10, 5, 0, 0, time.UTC)))
}
