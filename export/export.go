// Package export renders order lines as an .xlsx workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"b2b-storefront/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Pedidos"
	DateLayout  = "02/01/2006 15:04"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Header is the first row of every export.
var Header = []string{"cliente", "articulo", "cantidad", "subtotal", "estado", "fecha"}

// Filename names a download for the given moment, e.g. pedidos_20240304_1000.xlsx.
func Filename(now time.Time) string {
	return "pedidos_" + now.Format("20060102_1504") + ".xlsx"
}

// Row converts one export row into spreadsheet cells. Dates are shown in loc.
func Row(r models.ExportRow, loc *time.Location) []interface{} {
	if loc == nil {
		loc = time.UTC
	}
	fecha := ""
	if !r.CreatedAt.IsZero() {
		fecha = r.CreatedAt.In(loc).Format(DateLayout)
	}
	subtotal, _ := r.Subtotal.Round(2).Float64()
	return []interface{}{r.Customer, r.Article, r.Quantity, subtotal, r.Status.Label(), fecha}
}

// Write builds the workbook for rows and writes it to w.
func Write(w io.Writer, rows []models.ExportRow, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, Row(r, loc)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
