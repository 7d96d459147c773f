package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/wudi/boletopdf/boleto"
)

const reportSheet = "Boletos"

var reportHeaders = []string{
	"#", "Bank", "Payer", "Payer ID", "Document", "Our Number",
	"Due Date", "Value", "Charged", "Output",
}

// writeReport summarizes a rendered batch, one row per slip.
func writeReport(path string, slips []*boleto.Boleto, outputs []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(reportSheet); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(reportSheet, cell, h); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(reportHeaders), 1)
	if err := f.SetCellStyle(reportSheet, "A1", last, bold); err != nil {
		return err
	}

	for i, b := range slips {
		row := i + 2
		var payer, payerID string
		if p := b.Title.Payer; p != nil {
			payer = p.Name
			if p.TaxID != nil {
				payerID = p.TaxID.Formatted()
			}
		}
		var output string
		if i < len(outputs) {
			output = outputs[i]
		}
		values := []any{
			i + 1,
			b.Bank.Code,
			payer,
			payerID,
			b.Title.DocumentNumber,
			b.Title.OurNumber,
			boleto.FormatDate(b.Title.DueDate),
			amount(b.Title.Value),
			amount(b.Title.ChargedValue()),
			output,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(reportSheet, cell, v); err != nil {
				return fmt.Errorf("row %d: %w", row, err)
			}
		}
	}
	return f.SaveAs(path)
}

// amount keeps absent money cells empty.
func amount(d decimal.NullDecimal) any {
	if !d.Valid {
		return ""
	}
	return d.Decimal.RoundBank(2).InexactFloat64()
}
