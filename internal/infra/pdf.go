package infra

// pdf.go: packing slip generation using go-pdf/fpdf.
// One A5 page per order: header, order reference, item table with
// quantities to pick, and totals. Saved to storagePath/packing_<order>.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"storefront/internal/model"

	"github.com/go-pdf/fpdf"
)

// GeneratePackingSlipPDF writes the packing slip for order and returns the
// path of the generated file. storagePath is created if needed.
func GeneratePackingSlipPDF(order *model.Order, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	filePath := filepath.Join(storagePath, fmt.Sprintf("packing_%s.pdf", order.ID))

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 20

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, "Remito de preparacion", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Pedido "+order.ID.String(), "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 5, order.CreatedAt.Format("02/01/2006  15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// ── Items ────────────────────────────────────────────────────────────────
	colName := contentW * 0.50
	colQty := contentW * 0.15
	colPrice := contentW * 0.35

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(colName, 6, "Producto", "B", 0, "L", false, 0, "")
	pdf.CellFormat(colQty, 6, "Cant", "B", 0, "C", false, 0, "")
	pdf.CellFormat(colPrice, 6, "Importe", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, it := range order.Items {
		name := it.ProductID.String()[:8]
		if it.Product != nil {
			name = it.Product.SKU + " " + it.Product.Name
		}
		if len(name) > 40 {
			name = name[:39] + "~"
		}
		pdf.CellFormat(colName, 6, name, "", 0, "L", false, 0, "")
		pdf.CellFormat(colQty, 6, fmt.Sprintf("x%d", it.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(colPrice, 6, "$"+it.LineTotal.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(10, pdf.GetY(), pageW-10, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(colName+colQty, 5, "Subtotal:", "", 0, "L", false, 0, "")
	pdf.CellFormat(colPrice, 5, "$"+order.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.CellFormat(colName+colQty, 5, "Envio:", "", 0, "L", false, 0, "")
	pdf.CellFormat(colPrice, 5, "$"+order.ShippingFee.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(colName+colQty, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(colPrice, 6, "$"+order.Total.StringFixed(2), "", 1, "R", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
