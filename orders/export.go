package orders

import (
	"fmt"
	"io"
	"strings"

	"fashion-store/models"

	"github.com/pkg/errors"
	"github.com/tealeg/xlsx"
)

// ExportContentType is the MIME type of ExportXLSX output
const ExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var exportHeaders = []string{
	"Order ID", "Created", "Status", "Customer", "Phone", "City", "Province",
	"Items", "Subtotal", "Shipping", "Total", "Payment Method", "Payment ID",
}

// ExportXLSX writes one sheet with a row per order
func ExportXLSX(w io.Writer, orders []models.Order) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return errors.Wrap(err, "add sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetValue(h)
	}

	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID.Hex())
		row.AddCell().SetValue(o.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(string(o.Status))
		row.AddCell().SetValue(o.Shipping.Name)
		row.AddCell().SetValue(o.Shipping.Phone)
		row.AddCell().SetValue(o.Shipping.City)
		row.AddCell().SetValue(o.Shipping.Province)
		row.AddCell().SetValue(itemSummary(o.Items))
		row.AddCell().SetValue(o.Subtotal)
		row.AddCell().SetValue(o.ShippingCost)
		row.AddCell().SetValue(o.Total)
		row.AddCell().SetValue(string(o.PaymentMethod))
		row.AddCell().SetValue(o.PaymentID)
	}

	return errors.Wrap(file.Write(w), "write xlsx")
}

func itemSummary(items []models.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		name := item.Name
		var opts []string
		for _, o := range []string{item.Color, item.Size} {
			if o != "" {
				opts = append(opts, o)
			}
		}
		if len(opts) > 0 {
			name += " (" + strings.Join(opts, ", ") + ")"
		}
		parts = append(parts, fmt.Sprintf("%s x%d", name, item.Quantity))
	}
	return strings.Join(parts, "; ")
}
