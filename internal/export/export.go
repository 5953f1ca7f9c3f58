// Package export renders fulfillment rows as CSV for the courier.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"toko/internal/models"
)

// Header is the published column contract. Append new columns at the end only.
var Header = []string{
	"order_id", "order_date", "customer_name", "customer_email",
	"shipping_name", "shipping_line1", "shipping_line2", "shipping_city",
	"shipping_state", "shipping_postal_code", "shipping_country", "shipping_phone",
	"billing_name", "billing_line1", "billing_line2", "billing_city",
	"billing_state", "billing_postal_code", "billing_country", "billing_phone",
	"sku", "product_name", "quantity", "unit_price",
}

// Address is an address as printed on a label.
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// Row is one order line ready for fulfillment.
type Row struct {
	OrderID       string
	OrderDate     time.Time
	CustomerName  string
	CustomerEmail string
	Shipping      Address
	Billing       Address
	SKU           string
	ProductName   string
	Quantity      int
	UnitPrice     string // effective price paid, 2 decimals
}

func addressFrom(a models.Address) Address {
	return Address{
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

// RowsFor builds one row per item of a fully preloaded order.
func RowsFor(o models.Order) []Row {
	rows := make([]Row, 0, len(o.Items))
	for _, item := range o.Items {
		rows = append(rows, Row{
			OrderID:       o.ID,
			OrderDate:     o.CreatedAt,
			CustomerName:  o.User.Username,
			CustomerEmail: o.User.Email,
			Shipping:      addressFrom(o.ShippingAddress),
			Billing:       addressFrom(o.BillingAddress),
			SKU:           item.Variant.SKU,
			ProductName:   item.Variant.Product.Name,
			Quantity:      item.Quantity,
			UnitPrice:     item.EffectiveUnitPrice().StringFixed(2),
		})
	}
	return rows
}

func (a Address) fields() []string {
	return []string{a.Name, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country, a.Phone}
}

func (r Row) record() []string {
	rec := make([]string, 0, len(Header))
	rec = append(rec, r.OrderID, r.OrderDate.UTC().Format(time.RFC3339), r.CustomerName, r.CustomerEmail)
	rec = append(rec, r.Shipping.fields()...)
	rec = append(rec, r.Billing.fields()...)
	rec = append(rec, r.SKU, r.ProductName, strconv.Itoa(r.Quantity), r.UnitPrice)
	return rec
}

// WriteCSV writes the header followed by one record per row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return fmt.Errorf("write csv row for order %s: %w", r.OrderID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
