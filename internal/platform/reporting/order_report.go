package reporting

import (
	"bytes"
	"html/template"
	"time"
)

// OrderReport is the data printed for a billed order.
type OrderReport struct {
	LabName      string
	SerialNo     string
	PatientName  string
	Age          string
	Gender       string
	Phone        string
	DoctorName   string
	Category     string
	Subcategory  string
	PaymentMode  string
	TotalAmount  string
	Discount     string
	FinalPayment string
	Remarks      string
	CreatedAt    time.Time
	PrintedAt    time.Time
}

var orderReportTmpl = template.Must(template.New("order").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format("02/01/2006 15:04") },
	"dash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.SerialNo}} - {{.PatientName}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
td { border: 1px solid #999; padding: 4px 8px; }
td.k { width: 30%; font-weight: bold; }
</style>
</head>
<body>
<h1>{{dash .LabName}}</h1>
<h2>Order {{.SerialNo}}</h2>
<table>
<tr><td class="k">Patient</td><td>{{.PatientName}}</td></tr>
<tr><td class="k">Age / Gender</td><td>{{dash .Age}} / {{dash .Gender}}</td></tr>
<tr><td class="k">Phone</td><td>{{dash .Phone}}</td></tr>
<tr><td class="k">Referred by</td><td>{{.DoctorName}}</td></tr>
<tr><td class="k">Test</td><td>{{.Category}}{{if .Subcategory}} / {{.Subcategory}}{{end}}</td></tr>
<tr><td class="k">Payment mode</td><td>{{.PaymentMode}}</td></tr>
<tr><td class="k">Total</td><td>{{.TotalAmount}}</td></tr>
<tr><td class="k">Discount</td><td>{{.Discount}}</td></tr>
<tr><td class="k">Paid</td><td>{{.FinalPayment}}</td></tr>
<tr><td class="k">Remarks</td><td>{{dash .Remarks}}</td></tr>
<tr><td class="k">Ordered</td><td>{{date .CreatedAt}}</td></tr>
</table>
<p>Printed {{date .PrintedAt}}</p>
</body>
</html>
`))

// RenderOrder renders r as a standalone HTML page.
func RenderOrder(r OrderReport) ([]byte, error) {
	if r.PrintedAt.IsZero() {
		r.PrintedAt = time.Now()
	}
	var buf bytes.Buffer
	if err := orderReportTmpl.Execute(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
