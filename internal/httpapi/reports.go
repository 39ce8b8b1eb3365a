package httpapi

import (
	"bytes"
	"encoding/csv"
	"html/template"
	"io"
	"strconv"

	"puntoventa/internal/domain"
)

func writeDailyStatsCSV(w io.Writer, stats domain.DailyStats) error {
	out := csv.NewWriter(w)
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "date", stats.Date},
		{"summary", "total_sales", strconv.FormatInt(stats.TotalSalesToday, 10)},
		{"summary", "total_revenue", stats.TotalRevenueToday.StringFixed(2)},
		{"summary", "total_tax", stats.TotalTaxToday.StringFixed(2)},
		{"summary", "average_ticket", stats.AverageTicket.StringFixed(2)},
		{"summary", "cancelled", strconv.FormatInt(stats.CancelledToday, 10)},
	}
	for _, payment := range stats.ByPayment {
		rows = append(rows,
			[]string{"payment", payment.PaymentMethod + "_sales", strconv.FormatInt(payment.Sales, 10)},
			[]string{"payment", payment.PaymentMethod + "_total", payment.Total.StringFixed(2)},
		)
	}
	if err := out.WriteAll(rows); err != nil {
		return err
	}
	return out.Error()
}

var dailyStatsHTMLTmpl = template.Must(template.New("daily-stats").Parse(`<!doctype html>
<html lang="es">
<head>
  <meta charset="utf-8" />
  <title>Corte del día {{.Date}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
  </style>
</head>
<body>
  <h2>Corte del día {{.Date}}</h2>
  <p>Ventas: {{.TotalSalesToday}} | Canceladas: {{.CancelledToday}}</p>
  <p>Ingresos: ${{.TotalRevenueToday.StringFixed 2}} | IVA: ${{.TotalTaxToday.StringFixed 2}} | Ticket promedio: ${{.AverageTicket.StringFixed 2}}</p>

  <h3>Por forma de pago</h3>
  <table>
    <thead><tr><th>Forma de pago</th><th>Ventas</th><th>Total</th></tr></thead>
    <tbody>{{range .ByPayment}}<tr><td>{{.PaymentMethod}}</td><td class="num">{{.Sales}}</td><td class="num">${{.Total.StringFixed 2}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

func dailyStatsToPrintableHTML(stats domain.DailyStats) string {
	var buf bytes.Buffer
	if err := dailyStatsHTMLTmpl.Execute(&buf, stats); err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}
