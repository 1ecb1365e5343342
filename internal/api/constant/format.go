package constant

// Snapshot formats accepted by the ?format= query parameter.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	DefaultFormat = FormatJSON
)

// Download names and content types of the exported files.
const (
	CSVFileName  = "live_prices.csv"
	XLSXFileName = "live_prices.xlsx"

	CSVContentType  = "text/csv"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)
