package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"costura-backend/internal/platform/apierr"
)

const (
	KindProduction = "production"
	KindAttendance = "attendance"

	FormatXLSX = "xlsx"
	FormatCSV  = "csv"

	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// File: 書き出し結果
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type table struct {
	sheet  string
	header []string
	rows   [][]any
}

// Export: 月単位の出来高または勤怠を xlsx / csv にする
func (s *Service) Export(ctx context.Context, q ExportQuery) (File, error) {
	if _, err := time.Parse(monthLayout, q.Month); err != nil {
		return File{}, apierr.ErrInvalid("month must be YYYY-MM")
	}
	if q.Kind == "" {
		q.Kind = KindProduction
	}
	if q.Format == "" {
		q.Format = FormatXLSX
	}

	var (
		t   table
		err error
	)
	switch q.Kind {
	case KindProduction:
		t, err = s.productionTable(ctx, q.Month)
	case KindAttendance:
		t, err = s.attendanceTable(ctx, q.Month)
	default:
		return File{}, apierr.ErrInvalid("kind must be production or attendance")
	}
	if err != nil {
		return File{}, err
	}

	base := fmt.Sprintf("%s_%s", q.Kind, q.Month)
	switch q.Format {
	case FormatXLSX:
		data, err := writeXLSX(t)
		if err != nil {
			s.log.Error("write xlsx failed", zap.String("file", base), zap.Error(err))
			return File{}, apierr.ErrInternal("generate spreadsheet failed")
		}
		return File{Name: base + ".xlsx", ContentType: contentTypeXLSX, Data: data}, nil
	case FormatCSV:
		enc, charset, err := csvEncoding(q.Encoding)
		if err != nil {
			return File{}, err
		}
		data, err := writeCSV(t, enc)
		if err != nil {
			s.log.Error("write csv failed", zap.String("file", base), zap.Error(err))
			return File{}, apierr.ErrInternal("generate csv failed")
		}
		return File{Name: base + ".csv", ContentType: "text/csv; charset=" + charset, Data: data}, nil
	default:
		return File{}, apierr.ErrInvalid("format must be xlsx or csv")
	}
}

func (s *Service) workerNames(ctx context.Context) (map[string]string, error) {
	users, err := s.local.ListUsers(ctx, "", false)
	if err != nil {
		return nil, apierr.ErrInternal("read workers failed")
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

func (s *Service) productionTable(ctx context.Context, month string) (table, error) {
	recs, err := s.local.ProductionByMonth(ctx, month)
	if err != nil {
		return table{}, apierr.ErrInternal("read production failed")
	}
	names, err := s.workerNames(ctx)
	if err != nil {
		return table{}, err
	}
	t := table{
		sheet:  "Produccion",
		header: []string{"Fecha", "Trabajador", "Nombre", "Operación", "Cantidad", "Pago por unidad", "Total"},
	}
	// 古い順に並べ直す
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		t.rows = append(t.rows, []any{
			r.Date.In(s.loc).Format("2006-01-02 15:04"),
			r.WorkerID,
			names[r.WorkerID],
			r.OperationName,
			r.Quantity,
			r.PaymentPerUnit,
			r.TotalPayment,
		})
	}
	return t, nil
}

func (s *Service) attendanceTable(ctx context.Context, month string) (table, error) {
	recs, err := s.local.AttendanceByMonth(ctx, month)
	if err != nil {
		return table{}, apierr.ErrInternal("read attendance failed")
	}
	t := table{
		sheet:  "Asistencia",
		header: []string{"Fecha", "Trabajador", "Nombre", "Entrada", "Salida", "Estado"},
	}
	for i := len(recs) - 1; i >= 0; i-- {
		a := recs[i]
		t.rows = append(t.rows, []any{a.Date, a.WorkerID, a.WorkerName, a.EntryTime, a.ExitTime, a.Status})
	}
	return t, nil
}

func writeXLSX(t table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(t.sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return nil, err
	}

	header := make([]any, len(t.header))
	for i, h := range t.header {
		header[i] = h
	}
	if err := f.SetSheetRow(t.sheet, "A1", &header); err != nil {
		return nil, err
	}
	last, _ := excelize.ColumnNumberToName(len(t.header))
	if err := f.SetCellStyle(t.sheet, "A1", last+"1", headerStyle); err != nil {
		return nil, err
	}

	for i, row := range t.rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = xlsxValue(v)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(t.sheet, cell, &cells); err != nil {
			return nil, err
		}
		for j, v := range row {
			if _, ok := v.(decimal.Decimal); ok {
				c, _ := excelize.CoordinatesToCellName(j+1, i+2)
				if err := f.SetCellStyle(t.sheet, c, c, moneyStyle); err != nil {
					return nil, err
				}
			}
		}
	}
	_ = f.SetColWidth(t.sheet, "A", last, 16)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// xlsxValue: 金額はセル上では数値にする
func xlsxValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return v
}

func csvEncoding(name string) (encoding.Encoding, string, error) {
	switch name {
	case "", "utf-8":
		return nil, "utf-8", nil
	case "windows-1252":
		return charmap.Windows1252, "windows-1252", nil
	case "shift_jis":
		return japanese.ShiftJIS, "shift_jis", nil
	}
	return nil, "", apierr.ErrInvalid("encoding must be utf-8, windows-1252 or shift_jis")
}

// writeCSV: enc が nil なら UTF-8 のまま。表現できない文字は置換文字にする
func writeCSV(t table, enc encoding.Encoding) ([]byte, error) {
	var b bytes.Buffer
	var out io.WriteCloser = nopCloser{&b}
	if enc != nil {
		out = transform.NewWriter(&b, encoding.ReplaceUnsupported(enc.NewEncoder()))
	}
	w := csv.NewWriter(out)

	if err := w.Write(t.header); err != nil {
		return nil, err
	}
	for _, row := range t.rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = csvValue(v)
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	// transform.Writer は Close で残りを書き出す
	if err := out.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func csvValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case decimal.Decimal:
		return formatMoney(x)
	default:
		return fmt.Sprint(x)
	}
}

// formatMoney: 小数 2 桁に揃える。3 桁目以降がある単価はそのまま
func formatMoney(d decimal.Decimal) string {
	if d.Round(2).Equal(d) {
		return d.StringFixed(2)
	}
	return d.String()
}
