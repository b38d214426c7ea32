// Package export 路径结果的文件导出：供外部报表系统消费的 CSV 与 Excel 报告。
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
)

// CSVHeader 导出文件的列
var CSVHeader = []string{"path_id", "irr", "npv"}

// UndefinedIRR IRR 无解时写入的哨兵
const UndefinedIRR = "NaN"

const irrPrecision = 10

// ErrMalformedCSV 文件格式不符合导出约定
var ErrMalformedCSV = errors.New("malformed path results csv")

// Exporter 路径结果导出器
type Exporter struct {
	// NPV 保留的小数位
	NPVPlaces int32
}

// NewExporter 创建导出器，NPV 保留两位小数
func NewExporter() *Exporter {
	return &Exporter{NPVPlaces: 2}
}

// Row 一行导出记录
type Row struct {
	PathID     int
	IRR        float64
	IRRDefined bool
	NPV        decimal.Decimal
}

// WriteCSV 按路径序号写出 path_id,irr,npv
func (e *Exporter) WriteCSV(w io.Writer, results []domain.PathResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range results {
		if err := cw.Write(e.record(&results[i])); err != nil {
			return fmt.Errorf("failed to write path %d: %w", results[i].PathID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (e *Exporter) record(r *domain.PathResult) []string {
	irr := UndefinedIRR
	if r.IRRDefined {
		irr = strconv.FormatFloat(r.IRR, 'f', irrPrecision, 64)
	}
	return []string{
		strconv.Itoa(r.PathID),
		irr,
		decimal.NewFromFloat(r.NPV).StringFixed(e.NPVPlaces),
	}
}

// ParseCSV 读取 WriteCSV 写出的文件
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, col := range CSVHeader {
		if header[i] != col {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrMalformedCSV, i, header[i], col)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}
		rows = append(rows, row)
	}
}

func parseRow(rec []string) (Row, error) {
	id, err := strconv.Atoi(rec[0])
	if err != nil || id < 0 {
		return Row{}, fmt.Errorf("invalid path_id %q", rec[0])
	}
	row := Row{PathID: id, IRR: domain.IRRUndefined}
	if rec[1] != UndefinedIRR {
		irr, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return Row{}, fmt.Errorf("invalid irr %q", rec[1])
		}
		row.IRR, row.IRRDefined = irr, true
	}
	row.NPV, err = decimal.NewFromString(rec[2])
	if err != nil {
		return Row{}, fmt.Errorf("invalid npv %q", rec[2])
	}
	return row, nil
}
