package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Record 查询结果中的一行：字段名 -> 标量值
type Record map[string]any

// ResultSet 结果集
// Columns 为字段顺序（第一条记录的键顺序），所有记录共享同一组字段。
type ResultSet struct {
	Columns []string
	Rows    []Record
}

// New 根据记录创建结果集，字段顺序取第一条记录的键（按字典序，因为 map 无序）
func New(rows []Record) ResultSet {
	rs := ResultSet{Rows: rows}
	if len(rows) > 0 {
		for k := range rows[0] {
			rs.Columns = append(rs.Columns, k)
		}
		sort.Strings(rs.Columns)
	}
	return rs
}

// Len 行数
func (rs ResultSet) Len() int {
	return len(rs.Rows)
}

// Empty 是否为空结果
func (rs ResultSet) Empty() bool {
	return len(rs.Rows) == 0
}

// Schema 返回字段顺序
func (rs ResultSet) Schema() []string {
	if len(rs.Columns) > 0 || len(rs.Rows) == 0 {
		return rs.Columns
	}
	return New(rs.Rows).Columns
}

// Values 按行顺序返回某字段的所有值（缺失为 nil）
func (rs ResultSet) Values(field string) []any {
	values := make([]any, len(rs.Rows))
	for i, row := range rs.Rows {
		values[i] = row[field]
	}
	return values
}

// Distinct 按首次出现顺序返回字段的不同取值（以字符串形式比较），跳过 null
func (rs ResultSet) Distinct(field string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range rs.Rows {
		v, ok := row[field]
		if !ok || v == nil {
			continue
		}
		key := Format(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// Number 尝试把值解析为有限数值
// 支持 Go 数值类型、json.Number 和数字字符串；nil、布尔、对象、NaN/Inf 均视为非数值。
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Format 把值转换为表格/标签中显示的字符串
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return FormatNumber(val)
	case float32:
		return FormatNumber(float64(val))
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// FormatNumber 数值的最短表示（2020 而不是 2020.000000）
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// MarshalJSON 按 Columns 顺序输出每条记录，保证前端看到的字段顺序与查询一致
func (rs ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	columns := rs.Schema()
	for i, row := range rs.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		written := 0
		for _, col := range columns {
			val, ok := row[col]
			if !ok {
				continue
			}
			if err := writeField(&buf, col, val, written); err != nil {
				return nil, err
			}
			written++
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key string, val any, index int) error {
	if index > 0 {
		buf.WriteByte(',')
	}
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode field %s: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// UnmarshalJSON 解析对象数组，并保留第一个对象的键顺序
func (rs *ResultSet) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*rs = decoded
	return nil
}

// Decode 解析 JSON 对象数组为结果集；null 视为空结果
func Decode(data []byte) (ResultSet, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return ResultSet{}, fmt.Errorf("decode results: %w", err)
	}
	if tok == nil {
		return ResultSet{}, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return ResultSet{}, fmt.Errorf("decode results: expected array, got %v", tok)
	}

	var rs ResultSet
	for dec.More() {
		row, keys, err := decodeObject(dec)
		if err != nil {
			return ResultSet{}, fmt.Errorf("decode results row %d: %w", len(rs.Rows), err)
		}
		if len(rs.Rows) == 0 {
			rs.Columns = keys
		}
		rs.Rows = append(rs.Rows, row)
	}
	if _, err := dec.Token(); err != nil {
		return ResultSet{}, fmt.Errorf("decode results: %w", err)
	}
	return rs, nil
}

func decodeObject(dec *json.Decoder) (Record, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}

	row := make(Record)
	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected key %v", keyTok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, nil, err
		}
		if _, dup := row[key]; !dup {
			keys = append(keys, key)
		}
		row[key] = val
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return row, keys, nil
}
