package chart

import (
	"encoding/json"
	"math"
)

// Type 图表类型
type Type string

const (
	TypeBar     Type = "bar"
	TypeLine    Type = "line"
	TypePie     Type = "pie"
	TypeRadar   Type = "radar"
	TypeScatter Type = "scatter"
)

// Spec 图表规格（声明式，生成后不再修改，只由渲染器消费）
type Spec struct {
	Type        Type   `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Scenario    string `json:"scenario,omitempty"` // 产生该图表的规则
	Data        Data   `json:"data"`
}

// Data 绘图数据
type Data struct {
	Labels   []string  `json:"labels,omitempty"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset 一个数据系列
type Dataset struct {
	Label           string  `json:"label"`
	Data            []Value `json:"data"`
	BorderColor     Paint   `json:"borderColor,omitempty"`
	BackgroundColor Paint   `json:"backgroundColor,omitempty"`
	Fill            bool    `json:"fill,omitempty"`
	SpanGaps        bool    `json:"spanGaps,omitempty"`
	Tension         float64 `json:"tension,omitempty"`
}

// Value 一个数据点：数值、缺口（null）或 {x, y} 坐标点
type Value struct {
	X     float64
	Y     float64
	Valid bool
	Point bool
}

// Number 数值点；非有限值视为缺口
func Number(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Gap()
	}
	return Value{Y: v, Valid: true}
}

// Gap 缺失的数据点
func Gap() Value {
	return Value{}
}

// XY 散点图坐标
func XY(x, y float64) Value {
	return Value{X: x, Y: y, Valid: true, Point: true}
}

// MarshalJSON 缺口输出 null，坐标点输出 {x, y}
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case !v.Valid:
		return []byte("null"), nil
	case v.Point:
		return json.Marshal(struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}{v.X, v.Y})
	default:
		return json.Marshal(v.Y)
	}
}

// UnmarshalJSON 与 MarshalJSON 对称
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Gap()
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var p struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*v = XY(p.X, p.Y)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Number(f)
	return nil
}

// Paint 颜色：单个颜色输出字符串，多个颜色输出数组（每个数据点一个颜色）
type Paint []string

// MarshalJSON 单色输出为字符串
func (p Paint) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(p[0])
	}
	return json.Marshal([]string(p))
}

// UnmarshalJSON 接受字符串或字符串数组
func (p *Paint) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Paint{s}
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*p = arr
	return nil
}

// Numbers 返回数据点的数值（缺口为 nil），渲染器使用
func (d Dataset) Numbers() []*float64 {
	out := make([]*float64, len(d.Data))
	for i, v := range d.Data {
		if v.Valid {
			y := v.Y
			out[i] = &y
		}
	}
	return out
}
