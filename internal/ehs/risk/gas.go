package risk

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// 气体监测阈值
const (
	O2Min  = 19.5 // %
	O2Max  = 23.5 // %
	CO2Max = 0.5  // %
	COMax  = 50   // ppm
	H2SMax = 10   // ppm
	LELMax = 10   // %LEL
)

// GasReading 一次气体读数
type GasReading struct {
	O2  float64
	CO2 float64
	CO  float64
	H2S float64
	LEL float64
}

// ParseGasReading 读数以十进制字符串提交；h2s / lel 为空按 0 处理
func ParseGasReading(o2, co2, co, h2s, lel string) (GasReading, error) {
	var r GasReading
	fields := []struct {
		name     string
		raw      string
		optional bool
		dst      *float64
	}{
		{"o2Level", o2, false, &r.O2},
		{"co2Level", co2, false, &r.CO2},
		{"coLevel", co, false, &r.CO},
		{"h2sLevel", h2s, true, &r.H2S},
		{"lelLevel", lel, true, &r.LEL},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(f.raw)
		if raw == "" {
			if f.optional {
				continue
			}
			return r, fmt.Errorf("%s is required", f.name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return r, fmt.Errorf("%s is not a number: %q", f.name, f.raw)
		}
		*f.dst = v
	}
	return r, nil
}

// Exceedances 返回超限项描述，空表示正常
func (r GasReading) Exceedances() []string {
	var out []string
	if r.O2 < O2Min {
		out = append(out, fmt.Sprintf("O2 %.1f%% below %.1f%%", r.O2, O2Min))
	}
	if r.O2 > O2Max {
		out = append(out, fmt.Sprintf("O2 %.1f%% above %.1f%%", r.O2, O2Max))
	}
	if r.CO2 >= CO2Max {
		out = append(out, fmt.Sprintf("CO2 %.2f%% at or above %.1f%%", r.CO2, CO2Max))
	}
	if r.CO >= COMax {
		out = append(out, fmt.Sprintf("CO %.0f ppm at or above %d ppm", r.CO, COMax))
	}
	if r.H2S >= H2SMax {
		out = append(out, fmt.Sprintf("H2S %.0f ppm at or above %d ppm", r.H2S, H2SMax))
	}
	if r.LEL >= LELMax {
		out = append(out, fmt.Sprintf("LEL %.0f%% at or above %d%%", r.LEL, LELMax))
	}
	return out
}

func (r GasReading) Alert() bool {
	return len(r.Exceedances()) > 0
}
