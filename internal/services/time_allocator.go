// internal/services/time_allocator.go
package services

import (
	"fmt"
	"math"
)

// AllocateStartTimes 把 [0, totalDuration) 平均分成 n 段，返回每段起点。
// 只是粗略的导航定位，不与内容边界对齐。
func AllocateStartTimes(totalDuration float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if totalDuration < 0 {
		totalDuration = 0
	}

	step := totalDuration / float64(n)
	starts := make([]float64, n)
	for i := range starts {
		starts[i] = float64(i) * step
	}
	return starts
}

// EndTime 第 i 段的结束时间为下一段起点；最后一段返回 nil（延续到字幕结束）
func EndTime(starts []float64, i int) *float64 {
	if i < 0 || i+1 >= len(starts) {
		return nil
	}
	end := starts[i+1]
	return &end
}

// FormatTimestamp 把秒数格式化为 HH:MM:SS（向下取整）
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
