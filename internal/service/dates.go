package service

import (
	"fmt"
	"time"

	"github.com/paeinovis/RETRHO-administrative/internal/sheet"
)

// Clock 当前时间来源，测试中替换
type Clock func() time.Time

// dateOnly 取 t 在 loc 下的日历日期，归一为 UTC 零点
func dateOnly(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析表单或查询参数中的日期文本，返回 UTC 零点
func ParseDate(s string) (time.Time, error) {
	t, ok := sheet.ParseDateText(s)
	if !ok {
		return time.Time{}, fmt.Errorf("无法解析日期 %q", s)
	}
	return utcDate(t), nil
}

// parseCellDate 解析目标表中的观测窗口日期，另外接受序列值
func parseCellDate(s string) (time.Time, error) {
	t, ok := sheet.ParseCellDate(s)
	if !ok {
		return time.Time{}, fmt.Errorf("无法解析日期 %q", s)
	}
	return utcDate(t), nil
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DisplayDate 通知邮件中展示的日期，如 "Mon Mar 02 2026"
func DisplayDate(date time.Time) string {
	return date.Format("Mon Jan 02 2006")
}
