package service

import (
	"strings"
	"time"
	"unicode"
)

// TargetRow 提交表中的一行目标数据
type TargetRow struct {
	Cells     []string // 模板列顺序的原始文本
	Name      string
	OpenText  string
	CloseText string
}

// stripSpace 去除全部空白字符（含换行）
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// diffColumns 按模板长度逐列比较，返回不一致的模板列名
func diffColumns(submitted, template []string) []string {
	var diff []string
	for i, want := range template {
		got := ""
		if i < len(submitted) {
			got = submitted[i]
		}
		if stripSpace(got) != stripSpace(want) {
			diff = append(diff, want)
		}
	}
	return diff
}

// windowProblems 返回观测窗口无效的目标名称
// 无效：关闭早于开启、两端都已过去、或日期无法解析
func windowProblems(rows []TargetRow, today time.Time) []string {
	var problems []string
	for _, row := range rows {
		open, errOpen := parseCellDate(row.OpenText)
		closeAt, errClose := parseCellDate(row.CloseText)
		if errOpen != nil || errClose != nil {
			problems = append(problems, row.Name)
			continue
		}
		if closeAt.Before(open) || (open.Before(today) && closeAt.Before(today)) {
			problems = append(problems, row.Name)
		}
	}
	return problems
}

// ValidateSubmission 先校验列头，再校验观测窗口；通过时返回 nil
// today 为 UTC 零点的当天日期
func ValidateSubmission(submitted, template []string, rows []TargetRow, today time.Time) *Rejection {
	if diff := diffColumns(submitted, template); len(diff) > 0 {
		return &Rejection{Kind: KindColumnMismatch, Reasons: diff}
	}
	if problems := windowProblems(rows, today); len(problems) > 0 {
		return &Rejection{Kind: KindWindowMismatch, Reasons: problems}
	}
	return nil
}
