package service

import (
	"reflect"
	"testing"
	"time"
)

var today = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

func row(name, open, closeAt string) TargetRow {
	return TargetRow{Cells: []string{"1", name, open, closeAt}, Name: name, OpenText: open, CloseText: closeAt}
}

func TestJoinHuman(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"a"}, "a"},
		{[]string{"a", "b"}, "a and b"},
		{[]string{"a", "b", "c"}, "a, b, and c"},
		{[]string{"a", "b", "c", "d"}, "a, b, c, and d"},
	}
	for _, tc := range cases {
		if got := JoinHuman(tc.in); got != tc.want {
			t.Errorf("JoinHuman(%v): 期望 %q，实际 %q", tc.in, tc.want, got)
		}
	}
}

func TestValidateSubmission_ColumnMismatch(t *testing.T) {
	template := []string{"A", "B", "C"}

	rej := ValidateSubmission([]string{"A", "X", "C"}, template, nil, today)
	if rej == nil || rej.Kind != KindColumnMismatch {
		t.Fatalf("期望 ColumnMismatch，实际 %+v", rej)
	}
	if !reflect.DeepEqual(rej.Reasons, []string{"B"}) {
		t.Errorf("期望原因 [B]，实际 %v", rej.Reasons)
	}
}

func TestValidateSubmission_ColumnsIgnoreWhitespace(t *testing.T) {
	template := []string{"Target Name", "Window\nOpen"}
	submitted := []string{" TargetName ", "Window Open"}

	if rej := ValidateSubmission(submitted, template, nil, today); rej != nil {
		t.Errorf("空白差异不应视为列不一致，实际 %+v", rej)
	}
}

func TestValidateSubmission_MissingColumnsDiffer(t *testing.T) {
	rej := ValidateSubmission([]string{"A"}, []string{"A", "B", "C"}, nil, today)
	if rej == nil || rej.Detail() != "B and C" {
		t.Fatalf("缺失列应计为不一致，实际 %+v", rej)
	}
}

func TestValidateSubmission_Windows(t *testing.T) {
	template := []string{"A", "B", "C", "D"}
	cases := []struct {
		name    string
		row     TargetRow
		invalid bool
	}{
		{"未来窗口", row("M31", "2026-11-01", "2026-12-01"), false},
		{"已开启未关闭", row("M42", "2026-09-01", "2026-11-01"), false},
		{"当天关闭", row("M45", "2026-09-01", "2026-10-19"), false},
		{"关闭早于开启", row("M13", "2026-12-01", "2026-11-01"), true},
		{"两端均已过去", row("M57", "2026-08-01", "2026-09-01"), true},
		{"日期无法解析", row("M1", "soon", "2026-12-01"), true},
		{"斜线日期", row("M3", "11/1/2026", "12/1/2026"), false},
		// 46327 = 2026-11-01，46357 = 2026-12-01
		{"日期序列值", row("M5", "46327", "46357"), false},
		{"序列值均已过去", row("M8", "46083", "46090"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rej := ValidateSubmission(template, template, []TargetRow{tc.row}, today)
			if tc.invalid {
				if rej == nil || rej.Kind != KindWindowMismatch {
					t.Fatalf("期望 WindowMismatch，实际 %+v", rej)
				}
				if rej.Detail() != tc.row.Name {
					t.Errorf("期望原因 %s，实际 %s", tc.row.Name, rej.Detail())
				}
				return
			}
			if rej != nil {
				t.Errorf("期望通过，实际 %+v", rej)
			}
		})
	}
}

func TestValidateSubmission_CollectsAllBadWindowsInOrder(t *testing.T) {
	template := []string{"A", "B", "C", "D"}
	rows := []TargetRow{
		row("M13", "2026-12-01", "2026-11-01"),
		row("M31", "2026-11-01", "2026-12-01"),
		row("M57", "2026-08-01", "2026-09-01"),
		row("M1", "", ""),
	}

	rej := ValidateSubmission(template, template, rows, today)
	if rej == nil {
		t.Fatal("期望 WindowMismatch")
	}
	if got := rej.Detail(); got != "M13, M57, and M1" {
		t.Errorf("期望 \"M13, M57, and M1\"，实际 %q", got)
	}
}

func TestValidateSubmission_ColumnCheckRunsFirst(t *testing.T) {
	rows := []TargetRow{row("M13", "2026-12-01", "2026-11-01")}
	rej := ValidateSubmission([]string{"A", "X", "C", "D"}, []string{"A", "B", "C", "D"}, rows, today)
	if rej == nil || rej.Kind != KindColumnMismatch {
		t.Errorf("列检查应先于窗口检查，实际 %+v", rej)
	}
}
