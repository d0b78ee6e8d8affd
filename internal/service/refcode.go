package service

import (
	"errors"
	"fmt"
	"time"
)

// ErrRefCodeOverflow 学期内序号超出三位
var ErrRefCodeOverflow = errors.New("参考编号序号超出 000-999 范围")

// maxSequence 三位序号上限（不含）
const maxSequence = 1000

// RefCode 参考编号，形如 26C004
type RefCode string

// SemesterLetter 按月份划分学期：1-4 月 A，5-8 月 B，9-12 月 C
func SemesterLetter(month time.Month) string {
	switch idx := int(month) - 1; {
	case idx >= 0 && idx <= 3:
		return "A"
	case idx >= 4 && idx <= 7:
		return "B"
	default:
		return "C"
	}
}

// SemesterKey 年份后两位加学期字母，如 26A
func SemesterKey(date time.Time) string {
	return fmt.Sprintf("%02d%s", date.Year()%100, SemesterLetter(date.Month()))
}

// GenerateRefCode 由提交日期与本学期已存储的提交数生成参考编号
func GenerateRefCode(date time.Time, prior int) (RefCode, error) {
	if prior < 0 || prior >= maxSequence {
		return "", fmt.Errorf("%w: %d", ErrRefCodeOverflow, prior)
	}
	return RefCode(fmt.Sprintf("%s%03d", SemesterKey(date), prior)), nil
}
