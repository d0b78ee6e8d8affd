package service

import "time"

// Twilight 一个观测夜的日落与次日日出
type Twilight struct {
	Sunset  time.Time
	Sunrise time.Time
}

type clockPair struct {
	sunset  string
	sunrise string
}

// 按月份的近似日落/日出时刻（观测站当地时间）
var twilightTable = map[time.Month]clockPair{
	time.January:   {"18:20:00", "06:00:00"},
	time.February:  {"18:40:00", "05:50:00"},
	time.April:     {"20:20:00", "05:40:00"},
	time.May:       {"20:40:00", "05:00:00"},
	time.June:      {"21:00:00", "04:50:00"},
	time.July:      {"21:00:00", "05:00:00"},
	time.August:    {"20:30:00", "05:30:00"},
	time.September: {"19:50:00", "05:50:00"},
	time.October:   {"19:20:00", "06:10:00"},
	time.December:  {"18:00:00", "05:50:00"},
}

// 三月、十一月按是否与一月同处标准时间区分
var (
	marchStandard    = clockPair{"18:50:00", "05:30:00"}
	marchDaylight    = clockPair{"20:00:00", "06:10:00"}
	novemberStandard = clockPair{"17:50:00", "05:30:00"}
	novemberDaylight = clockPair{"19:00:00", "06:20:00"}
	defaultPair      = clockPair{"19:00:00", "06:00:00"}
)

func twilightPair(date time.Time, loc *time.Location) clockPair {
	month := date.Month()
	switch month {
	case time.March, time.November:
		standard := sameOffsetAsJanuary(date, loc)
		if month == time.March {
			if standard {
				return marchStandard
			}
			return marchDaylight
		}
		if standard {
			return novemberStandard
		}
		return novemberDaylight
	}
	if p, ok := twilightTable[month]; ok {
		return p
	}
	return defaultPair
}

// sameOffsetAsJanuary 比较 1 月 1 日 01:00 与当天 18:00 的 UTC 偏移
func sameOffsetAsJanuary(date time.Time, loc *time.Location) bool {
	y, m, d := date.Date()
	_, janOffset := time.Date(y, time.January, 1, 1, 0, 0, 0, loc).Zone()
	_, dayOffset := time.Date(y, m, d, 18, 0, 0, 0, loc).Zone()
	return janOffset == dayOffset
}

func clockOn(y int, m time.Month, d int, clock string, loc *time.Location) time.Time {
	c, err := time.Parse("15:04:05", clock)
	if err != nil {
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	return time.Date(y, m, d, c.Hour(), c.Minute(), c.Second(), 0, loc)
}

// TwilightFor date 当天的日落与次日的日出，均为 loc 下的时刻
// date 只取其年月日
func TwilightFor(date time.Time, loc *time.Location) Twilight {
	p := twilightPair(date, loc)
	y, m, d := date.Date()
	return Twilight{
		Sunset:  clockOn(y, m, d, p.sunset, loc),
		Sunrise: clockOn(y, m, d+1, p.sunrise, loc),
	}
}

// SunsetLabel 仅用于展示的日落时刻文本
func SunsetLabel(date time.Time, loc *time.Location) string {
	return twilightPair(date, loc).sunset
}
