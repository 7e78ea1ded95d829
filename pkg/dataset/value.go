package dataset

import (
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Kind discriminates the scalar variants a cell value can hold.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindDate
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindNull:
		return "null"
	}

	return "unknown"
}

// Layouts accepted when inferring calendar dates and times of day from raw
// cell text. The matched layout is kept on the value, so a cell renders back
// as it appeared in the dataset.
var (
	dateLayouts = []string{
		"2006-01-02",
		"02/01/2006",
		"01-02-2006",
	}
	clockLayouts = []string{
		"15:04",
		"15:04:05",
		"03:04 PM",
	}
)

// Value is a tagged scalar: number, text, date, time, or null. Coercion
// failures are explicit rather than hidden behind truthiness checks.
type Value struct {
	text   string
	layout string
	t      time.Time
	num    float64
	kind   Kind
}

func Null() Value {
	return Value{kind: KindNull}
}

func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

func Date(t time.Time) Value {
	return Value{kind: KindDate, t: t, layout: dateLayouts[0]}
}

func Time(t time.Time) Value {
	return Value{kind: KindTime, t: t, layout: clockLayouts[0]}
}

// Infer builds a [Value] from raw cell text, trying number, date, and time
// layouts before falling back to text. Empty or whitespace-only cells are
// null.
func Infer(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Null()
	}

	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
		return Number(f)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Value{kind: KindDate, t: t, layout: layout}
		}
	}

	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Value{kind: KindTime, t: t, layout: layout}
		}
	}

	return Text(s)
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsNumber returns the numeric value, coercing from text if needed.
// The second return is false when no numeric reading exists.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true

	case KindText:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v.text), ",", ""), 64)
		if err != nil {
			return 0, false
		}

		return f, true

	case KindDate, KindTime, KindNull:
		return 0, false
	}

	return 0, false
}

// AsText returns the textual value. Numbers, dates, and times are rendered,
// so categorical comparisons against numeric-looking cells still work.
func (v Value) AsText() (string, bool) {
	switch v.kind {
	case KindText:
		return v.text, true

	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64), true

	case KindDate, KindTime:
		return v.formatTime(), true

	case KindNull:
		return "", false
	}

	return "", false
}

// AsTime returns the underlying instant of a date or time value.
func (v Value) AsTime() (time.Time, bool) {
	if v.kind != KindDate && v.kind != KindTime {
		return time.Time{}, false
	}

	return v.t, true
}

// Display renders the value for explanations. Numbers get thousands
// separators ("50,000"), matching how the decisions read to humans. Dates
// and times render with the layout they were parsed from.
func (v Value) Display() string {
	switch v.kind {
	case KindNumber:
		if v.num == float64(int64(v.num)) {
			return humanize.Comma(int64(v.num))
		}

		return humanize.Commaf(v.num)

	case KindText:
		return v.text

	case KindDate, KindTime:
		return v.formatTime()

	case KindNull:
		return "null"
	}

	return ""
}

func (v Value) formatTime() string {
	layout := v.layout
	if layout == "" {
		if v.kind == KindDate {
			layout = dateLayouts[0]
		} else {
			layout = clockLayouts[0]
		}
	}

	return v.t.Format(layout)
}
