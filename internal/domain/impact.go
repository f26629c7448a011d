package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Impact - оценка согласия голосующего. В старых данных встречаются и числа
// 0/1/2, и строки, поэтому разбор принимает обе формы, а запись всегда
// каноническая.
type Impact int

const (
	ImpactDisagree Impact = iota
	ImpactAgree
	ImpactStronglyAgree
)

func (i Impact) String() string {
	switch i {
	case ImpactDisagree:
		return "disagree"
	case ImpactAgree:
		return "agree"
	case ImpactStronglyAgree:
		return "strongly-agree"
	}
	return "impact(" + strconv.Itoa(int(i)) + ")"
}

// Counts сообщает, увеличивает ли голос счётчик votes.
func (i Impact) Counts() bool { return i == ImpactAgree || i == ImpactStronglyAgree }

func (i Impact) Valid() bool { return i >= ImpactDisagree && i <= ImpactStronglyAgree }

// ParseImpact разбирает строковую форму оценки.
func ParseImpact(s string) (Impact, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "disagree":
		return ImpactDisagree, nil
	case "1", "agree":
		return ImpactAgree, nil
	case "2", "strongly", "strongly-agree", "strongly_agree", "strongly agree":
		return ImpactStronglyAgree, nil
	}
	return 0, fmt.Errorf("unknown impact %q", s)
}

func impactFromInt(n int64) (Impact, error) {
	i := Impact(n)
	if !i.Valid() {
		return 0, fmt.Errorf("unknown impact %d", n)
	}
	return i, nil
}

func (i Impact) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

func (i *Impact) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := ParseImpact(s)
		if err != nil {
			return err
		}
		*i = v
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("impact must be a number or a string: %w", err)
	}
	// Дробные значения не округляются, а отклоняются
	whole, err := n.Int64()
	if err != nil {
		return fmt.Errorf("impact must be a whole number, got %s", n)
	}
	v, err := impactFromInt(whole)
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Value хранит оценку числом.
func (i Impact) Value() (driver.Value, error) {
	return int64(i), nil
}

// Scan принимает и числовую, и строковую форму из БД.
func (i *Impact) Scan(src any) error {
	var (
		v   Impact
		err error
	)
	switch s := src.(type) {
	case int64:
		v, err = impactFromInt(s)
	case []byte:
		v, err = ParseImpact(string(s))
	case string:
		v, err = ParseImpact(s)
	case nil:
		v = ImpactDisagree
	default:
		err = fmt.Errorf("unsupported impact type %T", src)
	}
	if err != nil {
		return err
	}
	*i = v
	return nil
}
