package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind は Value が保持している値の種類です
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value はAha! APIから返される任意のJSON値を表します。
// ゼロ値は null です。
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list []Value
	m    map[string]Value
}

// Null は null 値を返します
func Null() Value { return Value{} }

// Bool は真偽値を返します
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number は数値を返します
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String は文字列値を返します
func String(s string) Value { return Value{kind: KindString, s: s} }

// List は順序付きの配列値を返します
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

// Map はキー付きのオブジェクト値を返します
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

// Kind は値の種類を返します
func (v Value) Kind() Kind { return v.kind }

// IsNull は値が null かどうかを返します
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsNumber は数値を取り出します
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString は文字列を取り出します
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsList は配列の要素を取り出します
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

// AsMap はオブジェクトの中身を取り出します
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// Len は配列・オブジェクトの要素数、文字列の長さを返します
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.m)
	case KindString:
		return len(v.s)
	}
	return 0
}

// Get はオブジェクトのキーに対応する値を返します
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	child, ok := v.m[key]
	return child, ok
}

// Index は配列の指定位置の値を返します
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Value{}, false
	}
	return v.list[i], true
}

// Keys はオブジェクトのキーをソートして返します
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve はドット区切りのパス ("custom_fields.2.value" など) をたどって値を取得します。
// オブジェクトではキー、配列では0以上の整数インデックスとしてセグメントを解釈し、
// どこかで一致しなければ false を返します。
func (v Value) Resolve(path string) (Value, bool) {
	if path == "" {
		return Value{}, false
	}
	current := v
	for _, segment := range strings.Split(path, ".") {
		switch current.kind {
		case KindMap:
			child, ok := current.m[segment]
			if !ok {
				return Value{}, false
			}
			current = child
		case KindList:
			idx, ok := parseIndex(segment)
			if !ok || idx >= len(current.list) {
				return Value{}, false
			}
			current = current.list[idx]
		default:
			return Value{}, false
		}
	}
	return current, true
}

// parseIndex はASCII数字のみで構成されたセグメントを配列インデックスとして解釈します
func parseIndex(segment string) (int, bool) {
	if segment == "" {
		return 0, false
	}
	for i := 0; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(segment)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// Lookup は Resolve の結果が null でない場合のみ値を返します
func (v Value) Lookup(path string) (Value, bool) {
	found, ok := v.Resolve(path)
	if !ok || found.IsNull() {
		return Value{}, false
	}
	return found, true
}

// Str はパスの値を文字列として取得します。文字列以外の値は Text で変換します。
func (v Value) Str(path string) string {
	found, ok := v.Lookup(path)
	if !ok {
		return ""
	}
	return found.Text()
}

// Truthy は値が「空でない」かどうかを返します
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0
	case KindString:
		return v.s != ""
	case KindList:
		return len(v.list) > 0
	case KindMap:
		return len(v.m) > 0
	}
	return false
}

// Text は説明文などに埋め込むための文字列表現を返します
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindString:
		return v.s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// Interface はJSONエンコード可能な素のGoの値に変換します
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

// FromInterface は encoding/json でデコードした値を Value に変換します
func FromInterface(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("数値変換エラー: %w", err)
		}
		return Number(n), nil
	case string:
		return String(t), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			converted, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = converted
		}
		return List(items...), nil
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			converted, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			m[k] = converted
		}
		return Map(m), nil
	}
	return Value{}, fmt.Errorf("未対応の型です: %T", raw)
}

// ParseJSON はJSONバイト列を Value に変換します
func ParseJSON(data []byte) (Value, error) {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// UnmarshalJSON は json.Unmarshaler の実装です
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("JSONデコードエラー: %w", err)
	}
	converted, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = converted
	return nil
}

// MarshalJSON は json.Marshaler の実装です
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}
