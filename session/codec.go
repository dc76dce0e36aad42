package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	typeKey          = "@type"
	maxSanitizeDepth = 32
)

var (
	errNilRecord    = errors.New("nil record")
	errTrailingData = errors.New("trailing data after payload")
)

// SerializationError is returned when a record cannot be encoded even after
// the sanitizing retry.
type SerializationError struct {
	Op  string
	Err error
}

func (e *SerializationError) Error() string {
	return "session " + e.Op + ": " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Kind describes how much of a payload survived decoding.
type Kind uint8

const (
	// KindExact is a payload that decoded strictly.
	KindExact Kind = iota
	// KindRecovered is a typed record rebuilt after dropping or renaming fields.
	KindRecovered
	// KindDegraded is a record coerced out of a generic map that carried
	// both identity keys.
	KindDegraded
	// KindGeneric is a key-value structure without enough shape for a record.
	KindGeneric
	// KindUnreadable is a payload that is not a JSON object at all.
	KindUnreadable
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindRecovered:
		return "recovered"
	case KindDegraded:
		return "degraded"
	case KindGeneric:
		return "generic"
	default:
		return "unreadable"
	}
}

// DecodeResult is the outcome of [Codec.Decode]. Record is set only for
// exact, recovered and degraded results; Generic holds the key-value form
// whenever the typed path failed.
type DecodeResult struct {
	Kind     Kind
	Record   *Record
	Generic  map[string]any
	Category Category
}

// Usable reports whether the result carries a record.
func (r DecodeResult) Usable() bool {
	return r.Record != nil
}

type envelope struct {
	Type string `json:"@type"`
	Record
}

// Codec converts records to and from their cached JSON form and repairs
// payloads written by older or newer builds.
type Codec struct {
	aliases atomic.Pointer[AliasTable]
	stats   *ErrorStats
}

// NewCodec returns a codec using aliases for renamed types and fields.
// A nil stats gets a private counter set.
func NewCodec(aliases AliasTable, stats *ErrorStats) *Codec {
	if stats == nil {
		stats = NewErrorStats()
	}
	c := &Codec{stats: stats}
	c.SetAliases(aliases)
	return c
}

// SetAliases swaps the alias table used by subsequent decodes.
func (c *Codec) SetAliases(t AliasTable) {
	c.aliases.Store(&t)
}

// Aliases returns the alias table currently in use.
func (c *Codec) Aliases() AliasTable {
	return *c.aliases.Load()
}

// Stats returns the failure counters fed by this codec.
func (c *Codec) Stats() *ErrorStats {
	return c.stats
}

// Encode marshals rec with its type discriminator. Values that JSON cannot
// carry are replaced by a printable form on a second attempt; if that also
// fails a *SerializationError is returned and nothing should be written.
func (c *Codec) Encode(rec *Record) ([]byte, error) {
	if rec == nil {
		c.stats.Inc(CategoryEncodeFailed)
		return nil, &SerializationError{Op: "encode", Err: errNilRecord}
	}

	data, err := json.Marshal(envelope{Type: TypeName, Record: *rec})
	if err == nil {
		return data, nil
	}

	c.stats.Inc(CategoryEncode)
	sanitized := rec.Clone()
	if len(rec.Attributes) > 0 {
		sanitized.Attributes = make(map[string]any, len(rec.Attributes))
		for k, v := range rec.Attributes {
			sanitized.Attributes[k] = sanitizeValue(v, 0)
		}
	}

	data, retryErr := json.Marshal(envelope{Type: TypeName, Record: *sanitized})
	if retryErr != nil {
		c.stats.Inc(CategoryEncodeFailed)
		return nil, &SerializationError{Op: "encode", Err: errors.Join(err, retryErr)}
	}
	return data, nil
}

// Decode never fails: whatever survives is reported through the result kind.
// A result is only usable when both the session id and the account were
// recovered, so a partial record is never handed out as valid. Each failed
// strict decode is counted under exactly one category: a foreign @type wins
// over the unknown fields such payloads usually carry as well.
func (c *Codec) Decode(raw []byte) DecodeResult {
	aliases := c.Aliases()

	var env envelope
	err := strictUnmarshal(raw, &env)
	if err == nil && env.Type == TypeName && env.Record.identified() {
		rec := env.Record
		return DecodeResult{Kind: KindExact, Record: &rec}
	}

	m, ok := decodeGeneric(raw)
	if !ok {
		return c.unreadable()
	}
	if typ, _ := m[typeKey].(string); typ != TypeName {
		return c.recoverType(m, aliases)
	}
	if err != nil && isUnknownField(err) {
		return c.recoverKnownType(m, aliases, CategoryUnknownField)
	}
	return c.recoverKnownType(m, aliases, CategoryFormat)
}

// recoverKnownType handles payloads that carry the current @type but did
// not decode strictly.
func (c *Codec) recoverKnownType(m map[string]any, aliases AliasTable, cat Category) DecodeResult {
	c.stats.Inc(cat)

	aliases.renameFields(m)
	if rec, ok := lenientRecord(m); ok {
		return DecodeResult{Kind: KindRecovered, Record: rec, Category: cat}
	}
	return fromGeneric(m, cat)
}

func (c *Codec) recoverType(m map[string]any, aliases AliasTable) DecodeResult {
	c.stats.Inc(CategoryUnknownType)

	typ, _ := m[typeKey].(string)
	delete(m, typeKey)
	aliases.renameFields(m)

	if resolved, ok := aliases.ResolveType(typ); ok && resolved == TypeName {
		if rec, ok := lenientRecord(m); ok {
			return DecodeResult{Kind: KindRecovered, Record: rec, Category: CategoryUnknownType}
		}
	}
	return fromGeneric(m, CategoryUnknownType)
}

func (c *Codec) unreadable() DecodeResult {
	c.stats.Inc(CategoryUnreadable)
	return DecodeResult{Kind: KindUnreadable, Category: CategoryUnreadable}
}

var (
	sessionIDKeys = []string{"sessionId", "session_id", "sid", "tokenValue", "token"}
	accountKeys   = []string{"account", "loginId", "login_id", "username", "userName"}
)

// fromGeneric turns a map into a degraded record when it has the identity
// keys, otherwise hands the map back as is.
func fromGeneric(m map[string]any, cat Category) DecodeResult {
	delete(m, typeKey)
	promoteKey(m, "sessionId", sessionIDKeys)
	promoteKey(m, "account", accountKeys)

	if nonEmptyString(m["sessionId"]) && nonEmptyString(m["account"]) {
		if rec := coerceRecord(m); rec.identified() {
			return DecodeResult{Kind: KindDegraded, Record: rec, Generic: m, Category: cat}
		}
	}
	return DecodeResult{Kind: KindGeneric, Generic: m, Category: cat}
}

func promoteKey(m map[string]any, canonical string, synonyms []string) {
	if nonEmptyString(m[canonical]) {
		return
	}
	for _, k := range synonyms {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		s := fmt.Sprint(v)
		if s == "" {
			continue
		}
		m[canonical] = s
		return
	}
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && s != ""
}

// coerceRecord decodes m field by field; fields that do not convert are left
// zero instead of failing the whole record.
func coerceRecord(m map[string]any) *Record {
	var rec Record
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &rec,
		WeaklyTypedInput: true,
		DecodeHook:       timeDecodeHook,
	})
	if err != nil {
		return nil
	}
	_ = dec.Decode(m)
	return &rec
}

var timeType = reflect.TypeOf(time.Time{})

func timeDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, nil
		}
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.UnixMilli(ms), nil
		}
	case json.Number:
		if ms, err := v.Int64(); err == nil {
			return time.UnixMilli(ms), nil
		}
	case float64:
		return time.UnixMilli(int64(v)), nil
	case int64:
		return time.UnixMilli(v), nil
	}
	return data, nil
}

func lenientRecord(m map[string]any) (*Record, bool) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if !env.Record.identified() {
		return nil, false
	}
	rec := env.Record
	return &rec, true
}

func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

func decodeGeneric(raw []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func isUnknownField(err error) bool {
	return strings.HasPrefix(err.Error(), "json: unknown field ")
}

// sanitizeValue rewrites v into something encoding/json accepts, keeping as
// much of the structure as it can.
func sanitizeValue(v any, depth int) any {
	if v == nil {
		return nil
	}
	if depth > maxSanitizeDepth {
		return fmt.Sprint(v)
	}

	switch t := v.(type) {
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return strconv.FormatFloat(t, 'g', -1, 64)
		}
		return t
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'g', -1, 32)
		}
		return t
	case time.Time:
		if _, err := t.MarshalJSON(); err != nil {
			return t.String()
		}
		return t
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = sanitizeValue(iter.Value().Interface(), depth+1)
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes()
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = sanitizeValue(rv.Index(i).Interface(), depth+1)
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return sanitizeValue(rv.Elem().Interface(), depth+1)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return "<" + rv.Type().String() + ">"
	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprint(v)
	}

	if _, err := json.Marshal(v); err == nil {
		return v
	}
	return fmt.Sprintf("%+v", v)
}
