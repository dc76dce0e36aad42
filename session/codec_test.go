package session

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec() *Codec {
	return NewCodec(DefaultAliasTable(), NewErrorStats())
}

func TestCodecRoundTripIsExact(t *testing.T) {
	c := newTestCodec()
	rec := testRecord()
	rec.Attributes = map[string]any{"tenant": "north"}

	data, err := c.Encode(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"@type":"`+TypeName+`"`)

	res := c.Decode(data)
	require.Equal(t, KindExact, res.Kind)
	require.NotNil(t, res.Record)
	assert.Equal(t, rec.SessionID, res.Record.SessionID)
	assert.Equal(t, rec.Roles, res.Record.Roles)
	assert.Equal(t, "north", res.Record.Attributes["tenant"])

	for _, cat := range Categories() {
		assert.Zero(t, c.Stats().Value(cat), cat.String())
	}
}

func TestDecodeUnknownFieldKeepsRecognizedFields(t *testing.T) {
	c := newTestCodec()
	raw := []byte(`{
		"@type": "` + TypeName + `",
		"sessionId": "sid-9",
		"account": "user1",
		"userId": 42,
		"roles": ["USER"],
		"nickname": "Ann",
		"favouriteColour": "green"
	}`)

	res := c.Decode(raw)
	require.Equal(t, KindRecovered, res.Kind)
	require.NotNil(t, res.Record)
	assert.Equal(t, "sid-9", res.Record.SessionID)
	assert.Equal(t, int64(42), res.Record.UserID)
	assert.Equal(t, []string{"USER"}, res.Record.Roles)
	assert.Equal(t, "Ann", res.Record.Nickname)
	assert.Equal(t, CategoryUnknownField, res.Category)
	assert.Equal(t, uint64(1), c.Stats().Value(CategoryUnknownField))
}

func TestDecodeRenamedFieldUsesAlias(t *testing.T) {
	c := newTestCodec()
	raw := []byte(`{"@type":"` + TypeName + `","tokenValue":"sid-3","loginId":"user1","roleList":["HR"]}`)

	res := c.Decode(raw)
	require.True(t, res.Usable())
	assert.Equal(t, KindRecovered, res.Kind)
	assert.Equal(t, "sid-3", res.Record.SessionID)
	assert.Equal(t, "user1", res.Record.Account)
	assert.Equal(t, []string{"HR"}, res.Record.Roles)
}

func TestDecodeAliasedTypeRecovers(t *testing.T) {
	c := newTestCodec()
	raw := []byte(`{"@type":"hireauth.session.Record/v1","sessionId":"sid-4","account":"user1","userId":3}`)

	res := c.Decode(raw)
	require.Equal(t, KindRecovered, res.Kind)
	assert.Equal(t, CategoryUnknownType, res.Category)
	assert.Equal(t, int64(3), res.Record.UserID)
	assert.Equal(t, uint64(1), c.Stats().Value(CategoryUnknownType))
}

func TestDecodeUnresolvableTypeDegradesToIdentity(t *testing.T) {
	c := newTestCodec()
	raw := []byte(`{
		"@type": "legacy.SomethingElse",
		"sessionId": "sid-5",
		"account": "user1",
		"userId": "17",
		"expireTime": 1893456000000
	}`)

	res := c.Decode(raw)
	require.Equal(t, KindDegraded, res.Kind)
	require.NotNil(t, res.Generic)
	assert.Equal(t, "sid-5", res.Generic["sessionId"])
	assert.Equal(t, "user1", res.Generic["account"])
	assert.NotContains(t, res.Generic, "@type")

	require.NotNil(t, res.Record)
	assert.Equal(t, int64(17), res.Record.UserID)
	assert.Equal(t, time.UnixMilli(1893456000000).UTC(), res.Record.ExpireTime.UTC())
}

func TestDecodeMissingTypeUsesSynonyms(t *testing.T) {
	c := newTestCodec()
	raw := []byte(`{"sid":"sid-6","username":"user1"}`)

	res := c.Decode(raw)
	require.Equal(t, KindDegraded, res.Kind)
	assert.Equal(t, "sid-6", res.Record.SessionID)
	assert.Equal(t, "user1", res.Record.Account)
}

func TestDecodeWithoutIdentityStaysGeneric(t *testing.T) {
	c := newTestCodec()
	raw := []byte(`{"@type":"legacy.Other","color":"blue","count":3}`)

	res := c.Decode(raw)
	assert.Equal(t, KindGeneric, res.Kind)
	assert.False(t, res.Usable())
	assert.Equal(t, "blue", res.Generic["color"])
}

func TestDecodeWrongValueTypeFallsBackToGeneric(t *testing.T) {
	c := newTestCodec()
	raw := []byte(`{"@type":"` + TypeName + `","sessionId":"sid-7","account":"user1","userId":"not-a-number"}`)

	res := c.Decode(raw)
	require.Equal(t, KindDegraded, res.Kind)
	assert.Equal(t, CategoryFormat, res.Category)
	assert.Equal(t, "sid-7", res.Record.SessionID)
	assert.Zero(t, res.Record.UserID)
}

func TestDecodeGarbageIsUnreadable(t *testing.T) {
	c := newTestCodec()

	for _, raw := range [][]byte{[]byte("not json"), []byte("[1,2,3]"), []byte("null"), nil} {
		res := c.Decode(raw)
		assert.Equal(t, KindUnreadable, res.Kind, string(raw))
		assert.Nil(t, res.Record)
	}
	assert.Equal(t, uint64(4), c.Stats().Value(CategoryUnreadable))
}

func TestEncodeSanitizesUnsupportedAttributes(t *testing.T) {
	c := newTestCodec()
	rec := testRecord()
	rec.Attributes = map[string]any{
		"ratio":  math.NaN(),
		"notify": make(chan int),
		"nested": map[int]any{1: math.Inf(1)},
		"plain":  "kept",
	}

	data, err := c.Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.Stats().Value(CategoryEncode))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	attrs := decoded["attributes"].(map[string]any)
	assert.Equal(t, "NaN", attrs["ratio"])
	assert.Equal(t, "<chan int>", attrs["notify"])
	assert.Equal(t, map[string]any{"1": "+Inf"}, attrs["nested"])
	assert.Equal(t, "kept", attrs["plain"])

	res := c.Decode(data)
	assert.Equal(t, KindExact, res.Kind)
}

func TestEncodeTerminalFailureIsTyped(t *testing.T) {
	c := newTestCodec()
	rec := testRecord()
	rec.ExpireTime = time.Date(10001, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := c.Encode(rec)
	require.Error(t, err)

	var serr *SerializationError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "encode", serr.Op)
	assert.Equal(t, uint64(1), c.Stats().Value(CategoryEncode))
	assert.Equal(t, uint64(1), c.Stats().Value(CategoryEncodeFailed))

	_, err = c.Encode(nil)
	require.True(t, errors.As(err, &serr))
}

func TestSetAliasesExtendsTypeTable(t *testing.T) {
	c := newTestCodec()
	raw := []byte(`{"@type":"vendor.Session","sessionId":"sid-8","account":"user1"}`)

	assert.Equal(t, KindDegraded, c.Decode(raw).Kind)

	c.SetAliases(c.Aliases().Merge(AliasTable{
		Version: 3,
		Types:   map[string]string{"vendor.Session": TypeName},
	}))
	assert.Equal(t, 3, c.Aliases().Version)
	assert.Equal(t, KindRecovered, c.Decode(raw).Kind)
}

func TestResolveTypeStopsOnCycles(t *testing.T) {
	table := AliasTable{Types: map[string]string{"a": "b", "b": "a"}}

	_, ok := table.ResolveType("a")
	assert.False(t, ok)

	resolved, ok := DefaultAliasTable().ResolveType("hireauth.auth.SessionInfo")
	assert.True(t, ok)
	assert.Equal(t, TypeName, resolved)
}

func TestDecodeCountsEachFailureOnce(t *testing.T) {
	c := newTestCodec()
	legacy := []byte(`{"@type":"legacy.Unknown","tokenValue":"sid-10","loginId":"u1","favouriteColour":"green"}`)
	extraField := []byte(`{"@type":"` + TypeName + `","sessionId":"sid-11","account":"u1","favouriteColour":"green"}`)
	badValue := []byte(`{"@type":"` + TypeName + `","sessionId":"sid-12","account":"u1","userId":"x"}`)

	for i := 0; i < 3; i++ {
		assert.Equal(t, KindDegraded, c.Decode(legacy).Kind)
	}
	for i := 0; i < 2; i++ {
		assert.Equal(t, KindRecovered, c.Decode(extraField).Kind)
	}
	assert.Equal(t, KindDegraded, c.Decode(badValue).Kind)
	assert.Equal(t, KindUnreadable, c.Decode([]byte("{")).Kind)

	assert.Equal(t, map[Category]uint64{
		CategoryUnknownField: 2,
		CategoryUnknownType:  3,
		CategoryFormat:       1,
		CategoryUnreadable:   1,
		CategoryEncode:       0,
		CategoryEncodeFailed: 0,
	}, c.Stats().Snapshot())
}
