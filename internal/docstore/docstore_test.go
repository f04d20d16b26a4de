package docstore

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "users/w1/attendance/a1", AttendancePath("w1", "a1"))
	assert.Equal(t, "users/w1/production", ProductionCollection("w1"))
	assert.Equal(t, "operations/op1", OperationPath("op1"))

	col, id, err := SplitPath("users/w1/attendance/a1")
	require.NoError(t, err)
	assert.Equal(t, "users/w1/attendance", col)
	assert.Equal(t, "a1", id)

	for _, bad := range []string{"users", "users/w1/attendance", "users//x", ""} {
		_, _, err := SplitPath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

type basicInfo struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=ADMIN WORKER"`
}

type userDoc struct {
	BasicInfo basicInfo `json:"basicInfo"`
	Stats     struct {
		TotalEarnings decimal.Decimal `json:"totalEarnings"`
	} `json:"stats"`
}

func TestDecodeStrict(t *testing.T) {
	ok := Snapshot{Path: "users/w1", Data: map[string]any{
		"basicInfo": map[string]any{"name": "Ana", "username": "ana", "role": "WORKER"},
		"stats":     map[string]any{"totalEarnings": json.Number("20.00")},
	}}
	var u userDoc
	require.NoError(t, ok.Decode(&u))
	assert.Equal(t, "Ana", u.BasicInfo.Name)
	assert.True(t, decimal.RequireFromString("20").Equal(u.Stats.TotalEarnings))

	// role 欠落は既定値で埋めずに失敗させる
	missing := Snapshot{Path: "users/w2", Data: map[string]any{
		"basicInfo": map[string]any{"name": "Luis", "username": "luis"},
	}}
	var u2 userDoc
	err := missing.Decode(&u2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Role")
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestApplyIncrements(t *testing.T) {
	data := map[string]any{"stats": map[string]any{"totalEarnings": json.Number("1.5")}}
	err := ApplyIncrements(data, map[string]decimal.Decimal{
		"stats.totalEarnings":     decimal.RequireFromString("20.00"),
		"stats.monthlyProduction": decimal.NewFromInt(50),
	}, map[string]any{"timestamps.lastActive": "2026-10-18T08:20:00Z"})
	require.NoError(t, err)

	v, _ := Lookup(data, "stats.totalEarnings")
	assert.Equal(t, json.Number("21.5"), v)
	v, _ = Lookup(data, "stats.monthlyProduction")
	assert.Equal(t, json.Number("50"), v)
	v, _ = Lookup(data, "timestamps.lastActive")
	assert.Equal(t, "2026-10-18T08:20:00Z", v)

	bad := map[string]any{"stats": map[string]any{"totalEarnings": true}}
	assert.Error(t, ApplyIncrements(bad, map[string]decimal.Decimal{"stats.totalEarnings": decimal.NewFromInt(1)}, nil))
}

func TestApplyQuery(t *testing.T) {
	snaps := []Snapshot{
		{ID: "a", Data: map[string]any{"date": "2026-10-16", "qty": json.Number("5"), "active": true}},
		{ID: "b", Data: map[string]any{"date": "2026-10-18", "qty": json.Number("50"), "active": true}},
		{ID: "c", Data: map[string]any{"date": "2026-10-17", "qty": json.Number("7"), "active": false}},
		{ID: "d", Data: map[string]any{"qty": json.Number("1")}},
	}

	got := Apply(snaps, Query{Where: []Filter{Where("date", OpGte, "2026-10-17")}, OrderBy: "date", Desc: true})
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	got = Apply(snaps, Query{Where: []Filter{Where("qty", OpGt, 6)}, OrderBy: "qty"})
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)

	got = Apply(snaps, Query{Where: []Filter{Where("active", OpEq, true)}, Limit: 1})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	// 型違いは一致しない
	assert.Empty(t, Apply(snaps, Query{Where: []Filter{Where("date", OpEq, 5)}}))
}
