package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFilterWhere(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	where, args := Filter{EntityType: EntityTask, EntityID: "task-1", Since: since}.where("t1")
	require.Equal(t, "tenant_id = $1 AND entity_type = $2 AND entity_id = $3 AND created_at >= $4", where)
	require.Equal(t, []any{"t1", EntityTask, "task-1", since}, args)
}

func TestFilterWhereTenantOnly(t *testing.T) {
	where, args := Filter{}.where("t1")
	require.Equal(t, "tenant_id = $1", where)
	require.Equal(t, []any{"t1"}, args)
}

func TestFilterWhereActorAndUntil(t *testing.T) {
	until := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	where, args := Filter{ActorUser: "u1", Until: until}.where("t1")
	require.Equal(t, "tenant_id = $1 AND actor_user_id::text = $2 AND created_at < $3", where)
	require.Len(t, args, 3)
}

func TestSnapshot(t *testing.T) {
	raw, err := snapshot(nil)
	require.NoError(t, err)
	require.Nil(t, raw)

	raw, err = snapshot(map[string]string{"status": "APPROVED"})
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"APPROVED"}`, string(raw))
}
