package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bugtracker/internal/model"
)

type memBackend struct {
	values  map[string]string
	failSet bool
	failKey string
}

func newMemBackend() *memBackend {
	return &memBackend{values: make(map[string]string)}
}

func (b *memBackend) Get(_ context.Context, key string) (string, error) {
	v, ok := b.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (b *memBackend) Set(_ context.Context, key, value string) error {
	if b.failSet || (b.failKey != "" && b.failKey == key) {
		return errors.New("disk full")
	}
	b.values[key] = value
	return nil
}

func (b *memBackend) Delete(_ context.Context, key string) error {
	delete(b.values, key)
	return nil
}

func TestManagerSetPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	m := NewManager(backend)

	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	user := &model.User{ID: "7", Name: "Ana", Email: "ana@example.com", Role: model.RoleTester}
	require.NoError(t, m.Set(ctx, "tok-1", user, ReasonLogin))

	assert.Equal(t, "tok-1", m.Token())
	assert.True(t, m.Authenticated())
	assert.Equal(t, "tok-1", backend.values[KeyToken])
	assert.JSONEq(t, `{"id":"7","name":"Ana","email":"ana@example.com","role":"tester"}`, backend.values[KeyUser])

	ev := <-events
	assert.Equal(t, ReasonLogin, ev.Reason)
	assert.Equal(t, "tok-1", ev.Session.Token)
	require.NotNil(t, ev.Session.User)
	assert.Equal(t, "Ana", ev.Session.User.Name)
}

func TestManagerLoadRestoresPersistedSession(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.values[KeyToken] = "persisted"
	backend.values[KeyUser] = `{"id":3,"name":"Bo"}`

	m := NewManager(backend)
	require.NoError(t, m.Load(ctx))

	assert.Equal(t, "persisted", m.Token())
	u, ok := m.User()
	require.True(t, ok)
	assert.Equal(t, "3", u.ID)
}

func TestManagerLoadDiscardsCorruptUser(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.values[KeyToken] = "persisted"
	backend.values[KeyUser] = `{not json`

	m := NewManager(backend)
	require.NoError(t, m.Load(ctx))

	assert.Equal(t, "persisted", m.Token())
	_, ok := m.User()
	assert.False(t, ok)
}

func TestManagerLoadEmpty(t *testing.T) {
	m := NewManager(newMemBackend())
	require.NoError(t, m.Load(context.Background()))
	assert.False(t, m.Authenticated())
}

func TestManagerClearRemovesBothKeys(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	m := NewManager(backend)
	require.NoError(t, m.Set(ctx, "tok", &model.User{ID: "1"}, ReasonLogin))

	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	require.NoError(t, m.Clear(ctx))

	assert.Empty(t, backend.values)
	assert.Equal(t, "", m.Token())
	_, ok := m.User()
	assert.False(t, ok)

	ev := <-events
	assert.Equal(t, ReasonLogout, ev.Reason)
	assert.False(t, ev.Session.Authenticated())
}

func TestManagerSetFailureKeepsPreviousSession(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	m := NewManager(backend)
	require.NoError(t, m.Set(ctx, "old", nil, ReasonLogin))

	backend.failSet = true
	err := m.Set(ctx, "new", nil, ReasonLogin)
	require.Error(t, err)
	assert.Equal(t, "old", m.Token())
}

func TestManagerSetRestoresTokenWhenUserWriteFails(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	m := NewManager(backend)
	require.NoError(t, m.Set(ctx, "old", &model.User{ID: "1", Name: "Ana"}, ReasonLogin))

	backend.failKey = KeyUser
	err := m.Set(ctx, "new", &model.User{ID: "2", Name: "Bo"}, ReasonLogin)
	require.Error(t, err)

	assert.Equal(t, "old", backend.values[KeyToken])
	assert.Equal(t, "old", m.Token())

	backend.failKey = ""
	require.NoError(t, m.Reload(ctx))
	assert.Equal(t, "old", m.Token())
	u, ok := m.User()
	require.True(t, ok)
	assert.Equal(t, "Ana", u.Name)
}

func TestManagerSetRemovesTokenWhenFirstLoginFails(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	m := NewManager(backend)

	backend.failKey = KeyUser
	require.Error(t, m.Set(ctx, "new", &model.User{ID: "2"}, ReasonLogin))

	_, stored := backend.values[KeyToken]
	assert.False(t, stored)
	assert.False(t, m.Authenticated())
}

func TestManagerSetRejectsEmptyToken(t *testing.T) {
	m := NewManager(newMemBackend())
	require.Error(t, m.Set(context.Background(), "", nil, ReasonLogin))
}

func TestManagerUnsubscribeClosesChannel(t *testing.T) {
	m := NewManager(newMemBackend())
	events, unsubscribe := m.Subscribe()

	unsubscribe()
	unsubscribe()

	_, open := <-events
	assert.False(t, open)

	require.NoError(t, m.Set(context.Background(), "tok", nil, ReasonLogin))
}

func TestManagerCurrentReturnsCopy(t *testing.T) {
	m := NewManager(newMemBackend())
	require.NoError(t, m.Set(context.Background(), "tok", &model.User{Name: "Ana"}, ReasonLogin))

	s := m.Current()
	s.User.Name = "changed"

	u, _ := m.User()
	assert.Equal(t, "Ana", u.Name)
}

func TestManagerReloadPublishesOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	m := NewManager(backend)
	require.NoError(t, m.Set(ctx, "tok-1", &model.User{ID: "1", Name: "Ana"}, ReasonLogin))

	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	require.NoError(t, m.Reload(ctx))
	assert.Empty(t, events)

	// Another process logged out.
	delete(backend.values, KeyToken)
	delete(backend.values, KeyUser)

	require.NoError(t, m.Reload(ctx))
	ev := <-events
	assert.Equal(t, ReasonLoad, ev.Reason)
	assert.False(t, ev.Session.Authenticated())
	assert.False(t, m.Authenticated())
}
