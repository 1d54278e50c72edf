package extension

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"

	"github.com/corymhall/editorbridge/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	mu            sync.Mutex
	saveErr       error
	saves         int
	messages      []string
	commands      map[string]CommandFunc
	subscriptions []Disposable
	registerErr   error
}

func newFakeHost() *fakeHost {
	return &fakeHost{commands: map[string]CommandFunc{}}
}

func (h *fakeHost) SaveAll(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saves++
	return h.saveErr
}

func (h *fakeHost) AllDiagnostics() []bridge.FileDiagnostics { return nil }

func (h *fakeHost) RegisterCommand(name string, fn CommandFunc) (Disposable, error) {
	if h.registerErr != nil {
		return nil, h.registerErr
	}
	h.commands[name] = fn
	return DisposableFunc(func() error {
		delete(h.commands, name)
		return nil
	}), nil
}

func (h *fakeHost) ShowInformationMessage(ctx context.Context, message string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
	return nil
}

func (h *fakeHost) Subscribe(d Disposable) {
	h.subscriptions = append(h.subscriptions, d)
}

func (h *fakeHost) dispose(t *testing.T) {
	for i := len(h.subscriptions) - 1; i >= 0; i-- {
		require.NoError(t, h.subscriptions[i].Dispose())
	}
	h.subscriptions = nil
}

func newExtension() *Extension {
	return New(bridge.Options{
		Addr:   "127.0.0.1:0",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestActivateBindsAndRegisters(t *testing.T) {
	host := newFakeHost()
	ext := newExtension()
	require.NoError(t, ext.Activate(context.Background(), host))
	defer ext.Deactivate()

	require.NotNil(t, ext.Server())
	require.NotNil(t, ext.Server().Addr())
	assert.Contains(t, host.commands, SaveAllCommand)
	assert.Len(t, host.subscriptions, 2)

	resp, err := http.Post("http://"+ext.Server().Addr().String()+"/saveAll", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, host.saves)
	assert.Empty(t, host.messages, "the HTTP route does not notify the user")
}

func TestSaveAllCommand(t *testing.T) {
	host := newFakeHost()
	ext := newExtension()
	require.NoError(t, ext.Activate(context.Background(), host))
	defer ext.Deactivate()

	require.NoError(t, host.commands[SaveAllCommand](context.Background()))
	assert.Equal(t, 1, host.saves)
	assert.Equal(t, []string{"Saved all files."}, host.messages)
}

func TestSaveAllCommandFailure(t *testing.T) {
	host := newFakeHost()
	host.saveErr = errors.New("disk full")
	ext := newExtension()
	require.NoError(t, ext.Activate(context.Background(), host))
	defer ext.Deactivate()

	err := host.commands[SaveAllCommand](context.Background())
	assert.EqualError(t, err, "disk full")
	assert.Empty(t, host.messages)
}

func TestDisposeThenDeactivate(t *testing.T) {
	host := newFakeHost()
	ext := newExtension()
	require.NoError(t, ext.Activate(context.Background(), host))
	addr := ext.Server().Addr().String()

	host.dispose(t)
	assert.NoError(t, ext.Deactivate())
	assert.NotContains(t, host.commands, SaveAllCommand)

	_, err := net.Dial("tcp", addr)
	assert.Error(t, err)
}

func TestDeactivateThenDispose(t *testing.T) {
	host := newFakeHost()
	ext := newExtension()
	require.NoError(t, ext.Activate(context.Background(), host))
	addr := ext.Server().Addr().String()

	assert.NoError(t, ext.Deactivate())
	host.dispose(t)

	_, err := net.Dial("tcp", addr)
	assert.Error(t, err)
}

func TestDeactivateBeforeActivate(t *testing.T) {
	assert.NoError(t, newExtension().Deactivate())
}

func TestActivateTwice(t *testing.T) {
	host := newFakeHost()
	ext := newExtension()
	require.NoError(t, ext.Activate(context.Background(), host))
	defer ext.Deactivate()
	assert.Error(t, ext.Activate(context.Background(), host))
}

func TestActivateRegisterFailureClosesListener(t *testing.T) {
	host := newFakeHost()
	host.registerErr = errors.New("command exists")
	ext := newExtension()
	err := ext.Activate(context.Background(), host)
	require.Error(t, err)
	assert.Nil(t, ext.Server())
	assert.Empty(t, host.subscriptions)
}
