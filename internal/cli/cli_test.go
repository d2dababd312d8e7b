package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/quicklist/internal/config"
	"github.com/ytakahashi/quicklist/internal/gateway"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/remote"
)

type cliHarness struct {
	mem *remote.Memory
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	orig := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() { stdinIsTerminal = orig })

	mem := remote.NewMemory()
	mem.AddUser("ramu@example.com", "secret", "Ramu")
	return &cliHarness{mem: mem}
}

func (h *cliHarness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	a := &App{open: func(ctx context.Context, cfg *config.Config, log logging.Logger) (*Backend, error) {
		return &Backend{Store: h.mem, Auth: h.mem.Auth}, nil
	}}
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--backend", "memory", "--env-file", "testdata/none.env"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *cliHarness) login(t *testing.T) {
	t.Helper()
	out, err := h.run(t, "secret\n", "login", "ramu@example.com")
	require.NoError(t, err)
	require.Contains(t, out, "ログインしました: らむ")
}

func TestLogin_ReadsPasswordFromStdin(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "ログアウトしました")

	_, err = h.run(t, "", "list")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "nope\n", "login", "ramu@example.com")

	require.Error(t, err)
	assert.Equal(t, "ログイン失敗: invalid login credentials", err.Error())
}

func TestCommandsRequireLogin(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{{"list"}, {"add", "牛乳"}, {"toggle", "x"}, {"rm", "x"}} {
		_, err := h.run(t, "", args...)
		assert.ErrorIs(t, err, errNotLoggedIn, args)
	}
}

func TestAddAndList(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "", "add", "豆腐", "--memo", "絹")
	require.NoError(t, err)
	assert.Contains(t, out, "「豆腐」を追加しました")

	out, err = h.run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "買うもの (1)")
	assert.Contains(t, out, "豆腐（絹）")
	assert.Contains(t, out, "らむ")
}

func TestList_JSON(t *testing.T) {
	h := newHarness(t)
	h.mem.Seed(models.ShoppingItem{ID: "eggs", Text: "卵", IsCompleted: true})
	h.login(t)

	out, err := h.run(t, "", "list", "--json")
	require.NoError(t, err)

	var got map[string][]models.ShoppingItem
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Empty(t, got["active"])
	require.Len(t, got["completed"], 1)
	assert.Equal(t, "eggs", got["completed"][0].ID)
}

func TestPreset_AlreadyListed(t *testing.T) {
	h := newHarness(t)
	h.mem.Seed(models.ShoppingItem{ID: "milk", Text: "牛乳"})
	h.login(t)

	_, err := h.run(t, "", "preset", "牛乳")

	require.Error(t, err)
	assert.Equal(t, "「牛乳」は既にリストにあります", err.Error())
	var listed *gateway.AlreadyListedError
	assert.True(t, errors.As(err, &listed))
}

func TestToggle_ByText(t *testing.T) {
	h := newHarness(t)
	h.mem.Seed(models.ShoppingItem{ID: "milk", Text: "牛乳"})
	h.login(t)

	out, err := h.run(t, "", "toggle", "牛乳")
	require.NoError(t, err)
	assert.Contains(t, out, "購入済みにしました")

	item, _ := h.mem.Item("milk")
	assert.True(t, item.IsCompleted)
	assert.NotNil(t, item.CompletedAt)
}

func TestToggle_UnknownItem(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	_, err := h.run(t, "", "toggle", "存在しない")
	assert.ErrorIs(t, err, gateway.ErrItemNotFound)
}

func TestMemo_Replace(t *testing.T) {
	h := newHarness(t)
	h.mem.Seed(models.ShoppingItem{ID: "milk", Text: "牛乳", Memo: "低脂肪"})
	h.login(t)

	_, err := h.run(t, "", "memo", "milk", "無調整")
	require.NoError(t, err)

	item, _ := h.mem.Item("milk")
	assert.Equal(t, "無調整", item.Memo)
}

func TestRm_AsksUnlessYes(t *testing.T) {
	h := newHarness(t)
	h.mem.Seed(models.ShoppingItem{ID: "milk", Text: "牛乳"})
	h.login(t)

	out, err := h.run(t, "n\n", "rm", "milk")
	require.NoError(t, err)
	assert.Contains(t, out, "削除をキャンセルしました")
	assert.Empty(t, h.mem.Requests())

	out, err = h.run(t, "", "rm", "milk", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "「牛乳」を削除しました")
	assert.Equal(t, []string{"delete milk"}, h.mem.Requests())
}

func TestMutationFailureUsesNotice(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.mem.FailNext("insert", errors.New("quota exceeded"))

	_, err := h.run(t, "", "add", "牛乳")

	require.Error(t, err)
	assert.Equal(t, "追加エラー: quota exceeded", err.Error())
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	a := &App{Backend: "MEMORY", Port: "9999", SessionDB: ":memory:", EnvFile: "testdata/none.env"}
	require.NoError(t, a.loadConfig())
	assert.Equal(t, config.BackendMemory, a.cfg.Backend)
	assert.Equal(t, "9999", a.cfg.Port)
	assert.Equal(t, ":memory:", a.cfg.SessionDB)
}

func TestLoadConfig_UnknownBackend(t *testing.T) {
	a := &App{Backend: "redis", EnvFile: "testdata/none.env"}
	assert.Error(t, a.loadConfig())
}

func TestOpenBackend_MemoryRegistersMembers(t *testing.T) {
	cfg := config.Defaults()
	cfg.Backend = config.BackendMemory
	cfg.DemoPassword = "pw"

	b, err := OpenBackend(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer b.Close()

	s, err := b.Auth("k").SignInWithPassword(context.Background(), "shinto@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "shinto@example.com", s.User.Email)
}
