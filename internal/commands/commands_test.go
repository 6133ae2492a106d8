package commands_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"chaintask/internal/commands"
	"chaintask/internal/config"
	"chaintask/internal/exitcode"
	"chaintask/internal/service"
	"chaintask/internal/session"
	"chaintask/internal/tasksync"
	"chaintask/internal/testutil"
)

const (
	testChainID  = uint64(1337)
	testContract = "0xC000000000000000000000000000000000000001"
	testAccount  = "0xAAA0000000000000000000000000000000000001"
)

// newEnv wires a manager and synchronizer over the given fakes.
func newEnv(provider *testutil.FakeProvider, ledger *testutil.FakeLedger) *commands.Env {
	mgr := session.New(provider, ledger.Bind, session.Options{
		ExpectedChainID: testChainID,
		ContractAddress: testContract,
	}, nil)
	tasks := tasksync.New(mgr, nil)
	mgr.SetTasks(tasks)
	return &commands.Env{Provider: provider, Manager: mgr, Tasks: tasks}
}

// connectedEnv is newEnv with an established session, for commands that the
// dispatcher would normally connect first.
func connectedEnv(t *testing.T, provider *testutil.FakeProvider, ledger *testutil.FakeLedger) *commands.Env {
	t.Helper()
	env := newEnv(provider, ledger)
	if _, err := env.Manager.Connect(context.Background(), ""); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(env.Manager.Disconnect)
	return env
}

// runCommand is a helper to run a command against an Env.
func runCommand(t *testing.T, cmd commands.Command, env *commands.Env, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer
	cfg := &config.Config{
		Dir:   t.TempDir(),
		Quiet: quiet,
	}
	code = cmd.Run(context.Background(), cfg, env, args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	cmd := &commands.VersionCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "chaintask 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	cmd := &commands.HelpCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	testutil.Golden(t, "help", []byte(stdout))
}

// Tests for list command
func TestListCommand(t *testing.T) {
	ledger := testutil.NewFakeLedger()
	ledger.Seed(
		service.Task{ID: 1, Title: "Buy milk", Text: "two liters"},
		service.Task{ID: 2, Title: "Hidden", Text: "gone", IsDeleted: true},
		service.Task{ID: 3, Title: "Call bank", Text: "about the card"},
	)
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), ledger)

	cmd := &commands.ListCmd{}
	stdout, stderr, code := runCommand(t, cmd, env, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}

	expected := "   3  Call bank\n      about the card\n   1  Buy milk\n      two liters\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_Oneline(t *testing.T) {
	ledger := testutil.NewFakeLedger()
	ledger.Seed(service.Task{ID: 7, Title: "Only title", Text: "ignored"})
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), ledger)

	cmd := &commands.ListCmd{}
	cmd.SetOneline(true)
	stdout, _, code := runCommand(t, cmd, env, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "   7  Only title\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_Empty(t *testing.T) {
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), testutil.NewFakeLedger())

	cmd := &commands.ListCmd{}
	stdout, stderr, code := runCommand(t, cmd, env, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" || stderr != "" {
		t.Errorf("expected no output, got stdout=%q stderr=%q", stdout, stderr)
	}
}

func TestListCommand_SyncFailure(t *testing.T) {
	ledger := testutil.NewFakeLedger()
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), ledger)
	ledger.GetErr = errors.New("connection refused")

	cmd := &commands.ListCmd{}
	_, stderr, code := runCommand(t, cmd, env, nil, false)

	if code != exitcode.ChainError {
		t.Errorf("expected exit code %d, got %d", exitcode.ChainError, code)
	}
	if !strings.Contains(stderr, "task sync failed") {
		t.Errorf("expected sync failure message, got %q", stderr)
	}
}

// Tests for add command
func TestAddCommand(t *testing.T) {
	ledger := testutil.NewFakeLedger()
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), ledger)

	cmd := &commands.AddCmd{}
	cmd.SetText("before friday")
	stdout, stderr, code := runCommand(t, cmd, env, []string{"Pay", "rent"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d (stderr=%q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}

	raw := ledger.Raw()
	if len(raw) != 1 || raw[0].Title != "Pay rent" || raw[0].Text != "before friday" {
		t.Errorf("unexpected ledger state: %+v", raw)
	}
}

func TestAddCommand_TitleRequired(t *testing.T) {
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), testutil.NewFakeLedger())

	cmd := &commands.AddCmd{}
	_, stderr, code := runCommand(t, cmd, env, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: title required\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestAddCommand_TitleTooLong(t *testing.T) {
	ledger := testutil.NewFakeLedger()
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), ledger)

	cmd := &commands.AddCmd{}
	_, stderr, code := runCommand(t, cmd, env, []string{strings.Repeat("x", 101)}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: invalid title: longer than 100 characters\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
	if ledger.AddCalls != 0 {
		t.Errorf("validation error must not reach the ledger, got %d calls", ledger.AddCalls)
	}
}

func TestAddCommand_MissingEvent(t *testing.T) {
	ledger := testutil.NewFakeLedger()
	ledger.AddEvents = []string{}
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), ledger)

	cmd := &commands.AddCmd{}
	_, stderr, code := runCommand(t, cmd, env, []string{"Pay", "rent"}, false)

	if code != exitcode.ChainError {
		t.Errorf("expected exit code %d, got %d", exitcode.ChainError, code)
	}
	if !strings.Contains(stderr, "without expected event") {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

// Tests for rm command
func TestRmCommand(t *testing.T) {
	ledger := testutil.NewFakeLedger()
	ledger.Seed(service.Task{ID: 4, Title: "a", Text: "a"})
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), ledger)

	cmd := &commands.RmCmd{}
	stdout, stderr, code := runCommand(t, cmd, env, []string{"4"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d (stderr=%q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	if raw := ledger.Raw(); !raw[0].IsDeleted {
		t.Error("expected task soft-deleted in ledger")
	}
}

func TestRmCommand_InvalidID(t *testing.T) {
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), testutil.NewFakeLedger())

	cmd := &commands.RmCmd{}
	_, stderr, code := runCommand(t, cmd, env, []string{"abc"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: invalid task id: abc\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestRmCommand_IDRequired(t *testing.T) {
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), testutil.NewFakeLedger())

	cmd := &commands.RmCmd{}
	_, stderr, code := runCommand(t, cmd, env, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task id required\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestRmCommand_NotOwner(t *testing.T) {
	ledger := testutil.NewFakeLedger()
	ledger.DeleteErr = errors.New("execution reverted: Not the task owner")
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), ledger)

	cmd := &commands.RmCmd{}
	_, stderr, code := runCommand(t, cmd, env, []string{"1"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "not the task owner") {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestRmCommand_OtherRejection(t *testing.T) {
	ledger := testutil.NewFakeLedger()
	ledger.DeleteErr = errors.New("insufficient funds for gas")
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), ledger)

	cmd := &commands.RmCmd{}
	_, stderr, code := runCommand(t, cmd, env, []string{"1"}, false)

	if code != exitcode.ChainError {
		t.Errorf("expected exit code %d, got %d", exitcode.ChainError, code)
	}
	if !strings.Contains(stderr, "insufficient funds") {
		t.Errorf("underlying message must be preserved, got %q", stderr)
	}
}

// Tests for status command
func TestStatusCommand(t *testing.T) {
	ledger := testutil.NewFakeLedger()
	ledger.Seed(service.Task{ID: 1, Title: "a", Text: "a"})
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), ledger)

	cmd := &commands.StatusCmd{}
	stdout, _, code := runCommand(t, cmd, env, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "address: " + testAccount + "\nnetwork: 1337\ntasks:   1\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

// settingsConfig builds a Config over a temp dir with a written config.yaml.
func settingsConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Dir: t.TempDir(),
		Settings: config.Settings{
			RPCURL:          "http://localhost:8545",
			ContractAddress: testContract,
			ChainID:         testChainID,
		},
	}
	if err := cfg.SaveSettings(); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	return cfg
}

// Tests for connect command
func TestConnectCommand(t *testing.T) {
	env := newEnv(testutil.NewFakeProvider(testAccount), testutil.NewFakeLedger())
	t.Cleanup(env.Manager.Disconnect)
	cfg := settingsConfig(t)

	var outBuf, errBuf bytes.Buffer
	cmd := &commands.ConnectCmd{}
	code := cmd.Run(context.Background(), cfg, env, nil, &outBuf, &errBuf)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr=%q)", exitcode.Success, code, errBuf.String())
	}
	if outBuf.String() != "ok\n" {
		t.Errorf("expected ok, got %q", outBuf.String())
	}
	if !cfg.HasSession() {
		t.Fatal("expected session file written")
	}
	sess, err := cfg.ReadSession()
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	if sess.Address != testAccount || sess.NetworkID != testChainID {
		t.Errorf("unexpected session: %+v", sess)
	}
}

func TestConnectCommand_NoSettings(t *testing.T) {
	env := newEnv(testutil.NewFakeProvider(testAccount), testutil.NewFakeLedger())
	cfg := &config.Config{Dir: t.TempDir()}

	var outBuf, errBuf bytes.Buffer
	cmd := &commands.ConnectCmd{}
	code := cmd.Run(context.Background(), cfg, env, nil, &outBuf, &errBuf)

	if code != exitcode.SessionError {
		t.Errorf("expected exit code %d, got %d", exitcode.SessionError, code)
	}
	if !strings.Contains(errBuf.String(), "config.yaml not found") {
		t.Errorf("expected setup guidance, got %q", errBuf.String())
	}
}

func TestConnectCommand_AlreadyConnected(t *testing.T) {
	env := newEnv(testutil.NewFakeProvider(testAccount), testutil.NewFakeLedger())
	t.Cleanup(env.Manager.Disconnect)
	cfg := settingsConfig(t)
	if err := cfg.WriteSession(service.Session{Address: testAccount, NetworkID: testChainID}); err != nil {
		t.Fatalf("write session: %v", err)
	}

	var outBuf, errBuf bytes.Buffer
	cmd := &commands.ConnectCmd{}
	code := cmd.Run(context.Background(), cfg, env, nil, &outBuf, &errBuf)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr=%q)", exitcode.Success, code, errBuf.String())
	}
	if outBuf.String() != "already connected\n" {
		t.Errorf("expected already connected, got %q", outBuf.String())
	}
}

func TestConnectCommand_WrongNetwork(t *testing.T) {
	provider := testutil.NewFakeProvider(testAccount)
	provider.SetChain(1)
	env := newEnv(provider, testutil.NewFakeLedger())
	cfg := settingsConfig(t)

	var outBuf, errBuf bytes.Buffer
	cmd := &commands.ConnectCmd{}
	code := cmd.Run(context.Background(), cfg, env, nil, &outBuf, &errBuf)

	if code != exitcode.SessionError {
		t.Errorf("expected exit code %d, got %d", exitcode.SessionError, code)
	}
	if !strings.Contains(errBuf.String(), "wrong network") {
		t.Errorf("unexpected stderr: %q", errBuf.String())
	}
	if cfg.HasSession() {
		t.Error("no session must be persisted on wrong network")
	}
}

// Tests for disconnect command
func TestDisconnectCommand(t *testing.T) {
	cfg := settingsConfig(t)
	if err := cfg.WriteSession(service.Session{Address: testAccount, NetworkID: testChainID}); err != nil {
		t.Fatalf("write session: %v", err)
	}

	var outBuf, errBuf bytes.Buffer
	cmd := &commands.DisconnectCmd{}
	code := cmd.Run(context.Background(), cfg, nil, nil, &outBuf, &errBuf)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if outBuf.String() != "ok\n" {
		t.Errorf("expected ok, got %q", outBuf.String())
	}
	if cfg.HasSession() {
		t.Error("expected session file removed")
	}
}

func TestDisconnectCommand_NotConnected(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir()}

	var outBuf, errBuf bytes.Buffer
	cmd := &commands.DisconnectCmd{}
	code := cmd.Run(context.Background(), cfg, nil, nil, &outBuf, &errBuf)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if outBuf.String() != "not connected\n" {
		t.Errorf("expected not connected, got %q", outBuf.String())
	}
}

// Quiet flag
func TestQuietSuppressesOK(t *testing.T) {
	ledger := testutil.NewFakeLedger()
	env := connectedEnv(t, testutil.NewFakeProvider(testAccount), ledger)

	cmd := &commands.AddCmd{}
	stdout, _, code := runCommand(t, cmd, env, []string{"Quiet", "one"}, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout in quiet mode, got %q", stdout)
	}
}
