package command

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"patchpilot/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("shared-secret")

func signed(t *testing.T, c network.RemoteCommand) network.RemoteCommand {
	t.Helper()
	out, err := network.Sign(c, secret)
	require.NoError(t, err)
	return out
}

func scriptsPolicy(t *testing.T) *Policy {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "scripts")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patch.sh"), []byte("echo patched\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "outside.sh"), []byte("echo bad\n"), 0o755))
	return &Policy{Secret: secret, ScriptsDir: dir, ExecAllowlist: []string{"uptime", "systemctl"}, AllowShell: true}
}

func rejectReason(t *testing.T, err error) string {
	t.Helper()
	var re *RejectError
	require.ErrorAs(t, err, &re)
	return re.Reason
}

func TestVerifyAcceptsSignedShell(t *testing.T) {
	p := scriptsPolicy(t)
	plan, err := p.Verify(signed(t, network.RemoteCommand{ID: "1", Kind: network.KindShell, Name: "echo hi"}))
	require.NoError(t, err)
	assert.Equal(t, "echo hi", plan.Shell)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	p := scriptsPolicy(t)
	c := signed(t, network.RemoteCommand{ID: "1", Kind: network.KindShell, Name: "echo hi"})

	sig := []byte(c.Signature)
	sig[3] ^= 0x01
	bad := c
	bad.Signature = string(sig)
	_, err := p.Verify(bad)
	assert.Contains(t, rejectReason(t, err), "signature")

	swapped := c
	swapped.Name = "rm -rf /"
	_, err = p.Verify(swapped)
	assert.Contains(t, rejectReason(t, err), "signature")

	garbage := c
	garbage.Signature = "%%%not-base64"
	_, err = p.Verify(garbage)
	assert.Contains(t, rejectReason(t, err), "signature")
}

func TestVerifyScriptContainment(t *testing.T) {
	p := scriptsPolicy(t)

	plan, err := p.Verify(signed(t, network.RemoteCommand{ID: "1", Kind: network.KindScript, Name: "patch.sh", Args: []string{"-v"}}))
	require.NoError(t, err)
	assert.Equal(t, "patch.sh", filepath.Base(plan.Path))
	assert.Equal(t, []string{"-v"}, plan.Args)

	for _, name := range []string{"../outside.sh", "../../etc/passwd", "sub/../../outside.sh", "missing.sh", "sub", ""} {
		_, err := p.Verify(signed(t, network.RemoteCommand{ID: "2", Kind: network.KindScript, Name: name}))
		assert.Error(t, err, name)
		rejectReason(t, err)
	}

	abs := filepath.Join(p.ScriptsDir, "patch.sh")
	_, err = p.Verify(signed(t, network.RemoteCommand{ID: "3", Kind: network.KindScript, Name: abs}))
	assert.Error(t, err)
}

func TestVerifyScriptSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	p := scriptsPolicy(t)
	link := filepath.Join(p.ScriptsDir, "link.sh")
	require.NoError(t, os.Symlink(filepath.Join(filepath.Dir(p.ScriptsDir), "outside.sh"), link))
	_, err := p.Verify(signed(t, network.RemoteCommand{ID: "1", Kind: network.KindScript, Name: "link.sh"}))
	assert.Contains(t, rejectReason(t, err), "escapes")
}

func TestVerifyExecAllowList(t *testing.T) {
	p := scriptsPolicy(t)

	plan, err := p.Verify(signed(t, network.RemoteCommand{ID: "1", Kind: network.KindExec, Name: "systemctl restart 'my unit'", Args: []string{"--no-block"}}))
	require.NoError(t, err)
	assert.Equal(t, "systemctl", plan.Path)
	assert.Equal(t, []string{"restart", "my unit", "--no-block"}, plan.Args)

	_, err = p.Verify(signed(t, network.RemoteCommand{ID: "2", Kind: network.KindExec, Name: "/usr/bin/systemctl stop"}))
	assert.Contains(t, rejectReason(t, err), "allow-list")

	_, err = p.Verify(signed(t, network.RemoteCommand{ID: "3", Kind: network.KindExec, Name: "curl evil"}))
	assert.Contains(t, rejectReason(t, err), "allow-list")
}

func TestVerifyUnknownKindAndDisabledShell(t *testing.T) {
	p := scriptsPolicy(t)
	_, err := p.Verify(signed(t, network.RemoteCommand{ID: "1", Kind: "python", Name: "print(1)"}))
	assert.Contains(t, rejectReason(t, err), "unknown command kind")

	p.AllowShell = false
	_, err = p.Verify(signed(t, network.RemoteCommand{ID: "2", Kind: network.KindShell, Name: "id"}))
	assert.Contains(t, rejectReason(t, err), "disabled")

	empty := &Policy{}
	_, err = empty.Verify(network.RemoteCommand{ID: "3", Kind: network.KindShell, Name: "id"})
	rejectReason(t, err)
}
