package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bosh-bootstrap/internal/config"
	"github.com/oshokin/bosh-bootstrap/internal/progress"
	"github.com/oshokin/bosh-bootstrap/internal/remote"
	"github.com/oshokin/bosh-bootstrap/internal/remote/remotetest"
	"github.com/oshokin/bosh-bootstrap/internal/ui"
)

const (
	installerLine = "/opt/vagrant-bosh/assets/provisioner -configPath=/opt/vagrant-bosh/config.json" +
		" 2> >(tee /tmp/provisioner.log >&2)"
)

var (
	errTestResolve = errors.New("test resolve error")
	errTestSession = errors.New("test session error")
)

// upload is one recorded uploader call.
type upload struct {
	text string
	dst  string
}

// recordingUploader remembers uploads in order.
type recordingUploader struct {
	synced  []string
	uploads []upload
	steps   []string
}

func (u *recordingUploader) Sync(_ context.Context, dst string) error {
	u.synced = append(u.synced, dst)
	u.steps = append(u.steps, "sync "+dst)

	return nil
}

func (u *recordingUploader) UploadText(_ context.Context, text, dst string) error {
	u.uploads = append(u.uploads, upload{text: text, dst: dst})
	u.steps = append(u.steps, "upload "+dst)

	return nil
}

// stubResolver returns a fixed manifest.
type stubResolver struct {
	resolved string
	err      error
	inputs   []string
}

func (r *stubResolver) Resolve(_ context.Context, text string) (string, error) {
	r.inputs = append(r.inputs, text)

	return r.resolved, r.err
}

// recordingEvents collects decoded installer events.
type recordingEvents struct {
	events  []progress.Event
	invalid []string
	debug   []string
}

func (r *recordingEvents) Event(_ context.Context, ev progress.Event) { r.events = append(r.events, ev) }
func (r *recordingEvents) Invalid(_ context.Context, line string)     { r.invalid = append(r.invalid, line) }
func (r *recordingEvents) Debug(_ context.Context, data string)       { r.debug = append(r.debug, data) }

type fixture struct {
	bootstrapper *Bootstrapper
	executor     *remotetest.Executor
	uploader     *recordingUploader
	resolver     *stubResolver
	events       *recordingEvents
	out          *bytes.Buffer
}

func newFixture() *fixture {
	f := &fixture{
		executor: remotetest.NewExecutor(),
		uploader: new(recordingUploader),
		resolver: &stubResolver{resolved: "releases: []\n"},
		events:   new(recordingEvents),
		out:      new(bytes.Buffer),
	}

	cfg := config.BootstrapConfig{
		Layout:              config.NewLayout("/opt/vagrant-bosh"),
		LocalAssetsDir:      "/src/assets",
		AgentInfrastructure: "warden",
		AgentPlatform:       "ubuntu",
	}

	sink := ui.NewConsole(f.out)
	comm := remote.NewCommunicator(f.executor, new(remotetest.Transferer), sink)

	f.bootstrapper = New(cfg, comm, f.uploader, f.resolver, f.events, sink)

	return f
}

func decodeDocument(t *testing.T, text string) map[string]any {
	t.Helper()

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &doc))

	return doc
}

// TestBootstrapWithManifest runs every step in order and decodes installer progress.
func TestBootstrapWithManifest(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.executor.On("/opt/vagrant-bosh/assets/provisioner", remotetest.Reply{
		Output: []remote.Chunk{
			{Channel: remote.Stdout, Data: []byte(`{"state":"started","stage":"Deploy","task":"t1"}` + "\n" + `{"state":"fin`)},
			{Channel: remote.Other, Data: []byte("compiling\n")},
			{Channel: remote.Stdout, Data: []byte(`ished","stage":"Deploy","task":"t1"}` + "\nnot json\n")},
		},
	})

	require.NoError(t, f.bootstrapper.Bootstrap(context.Background(), "name: dummy\n"))

	require.Equal(t, []string{
		"sync /opt/vagrant-bosh/assets",
		"upload /opt/vagrant-bosh/manifest.yml",
		"upload /opt/vagrant-bosh/config.json",
	}, f.uploader.steps)
	require.Equal(t, []string{"name: dummy\n"}, f.resolver.inputs)
	require.Equal(t, "releases: []\n", f.uploader.uploads[0].text)

	require.Equal(t, []string{
		"chmod +x /opt/vagrant-bosh/assets/provisioner",
		installerLine,
	}, f.executor.Lines())
	require.True(t, f.executor.Commands[1].Privileged)

	require.Equal(t, []progress.Event{
		{State: progress.Started, Stage: "deploy", Task: "t1"},
		{State: progress.Finished, Stage: "deploy", Task: "t1"},
	}, f.events.events)
	require.Equal(t, []string{"not json"}, f.events.invalid)
	require.Equal(t, []string{"compiling\n"}, f.events.debug)

	doc := decodeDocument(t, f.uploader.uploads[1].text)
	require.Equal(t, map[string]any{"manifest_path": "/opt/vagrant-bosh/manifest.yml"}, doc["deployment_provisioner"])
}

// TestBootstrapWithoutManifest skips resolution and leaves the manifest path null.
func TestBootstrapWithoutManifest(t *testing.T) {
	t.Parallel()

	f := newFixture()

	require.NoError(t, f.bootstrapper.Bootstrap(context.Background(), ""))

	require.Empty(t, f.resolver.inputs)
	require.Equal(t, []string{
		"sync /opt/vagrant-bosh/assets",
		"upload /opt/vagrant-bosh/config.json",
	}, f.uploader.steps)

	doc := decodeDocument(t, f.uploader.uploads[0].text)
	require.Equal(t, map[string]any{"manifest_path": nil}, doc["deployment_provisioner"])
}

// TestBootstrapResolveFailure aborts before anything else is uploaded or run.
func TestBootstrapResolveFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.resolver.err = errTestResolve

	err := f.bootstrapper.Bootstrap(context.Background(), "name: dummy\n")
	require.ErrorIs(t, err, errTestResolve)
	require.Equal(t, []string{"sync /opt/vagrant-bosh/assets"}, f.uploader.steps)
	require.Empty(t, f.executor.Lines())
}

// TestBootstrapChmodFailure does not run an installer that could not be made executable.
func TestBootstrapChmodFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.executor.On("chmod", remotetest.Reply{Result: remote.Result{ExitStatus: 1}})

	err := f.bootstrapper.Bootstrap(context.Background(), "")
	require.ErrorIs(t, err, remote.ErrCommandFailed)
	require.Len(t, f.executor.Lines(), 1)
}

// TestBootstrapInstallerExitStatus only warns about a failed installer.
func TestBootstrapInstallerExitStatus(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.executor.On("/opt/vagrant-bosh/assets/provisioner", remotetest.Reply{
		Result: remote.Result{ExitStatus: 1},
	})

	require.NoError(t, f.bootstrapper.Bootstrap(context.Background(), ""))
	require.Contains(t, f.out.String(), "WARNING: Installer exited with status 1")
}

// TestBootstrapInstallerSessionFailure propagates transport errors.
func TestBootstrapInstallerSessionFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.executor.On("/opt/vagrant-bosh/assets/provisioner", remotetest.Reply{Err: errTestSession})

	err := f.bootstrapper.Bootstrap(context.Background(), "")
	require.ErrorIs(t, err, errTestSession)
}
