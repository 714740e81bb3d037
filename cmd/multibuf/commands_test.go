package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"cuelang.org/go/cue"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/epithet-ssh/multibuf/pkg/config"
	"github.com/epithet-ssh/multibuf/pkg/multibuf"
	"github.com/epithet-ssh/multibuf/pkg/packclient"
	"github.com/epithet-ssh/multibuf/pkg/packserver"
	"github.com/lmittmann/tint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(tint.NewHandler(t.Output(), &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
}

func emptyConfig(t *testing.T) cue.Value {
	t.Helper()
	val, err := config.LoadAndUnifyPaths(nil)
	require.NoError(t, err)
	return val
}

// captureStdout redirects command output for the duration of the test.
func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func writeInputs(t *testing.T, dir string, contents ...string) []string {
	t.Helper()
	var paths []string
	for i, c := range contents {
		p := filepath.Join(dir, "in"+string(rune('a'+i)))
		require.NoError(t, os.WriteFile(p, []byte(c), 0644))
		paths = append(paths, p)
	}
	return paths
}

func TestPackUnpackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logger := testLogger(t)
	files := writeInputs(t, dir, "hello", "", "world!")
	packed := filepath.Join(dir, "out.mbuf")

	pack := &PackCLI{Output: packed, Files: files}
	require.NoError(t, pack.Run(logger, emptyConfig(t), remote{}))

	data, err := os.ReadFile(packed)
	require.NoError(t, err)
	assert.Equal(t, []byte("5,0,6\x00helloworld!"), data)

	outDir := filepath.Join(dir, "parts")
	unpack := &UnpackCLI{Source: packed, Dir: outDir}
	require.NoError(t, unpack.Run(logger, emptyConfig(t), remote{}))

	for i, want := range []string{"hello", "", "world!"} {
		got, err := os.ReadFile(filepath.Join(outDir, "part-"+string(rune('0'+i))+".bin"))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestPack_NoFiles(t *testing.T) {
	dir := t.TempDir()
	packed := filepath.Join(dir, "empty.mbuf")

	pack := &PackCLI{Output: packed}
	require.NoError(t, pack.Run(testLogger(t), emptyConfig(t), remote{}))

	data, err := os.ReadFile(packed)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, data)
}

func TestPack_MissingInput(t *testing.T) {
	dir := t.TempDir()
	pack := &PackCLI{Output: filepath.Join(dir, "x.mbuf"), Files: []string{filepath.Join(dir, "nope")}}
	require.Error(t, pack.Run(testLogger(t), emptyConfig(t), remote{}))
}

func TestPack_StdinTwice(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "x.mbuf")

	pack := &PackCLI{Output: out, Files: []string{"-", filepath.Join(dir, "a"), "-"}}
	err := pack.Run(testLogger(t), emptyConfig(t), remote{})
	assert.ErrorContains(t, err, "more than once")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCheckStdinOnce(t *testing.T) {
	assert.NoError(t, checkStdinOnce(nil))
	assert.NoError(t, checkStdinOnce([]string{"a", "-", "b"}))
	assert.Error(t, checkStdinOnce([]string{"-", "-"}))
}

func TestUnpack_Strict(t *testing.T) {
	dir := t.TempDir()
	packed := filepath.Join(dir, "padded.mbuf")
	require.NoError(t, os.WriteFile(packed, []byte("03\x00abc"), 0644))

	unpack := &UnpackCLI{Source: packed, Dir: dir, Strict: true}
	err := unpack.Run(testLogger(t), emptyConfig(t), remote{})
	require.Error(t, err)
	assert.ErrorIs(t, err, multibuf.ErrInvalidLengthToken)

	unpack.Strict = false
	require.NoError(t, unpack.Run(testLogger(t), emptyConfig(t), remote{}))
	got, err := os.ReadFile(filepath.Join(dir, "part-0.bin"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestUnpack_Truncated(t *testing.T) {
	dir := t.TempDir()
	packed := filepath.Join(dir, "short.mbuf")
	require.NoError(t, os.WriteFile(packed, []byte("10\x00abc"), 0644))

	unpack := &UnpackCLI{Source: packed, Dir: dir}
	err := unpack.Run(testLogger(t), emptyConfig(t), remote{})
	assert.ErrorIs(t, err, multibuf.ErrTruncatedPayload)
}

func TestUnpack_NameTemplate(t *testing.T) {
	dir := t.TempDir()
	packed := filepath.Join(dir, "in.mbuf")
	require.NoError(t, os.WriteFile(packed, multibuf.Pack([]byte("ab"), []byte("cde")), 0644))

	outDir := filepath.Join(dir, "out")
	unpack := &UnpackCLI{Source: packed, Dir: outDir, NameTemplate: "{{index}}-{{size}}.dat"}
	require.NoError(t, unpack.Run(testLogger(t), emptyConfig(t), remote{}))

	got, err := os.ReadFile(filepath.Join(outDir, "1-3.dat"))
	require.NoError(t, err)
	assert.Equal(t, "cde", string(got))
}

func TestOutputNames(t *testing.T) {
	buffers := [][]byte{[]byte("a"), []byte("bb")}

	names, err := outputNames(defaultNameTemplate, buffers)
	require.NoError(t, err)
	assert.Equal(t, []string{"part-0.bin", "part-1.bin"}, names)

	_, err = outputNames("same.bin", buffers)
	assert.ErrorContains(t, err, "both buffer 0 and 1")

	_, err = outputNames("../{{index}}", buffers)
	assert.ErrorContains(t, err, "invalid file name")

	_, err = outputNames("{{#index}", buffers)
	assert.ErrorContains(t, err, "invalid name template")
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	packed := filepath.Join(dir, "in.mbuf")
	require.NoError(t, os.WriteFile(packed, []byte("2,3\x00abcd"), 0644))

	out := captureStdout(t)
	inspect := &InspectCLI{Source: packed, JSON: true}
	require.NoError(t, inspect.Run(testLogger(t), emptyConfig(t), remote{}))

	var resp packserver.InspectResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, packserver.InspectResponse{
		Count:       2,
		HeaderSize:  4,
		PayloadSize: 5,
		TotalSize:   8,
		Complete:    false,
		Lengths:     []int{2, 3},
	}, resp)
}

func TestInspect_Text(t *testing.T) {
	dir := t.TempDir()
	packed := filepath.Join(dir, "in.mbuf")
	require.NoError(t, os.WriteFile(packed, multibuf.Pack([]byte("x"), []byte("yz")), 0644))

	out := captureStdout(t)
	inspect := &InspectCLI{Source: packed}
	require.NoError(t, inspect.Run(testLogger(t), emptyConfig(t), remote{}))

	assert.Contains(t, out.String(), "Buffers:      2\n")
	assert.Contains(t, out.String(), "Lengths:      1,2\n")
	assert.Contains(t, out.String(), "Complete:     true\n")
}

func TestInspect_HugeLengths(t *testing.T) {
	dir := t.TempDir()
	packed := filepath.Join(dir, "huge.mbuf")
	huge := strconv.Itoa(math.MaxInt)
	require.NoError(t, os.WriteFile(packed, []byte(huge+","+huge+"\x00x"), 0644))

	out := captureStdout(t)
	inspect := &InspectCLI{Source: packed, JSON: true}
	require.NoError(t, inspect.Run(testLogger(t), emptyConfig(t), remote{}))

	var resp packserver.InspectResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.False(t, resp.Complete)
	assert.Equal(t, math.MaxInt, resp.PayloadSize)
}

func TestInspect_Malformed(t *testing.T) {
	dir := t.TempDir()
	packed := filepath.Join(dir, "bad.mbuf")
	require.NoError(t, os.WriteFile(packed, []byte("1,2"), 0644))

	inspect := &InspectCLI{Source: packed}
	err := inspect.Run(testLogger(t), emptyConfig(t), remote{})
	assert.ErrorIs(t, err, multibuf.ErrMalformedHeader)
}

func startRemote(t *testing.T) remote {
	t.Helper()
	server := httptest.NewServer(packserver.New(packserver.Config{Logger: testLogger(t)}))
	t.Cleanup(server.Close)
	return remote{client: packclient.New(server.URL, packclient.WithHTTPClient(server.Client()))}
}

func TestRemoteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logger := testLogger(t)
	rc := startRemote(t)
	files := writeInputs(t, dir, "abc", "de")
	packed := filepath.Join(dir, "remote.mbuf")

	pack := &PackCLI{Output: packed, Files: files}
	require.NoError(t, pack.Run(logger, emptyConfig(t), rc))

	data, err := os.ReadFile(packed)
	require.NoError(t, err)
	assert.Equal(t, []byte("3,2\x00abcde"), data)

	out := captureStdout(t)
	inspect := &InspectCLI{Source: packed, JSON: true}
	require.NoError(t, inspect.Run(logger, emptyConfig(t), rc))
	var resp packserver.InspectResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, []int{3, 2}, resp.Lengths)

	outDir := filepath.Join(dir, "parts")
	unpack := &UnpackCLI{Source: packed, Dir: outDir}
	require.NoError(t, unpack.Run(logger, emptyConfig(t), rc))
	got, err := os.ReadFile(filepath.Join(outDir, "part-1.bin"))
	require.NoError(t, err)
	assert.Equal(t, "de", string(got))
}

func TestRemoteUnpack_Malformed(t *testing.T) {
	dir := t.TempDir()
	packed := filepath.Join(dir, "bad.mbuf")
	require.NoError(t, os.WriteFile(packed, []byte("9\x00a"), 0644))

	unpack := &UnpackCLI{Source: packed, Dir: dir}
	err := unpack.Run(testLogger(t), emptyConfig(t), startRemote(t))
	var malformed *packclient.MalformedInputError
	assert.True(t, errors.As(err, &malformed), "got %v", err)
}

type fakeSSM struct {
	params map[string]string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	v, ok := f.params[aws.ToString(in.Name)]
	if !ok {
		return nil, &types.ParameterNotFound{Message: aws.String("not found")}
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(v)}}, nil
}

func TestLoadParameterConfig(t *testing.T) {
	client := &fakeSSM{params: map[string]string{
		"/multibuf/config": "serve:\n  max_body_bytes: 512\nunpack:\n  strict: true\n",
	}}

	unified, err := loadParameterConfig(context.Background(), client, "/multibuf/config", emptyConfig(t))
	require.NoError(t, err)

	serve, err := loadServeSettings(unified, "", 0, "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(512), serve.MaxBodyBytes)

	unpack, err := loadUnpackSettings(unified, false, 0, "")
	require.NoError(t, err)
	assert.True(t, unpack.Strict)
}

func TestLoadParameterConfig_Missing(t *testing.T) {
	client := &fakeSSM{params: map[string]string{}}
	_, err := loadParameterConfig(context.Background(), client, "/missing", emptyConfig(t))

	var notFound *types.ParameterNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, 0, true)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	newLogger(&buf, 2, true).Debug("debug line")
	assert.Contains(t, buf.String(), "debug line")
}
