// Package containerdriver runs a language parser as a one-shot Docker
// container against a read-only source mount and exfiltrates its JSON
// output file back to the host.
package containerdriver

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"

	"github.com/codegraph-dev/indexer/pkg/errs"
)

// containerOutputPath is the fixed in-container path the parser writes its
// JSON result to, per the parser contract.
const containerOutputPath = "/tmp/parser-output.json"

// imagePullTimeout bounds how long a miss-triggered image pull may run.
const imagePullTimeout = 5 * time.Minute

// Driver runs parser images as one-shot containers via the Docker Engine API.
type Driver struct {
	cli *client.Client

	imageInspectHits   atomic.Int64
	imageInspectMisses atomic.Int64
}

// New constructs a Driver from the ambient Docker host configuration
// (DOCKER_HOST, TLS env vars, or the default local socket).
func New() (*Driver, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errs.Wrap(errs.KindContainer, "containerdriver.New", "DOCKER_CLIENT_INIT", err, "initialize docker client")
	}

	return &Driver{cli: cli}, nil
}

// Close releases the underlying Docker API client.
func (d *Driver) Close() error {
	return d.cli.Close()
}

// CacheHits returns the number of image precondition checks that found the
// parser image already present locally, satisfying observability.CacheStatsProvider.
func (d *Driver) CacheHits() int64 {
	return d.imageInspectHits.Load()
}

// CacheMisses returns the number of image precondition checks that required
// a pull, satisfying observability.CacheStatsProvider.
func (d *Driver) CacheMisses() int64 {
	return d.imageInspectMisses.Load()
}

// RunRequest is one container parser invocation.
type RunRequest struct {
	Image          string
	CodebaseName   string
	SourcePath     string // host directory mounted read-only at /workspace
	OutputPath     string // host path the exfiltrated JSON is copied to
	RuntimeEnvVar  string // e.g. "JAVA_OPTS"; empty disables runtime-option env injection
	RuntimeOptions []string
	Timeout        time.Duration
}

// Run executes one parser container end to end: ensure the image, create
// and start a named container, wait for completion or forcefully kill it on
// timeout, exfiltrate the JSON output, and always remove the container.
func (d *Driver) Run(ctx context.Context, req RunRequest) (map[string]any, error) {
	if err := d.ensurePreconditions(ctx, req); err != nil {
		return nil, err
	}

	containerName := fmt.Sprintf("parser-%s-%d", sanitizeName(req.CodebaseName), time.Now().UnixNano())

	containerID, err := d.createContainer(ctx, req, containerName)
	if err != nil {
		return nil, err
	}

	defer d.removeContainer(context.WithoutCancel(ctx), containerID)

	if err := d.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, errs.Wrap(errs.KindContainer, "containerdriver.Run", "CONTAINER_START_FAILED", err,
			"start container %s", containerName)
	}

	if err := d.awaitCompletion(ctx, containerID, req.Timeout); err != nil {
		return nil, err
	}

	return d.exfiltrateOutput(ctx, containerID, req.OutputPath)
}

func (d *Driver) ensurePreconditions(ctx context.Context, req RunRequest) error {
	if _, err := os.Stat(req.SourcePath); err != nil {
		return errs.Wrap(errs.KindValidation, "containerdriver.Run", "SOURCE_PATH_MISSING", err,
			"source directory %s does not exist", req.SourcePath)
	}

	outputDir := filepath.Dir(req.OutputPath)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return errs.Wrap(errs.KindValidation, "containerdriver.Run", "OUTPUT_DIR_MISSING", err,
			"output directory %s does not exist", outputDir)
	}

	if err := os.Chmod(outputDir, 0o777); err != nil { //nolint:gosec // best-effort workaround, warn-and-continue.
		// chmod failures are tolerated: a uid/gid-mapped container user is
		// the real fix, tracked separately.
		_ = err
	}

	return d.ensureImage(ctx, req.Image)
}

func (d *Driver) ensureImage(ctx context.Context, imageRef string) error {
	_, err := d.cli.ImageInspect(ctx, imageRef)
	if err == nil {
		d.imageInspectHits.Add(1)

		return nil
	}

	d.imageInspectMisses.Add(1)

	pullCtx, cancel := context.WithTimeout(ctx, imagePullTimeout)
	defer cancel()

	reader, err := d.cli.ImagePull(pullCtx, imageRef, image.PullOptions{})
	if err != nil {
		return errs.Wrap(errs.KindContainer, "containerdriver.ensureImage", "IMAGE_UNAVAILABLE", err,
			"pull image %s", imageRef)
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return errs.Wrap(errs.KindContainer, "containerdriver.ensureImage", "IMAGE_UNAVAILABLE", err,
			"pull image %s", imageRef)
	}

	return nil
}

func (d *Driver) createContainer(ctx context.Context, req RunRequest, name string) (string, error) {
	env := []string{}
	if req.RuntimeEnvVar != "" {
		env = append(env, req.RuntimeEnvVar+"="+strings.Join(req.RuntimeOptions, " "))
	}

	cfg := &container.Config{
		Image: req.Image,
		Env:   env,
		Cmd:   []string{req.CodebaseName, "/workspace", containerOutputPath},
	}

	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:     mount.TypeBind,
				Source:   req.SourcePath,
				Target:   "/workspace",
				ReadOnly: true,
			},
		},
	}

	created, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", errs.Wrap(errs.KindContainer, "containerdriver.Run", "CONTAINER_CREATE_FAILED", err,
			"create container %s", name)
	}

	return created.ID, nil
}

func (d *Driver) awaitCompletion(ctx context.Context, containerID string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	statusCh, errCh := d.cli.ContainerWait(waitCtx, containerID, container.WaitConditionNotRunning)

	select {
	case err := <-errCh:
		if waitCtx.Err() != nil {
			d.killContainer(context.WithoutCancel(ctx), containerID)

			return errs.Wrap(errs.KindTimeout, "containerdriver.Run", "CONTAINER_TIMEOUT", waitCtx.Err(),
				"container %s exceeded timeout", containerID)
		}

		return errs.Wrap(errs.KindContainer, "containerdriver.Run", "CONTAINER_WAIT_FAILED", err,
			"wait for container %s", containerID)
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return errs.New(errs.KindContainer, "containerdriver.Run", "CONTAINER_NONZERO_EXIT",
				fmt.Sprintf("container %s exited with status %d", containerID, status.StatusCode), nil)
		}

		return nil
	}
}

func (d *Driver) killContainer(ctx context.Context, containerID string) {
	_ = d.cli.ContainerKill(ctx, containerID, "SIGKILL")
}

func (d *Driver) removeContainer(ctx context.Context, containerID string) {
	_ = d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

func (d *Driver) exfiltrateOutput(ctx context.Context, containerID, outputPath string) (map[string]any, error) {
	reader, _, err := d.cli.CopyFromContainer(ctx, containerID, containerOutputPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindContainer, "containerdriver.Run", "OUTPUT_COPY_FAILED", err,
			"copy parser output from container %s", containerID)
	}
	defer reader.Close()

	data, err := extractSingleFileFromTar(reader)
	if err != nil {
		return nil, errs.Wrap(errs.KindContainer, "containerdriver.Run", "OUTPUT_COPY_FAILED", err,
			"extract parser output tar from container %s", containerID)
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil { //nolint:gosec // parser output is not sensitive.
		return nil, errs.Wrap(errs.KindContainer, "containerdriver.Run", "OUTPUT_COPY_FAILED", err,
			"write parser output to %s", outputPath)
	}

	defer os.Remove(outputPath)

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errs.Wrap(errs.KindParse, "containerdriver.Run", "OUTPUT_PARSE_FAILED", err,
			"parse output from container %s as JSON", containerID)
	}

	return result, nil
}

func extractSingleFileFromTar(r io.Reader) ([]byte, error) {
	tr := tar.NewReader(r)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("tar stream contained no regular file")
		}

		if err != nil {
			return nil, err
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return nil, err
		}

		return buf.Bytes(), nil
	}
}

func sanitizeName(name string) string {
	replacer := strings.NewReplacer("/", "-", ":", "-", " ", "-")

	return replacer.Replace(name)
}
