package k8sexec

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
	"k8s.io/client-go/util/exec"

	"k8s.io/client-go/kubernetes"
)

// heredocDelim is the sentinel used to terminate the "cat << EOF" sequence each file write
// issues; a fixed string works because launch configuration content never contains it.
const heredocDelim = "KUBEROS_EOF"

// FileWrite is one file to be materialised inside a running pod's container, expressed as
// the lines spec.md §4.2 writes via a "cat << EOF > dst" ... "EOF" sequence.
type FileWrite struct {
	DestPath     string
	ContentLines []string
}

// WriteFilesIntoPod streams each file's contents into the target container via a remote
// shell exec, one heredoc per file. This is how the deployment controller seeds a robot
// launch configuration into a pod without a rebuild or an init container (spec.md §4.2).
func (e *Executor) WriteFilesIntoPod(ctx context.Context, namespace, podName, containerName string, files []FileWrite) Result[struct{}] {
	clientset, err := kubernetes.NewForConfig(e.restConfig)
	if err != nil {
		return Failed[struct{}](err)
	}

	for _, f := range files {
		if err := e.writeOneFile(ctx, clientset, namespace, podName, containerName, f); err != nil {
			return Failed[struct{}](err)
		}
	}
	return Ok(struct{}{})
}

func (e *Executor) writeOneFile(ctx context.Context, clientset kubernetes.Interface, namespace, podName, containerName string, f FileWrite) error {
	req := clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(namespace).
		Name(podName).
		SubResource("exec")

	cmd := []string{"sh", "-c", fmt.Sprintf("cat << %s > %s\n%s\n%s", heredocDelim, f.DestPath, strings.Join(f.ContentLines, "\n"), heredocDelim)}
	req.VersionedParams(&corev1.PodExecOptions{
		Container: containerName,
		Command:   cmd,
		Stdout:    true,
		Stderr:    true,
	}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(e.restConfig, "POST", req.URL())
	if err != nil {
		return err
	}

	var stdout, stderr bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		if codeErr, ok := err.(exec.CodeExitError); ok {
			return fmt.Errorf("writing %s exited %d: %s", f.DestPath, codeErr.Code, stderr.String())
		}
		return fmt.Errorf("writing %s: %w: %s", f.DestPath, err, stderr.String())
	}
	return nil
}
