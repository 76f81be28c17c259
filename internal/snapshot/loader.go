package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeblock-sh/codeblock/internal/boundary"
	"github.com/codeblock-sh/codeblock/internal/vfs"
)

// Mount sends the snapshot blob through the mount protocol and wraps the
// returned remote handle as a filesystem capability. The host
// deserializes the blob; a malformed snapshot surfaces here as an error.
func Mount(ctx context.Context, ep *boundary.Endpoint, blob []byte) (vfs.FS, error) {
	result, err := ep.Call(ctx, vfs.MethodMount, map[string]any{"fsBuffer": blob})
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	handle := boundary.AsString(boundary.AsMap(result)["fs"])
	if handle == "" {
		return nil, errors.New("mount: no filesystem handle in result")
	}
	return vfs.NewRemote(ep, handle), nil
}

// Boot is the editor's startup path: fetch the session snapshot, mount
// it through the endpoint, return the capability. Fetch and mount
// failures are both fatal and propagate as a single reportable error,
// never swallowed.
func Boot(ctx context.Context, ep *boundary.Endpoint, snapshotURL string) (vfs.FS, error) {
	blob, err := Fetch(ctx, snapshotURL)
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	fs, err := Mount(ctx, ep, blob)
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	return fs, nil
}
