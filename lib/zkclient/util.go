package zkclient

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samuel/go-zookeeper/zk"
)

// parseSeq extracts the sequence number from a sequential znode name.
// Protected ephemeral-sequential nodes look like
// "_c_6af2...-lock-0000000004"; plain ones like "lock-0000000004".
// The sequence is always the part after the last dash.
func parseSeq(name string) (int, error) {
	idx := strings.LastIndex(name, "-")
	if idx < 0 {
		return 0, fmt.Errorf("zkclient: node %q has no sequence suffix", name)
	}
	seq, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("zkclient: node %q has a malformed sequence suffix: %v", name, err)
	}
	return seq, nil
}

// parentPaths returns every ancestor of path (excluding the root) in
// creation order, e.g. "/locks/app/key" -> ["/locks", "/locks/app", "/locks/app/key"].
func parentPaths(path string) []string {
	var paths []string
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			paths = append(paths, path[:i])
		}
	}
	return append(paths, path)
}

// isSessionError reports whether err means the session is unusable.
func isSessionError(err error) bool {
	return errors.Is(err, zk.ErrConnectionClosed) ||
		errors.Is(err, zk.ErrSessionExpired) ||
		errors.Is(err, zk.ErrSessionMoved) ||
		errors.Is(err, zk.ErrClosing)
}

// mapErr translates raw zk errors into the package error taxonomy.
// Non-session errors pass through unchanged.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if isSessionError(err) {
		return fmt.Errorf("%w: %v", ErrSessionClosed, err)
	}
	return err
}
