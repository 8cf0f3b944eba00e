package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load BufferConfig from `<projectRoot>/.edcore.kdl`.
// Returns (nil, nil) when the file doesn't exist, matching the teacher's
// LoadKDL contract ("no config found" is not an error, it's "use defaults").
func LoadKDL(projectRoot string) (*BufferConfig, error) {
	kdlPath := filepath.Join(projectRoot, ".edcore.kdl")
	if !fileExists(kdlPath) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .edcore.kdl: %w", err)
	}
	return parseKDL(string(content))
}

// parseKDL parses KDL content of the form:
//
//	version 1
//	add_store {
//	    bucket_size 16384
//	}
//	snapshot {
//	    max_retained 64
//	}
//	search {
//	    chunk_size 65536
//	}
func parseKDL(content string) (*BufferConfig, error) {
	cfg := DefaultBufferConfig()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "add_store":
			for _, cn := range n.Children {
				if nodeName(cn) == "bucket_size" {
					if v, ok := firstIntArg(cn); ok {
						cfg.AddStore.BucketSize = v
					}
				}
			}
		case "snapshot":
			for _, cn := range n.Children {
				if nodeName(cn) == "max_retained" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Snapshot.MaxRetained = v
					}
				}
			}
		case "search":
			for _, cn := range n.Children {
				if nodeName(cn) == "chunk_size" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.ChunkSize = v
					}
				}
			}
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}
