package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

// SidecarSuffixes are the metadata files looked up next to a document, in
// order. "receipt.pdf.meta.yaml" describes "receipt.pdf".
var SidecarSuffixes = []string{".meta.yaml", ".meta.yml", ".meta.json"}

// LoadSidecar reads the metadata file for the document at path. It returns
// empty metadata and nil raw bytes when there is none.
func LoadSidecar(path string) (vectordb.Metadata, []byte, error) {
	for _, suffix := range SidecarSuffixes {
		raw, err := os.ReadFile(path + suffix)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return vectordb.Metadata{}, nil, fmt.Errorf("reading sidecar: %w", err)
		}
		md, err := parseSidecar(raw, strings.HasSuffix(suffix, ".json"))
		if err != nil {
			return vectordb.Metadata{}, nil, fmt.Errorf("parsing %s: %w", path+suffix, err)
		}
		return md, raw, nil
	}
	return vectordb.Metadata{}, nil, nil
}

func parseSidecar(raw []byte, isJSON bool) (vectordb.Metadata, error) {
	if isJSON {
		var md vectordb.Metadata
		if err := json.Unmarshal(raw, &md); err != nil {
			return vectordb.Metadata{}, err
		}
		return md, nil
	}
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return vectordb.Metadata{}, err
	}
	return vectordb.MetadataFromMap(m), nil
}
