package pkpass

import (
	"archive/zip"
	"bytes"
	"crypto/sha1" // #nosec G505 -- digest algorithm fixed by the archive format
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Reserved entry names in the archive. Everything else is an asset and must
// be listed in the manifest.
const (
	passEntry      = "pass.json"
	manifestEntry  = "manifest.json"
	signatureEntry = "signature"
)

// Build renders pass.json, computes the manifest, signs it and packages the
// flat zip archive. The output is deterministic for identical input except
// for the signature bytes, which always validate regardless.
func Build(t *Template, signer Signer) ([]byte, error) {
	passJSON, err := t.PassJSON()
	if err != nil {
		return nil, err
	}

	manifest := map[string]string{
		passEntry: digest(passJSON),
	}
	for name, data := range t.files {
		manifest[name] = digest(data)
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, err
	}

	signature, err := signer.Sign(manifestJSON)
	if err != nil {
		return nil, fmt.Errorf("signing manifest for %s: %w", t.SerialNumber, err)
	}

	return writeArchive(passJSON, manifestJSON, signature, t.files)
}

func digest(data []byte) string {
	sum := sha1.Sum(data) // #nosec G401 -- digest algorithm fixed by the archive format
	return hex.EncodeToString(sum[:])
}

func writeArchive(passJSON, manifestJSON, signature []byte, files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	entries := []struct {
		name string
		data []byte
	}{
		{signatureEntry, signature},
		{manifestEntry, manifestJSON},
		{passEntry, passJSON},
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entries = append(entries, struct {
			name string
			data []byte
		}{name, files[name]})
	}

	for _, entry := range entries {
		w, err := zw.Create(entry.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(entry.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
