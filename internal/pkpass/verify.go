package pkpass

import (
	"archive/zip"
	"bytes"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"

	"github.com/smallstep/pkcs7"
)

// Verify checks an archive end to end: the manifest must list exactly the
// files present, every digest must match the file bytes, and the detached
// signature over manifest.json must validate. With a nil roots pool only the
// signature's internal consistency is checked, not the trust chain.
func Verify(archive []byte, roots *x509.CertPool) error {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}

	contents := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
		contents[f.Name] = data
	}

	manifestJSON, ok := contents[manifestEntry]
	if !ok {
		return fmt.Errorf("archive has no %s", manifestEntry)
	}
	signature, ok := contents[signatureEntry]
	if !ok {
		return fmt.Errorf("archive has no %s", signatureEntry)
	}
	if _, ok := contents[passEntry]; !ok {
		return fmt.Errorf("archive has no %s", passEntry)
	}

	var manifest map[string]string
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}

	for name, data := range contents {
		if name == manifestEntry || name == signatureEntry {
			continue
		}
		want, listed := manifest[name]
		if !listed {
			return fmt.Errorf("%s is not listed in the manifest", name)
		}
		if got := digest(data); got != want {
			return fmt.Errorf("%s digest mismatch: manifest %s, archive %s", name, want, got)
		}
	}
	for name := range manifest {
		if _, ok := contents[name]; !ok {
			return fmt.Errorf("manifest lists missing file %s", name)
		}
	}

	p7, err := pkcs7.Parse(signature)
	if err != nil {
		return fmt.Errorf("parsing signature: %w", err)
	}
	p7.Content = manifestJSON
	if roots != nil {
		if err := p7.VerifyWithChain(roots); err != nil {
			return fmt.Errorf("verifying signature: %w", err)
		}
		return nil
	}
	if err := p7.Verify(); err != nil {
		return fmt.Errorf("verifying signature: %w", err)
	}
	return nil
}
