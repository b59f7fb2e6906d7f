package webserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/stake-plus/membership-dao/src/logging"
)

// TLSReloader serves the certificate pair on disk and reloads it when
// either file changes.
type TLSReloader struct {
	certFile string
	keyFile  string
	log      zerolog.Logger

	mu   sync.RWMutex
	cert *tls.Certificate
}

func NewTLSReloader(certFile, keyFile string) (*TLSReloader, error) {
	r := &TLSReloader{
		certFile: certFile,
		keyFile:  keyFile,
		log:      logging.Component("tls"),
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *TLSReloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()
	r.log.Info().Str("cert", r.certFile).Msg("TLS certificates loaded")
	return nil
}

// Watch reloads the pair on file changes until ctx is done. The parent
// directories are watched so atomic renames are seen too.
func (r *TLSReloader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dirs := map[string]struct{}{
		filepath.Dir(r.certFile): {},
		filepath.Dir(r.keyFile):  {},
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	certName, keyName := filepath.Clean(r.certFile), filepath.Clean(r.keyFile)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(ev.Name)
			if name != certName && name != keyName {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := r.reload(); err != nil {
				// A pair is often rewritten one file at a time; keep the
				// previous certificate until both halves match.
				r.log.Warn().Err(err).Msg("certificate reload failed")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.log.Warn().Err(err).Msg("certificate watcher error")
		}
	}
}

func (r *TLSReloader) GetCertificate() func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.cert, nil
	}
}

func (r *TLSReloader) GetConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: r.GetCertificate(),
		MinVersion:     tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		},
	}
}
