package certs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// File layout of a certificate pair inside its directory.
const (
	DefaultDir   = ".certs"
	CertFileName = "cert.pem"
	KeyFileName  = "key.pem"
)

const (
	defaultTool = "openssl"
	keySpec     = "rsa:4096"
	validDays   = "365"
	subject     = "/C=JP/ST=Tokyo/L=Tokyo/O=Dev/OU=Dev/CN=localhost"
	dirPerm     = 0o755
)

// Common errors for certificate provisioning.
var (
	ErrToolNotFound = errors.New("certificate tool not found")
	ErrToolFailed   = errors.New("certificate tool failed")
)

// Pair points at a key and a certificate stored side by side.
type Pair struct {
	CertFile  string // Path to the PEM certificate.
	KeyFile   string // Path to the PEM private key.
	Generated bool   // Generated is true when the pair was created during this call.
}

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Provisioner creates self-signed development certificates on demand.
type Provisioner struct {
	log      *slog.Logger
	tool     string
	runner   Runner
	lookPath func(file string) (string, error)
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithRunner replaces the command runner.
func WithRunner(runner Runner) Option {
	return func(p *Provisioner) { p.runner = runner }
}

// WithLookPath replaces the executable lookup.
func WithLookPath(lookPath func(file string) (string, error)) Option {
	return func(p *Provisioner) { p.lookPath = lookPath }
}

// WithTool sets the name of the certificate tool, "openssl" by default.
func WithTool(tool string) Option {
	return func(p *Provisioner) { p.tool = tool }
}

// NewProvisioner creates a provisioner that shells out to openssl.
func NewProvisioner(log *slog.Logger, opts ...Option) *Provisioner {
	prov := &Provisioner{
		log:      log,
		tool:     defaultTool,
		runner:   execRunner{},
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(prov)
	}

	return prov
}

// Ensure returns the certificate pair stored in dir, generating it first when
// either file is missing. Generation writes to temporary names and renames both
// files into place only after the tool succeeded.
//
// Errors wrapping ErrToolNotFound or ErrToolFailed mean no certificate is
// available and the caller should serve plain HTTP.
func (p *Provisioner) Ensure(ctx context.Context, dir string) (*Pair, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	pair := &Pair{
		CertFile: filepath.Join(dir, CertFileName),
		KeyFile:  filepath.Join(dir, KeyFileName),
	}

	if isFile(pair.CertFile) && isFile(pair.KeyFile) {
		p.log.InfoContext(ctx, "Using existing SSL certificates", "dir", dir)
		return pair, nil
	}

	toolPath, err := p.lookPath(p.tool)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrToolNotFound, p.tool, err)
	}

	p.log.InfoContext(ctx, "Creating self-signed SSL certificate", "dir", dir, "tool", toolPath)

	tmpCert := filepath.Join(dir, "."+CertFileName+".tmp")
	tmpKey := filepath.Join(dir, "."+KeyFileName+".tmp")
	defer func() {
		_ = os.Remove(tmpCert)
		_ = os.Remove(tmpKey)
	}()

	out, err := p.runner.Run(ctx, toolPath,
		"req", "-x509", "-newkey", keySpec,
		"-keyout", tmpKey, "-out", tmpCert,
		"-days", validDays, "-nodes", "-subj", subject,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s", ErrToolFailed, err, strings.TrimSpace(string(out)))
	}

	if !isFile(tmpCert) || !isFile(tmpKey) {
		return nil, fmt.Errorf("%w: tool exited without writing both files", ErrToolFailed)
	}

	if err = os.Rename(tmpKey, pair.KeyFile); err != nil {
		return nil, fmt.Errorf("failed to store private key: %w", err)
	}
	if err = os.Rename(tmpCert, pair.CertFile); err != nil {
		_ = os.Remove(pair.KeyFile)
		return nil, fmt.Errorf("failed to store certificate: %w", err)
	}

	pair.Generated = true
	p.log.InfoContext(ctx, "SSL certificate created successfully", "cert", pair.CertFile)

	return pair, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
