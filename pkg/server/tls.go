/*
Copyright 2025 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"crypto/tls"
	"crypto/x509"
	"path/filepath"

	"github.com/spf13/afero"
	"google.golang.org/grpc/credentials"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// Files expected in a TLS certificates directory.
const (
	TLSCertFile = "tls.crt"
	TLSKeyFile  = "tls.key"
	TLSCAFile   = "ca.crt"
)

const (
	errReadCert = "cannot read TLS certificate"
	errReadKey  = "cannot read TLS key"
	errReadCA   = "cannot read TLS CA certificate"
	errKeyPair  = "cannot load TLS key pair"
	errAppendCA = "cannot add CA certificate to pool"
)

// LoadTLSCredentials loads mutual TLS server credentials from the supplied
// directory. Clients must present a certificate signed by the directory's
// CA, which is how Crossplane authenticates itself to functions.
func LoadTLSCredentials(fs afero.Fs, dir string) (credentials.TransportCredentials, error) {
	cert, err := afero.ReadFile(fs, filepath.Join(dir, TLSCertFile))
	if err != nil {
		return nil, errors.Wrap(err, errReadCert)
	}
	key, err := afero.ReadFile(fs, filepath.Join(dir, TLSKeyFile))
	if err != nil {
		return nil, errors.Wrap(err, errReadKey)
	}
	ca, err := afero.ReadFile(fs, filepath.Join(dir, TLSCAFile))
	if err != nil {
		return nil, errors.Wrap(err, errReadCA)
	}

	kp, err := tls.X509KeyPair(cert, key)
	if err != nil {
		return nil, errors.Wrap(err, errKeyPair)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca) {
		return nil, errors.New(errAppendCA)
	}

	return credentials.NewTLS(&tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{kp},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}), nil
}
