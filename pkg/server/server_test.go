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
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/testing/protocmp"

	fnv1 "github.com/crossplane/function-sdk-go/proto/v1"
	fnv1beta1 "github.com/crossplane/function-sdk-go/proto/v1beta1"
)

type echo struct {
	fnv1.UnimplementedFunctionRunnerServiceServer
}

func (echo) RunFunction(_ context.Context, req *fnv1.RunFunctionRequest) (*fnv1.RunFunctionResponse, error) {
	return &fnv1.RunFunctionResponse{Meta: &fnv1.ResponseMeta{Tag: req.GetMeta().GetTag()}}, nil
}

func TestNewFunctionServer(t *testing.T) {
	if _, err := NewFunctionServer(nil); err == nil {
		t.Errorf("NewFunctionServer(nil): want error, got nil")
	}
}

func TestServeListener(t *testing.T) {
	s, err := NewFunctionServer(echo{}, WithGRPCServerOptions(DefaultServerOptions(time.Minute, 10*time.Second, time.Second)...))
	if err != nil {
		t.Fatalf("NewFunctionServer(...): %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen(...): %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.ServeListener(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient(...): %v", err)
	}
	defer conn.Close() //nolint:errcheck // Only a test.

	rctx, rcancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer rcancel()

	rsp, err := fnv1.NewFunctionRunnerServiceClient(conn).RunFunction(rctx, &fnv1.RunFunctionRequest{Meta: &fnv1.RequestMeta{Tag: "hi"}})
	if err != nil {
		t.Fatalf("RunFunction(...): %v", err)
	}
	want := &fnv1.RunFunctionResponse{Meta: &fnv1.ResponseMeta{Tag: "hi"}}
	if diff := cmp.Diff(want, rsp, protocmp.Transform()); diff != "" {
		t.Errorf("RunFunction(...): -want, +got:\n%s", diff)
	}

	brsp, err := fnv1beta1.NewFunctionRunnerServiceClient(conn).RunFunction(rctx, &fnv1beta1.RunFunctionRequest{Meta: &fnv1beta1.RequestMeta{Tag: "old"}})
	if err != nil {
		t.Fatalf("v1beta1 RunFunction(...): %v", err)
	}
	bwant := &fnv1beta1.RunFunctionResponse{Meta: &fnv1beta1.ResponseMeta{Tag: "old"}}
	if diff := cmp.Diff(bwant, brsp, protocmp.Transform()); diff != "" {
		t.Errorf("v1beta1 RunFunction(...): -want, +got:\n%s", diff)
	}

	hc, err := grpc_health_v1.NewHealthClient(conn).Check(rctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check(...): %v", err)
	}
	if diff := cmp.Diff(grpc_health_v1.HealthCheckResponse_SERVING, hc.GetStatus()); diff != "" {
		t.Errorf("Check(...): -want, +got:\n%s", diff)
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("ServeListener(...): %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Errorf("ServeListener(...): did not stop after its context was cancelled")
	}
}

func TestLoadTLSCredentials(t *testing.T) {
	cases := map[string]struct {
		reason string
		files  map[string]string
	}{
		"MissingCert": {
			reason: "A directory without a certificate should fail.",
			files:  map[string]string{TLSKeyFile: "k", TLSCAFile: "ca"},
		},
		"MissingKey": {
			reason: "A directory without a key should fail.",
			files:  map[string]string{TLSCertFile: "c", TLSCAFile: "ca"},
		},
		"MissingCA": {
			reason: "A directory without a CA should fail.",
			files:  map[string]string{TLSCertFile: "c", TLSKeyFile: "k"},
		},
		"NotPEM": {
			reason: "Files that are not PEM encoded should fail.",
			files:  map[string]string{TLSCertFile: "c", TLSKeyFile: "k", TLSCAFile: "ca"},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			for f, content := range tc.files {
				if err := afero.WriteFile(fs, "/tls/"+f, []byte(content), 0o600); err != nil {
					t.Fatalf("WriteFile(...): %v", err)
				}
			}
			if _, err := LoadTLSCredentials(fs, "/tls"); err == nil {
				t.Errorf("\n%s\nLoadTLSCredentials(...): want error, got nil", tc.reason)
			}
		})
	}
}
