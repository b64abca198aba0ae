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

// Package server serves a composition function over gRPC.
package server

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"
	function "github.com/crossplane/function-sdk-go"
	fnv1 "github.com/crossplane/function-sdk-go/proto/v1"
	fnv1beta1 "github.com/crossplane/function-sdk-go/proto/v1beta1"
)

// Error strings.
const (
	errListen    = "cannot listen"
	errServe     = "cannot serve gRPC"
	errNilRunner = "cannot serve a nil function"
)

// ServiceName is the health service name reported as serving.
const ServiceName = "apiextensions.fn.proto.v1.FunctionRunnerService"

// A FunctionServer serves a FunctionRunnerService.
type FunctionServer struct {
	runner fnv1.FunctionRunnerServiceServer
	health *health.Server
	log    logging.Logger
	opts   []grpc.ServerOption
}

// A FunctionServerOption configures a FunctionServer.
type FunctionServerOption func(*FunctionServer)

// WithServerLogger sets the logger for the FunctionServer.
func WithServerLogger(log logging.Logger) FunctionServerOption {
	return func(s *FunctionServer) {
		s.log = log
	}
}

// WithTLSCredentials configures the server to use TLS credentials.
func WithTLSCredentials(creds credentials.TransportCredentials) FunctionServerOption {
	return func(s *FunctionServer) {
		s.opts = append(s.opts, grpc.Creds(creds))
	}
}

// WithGRPCServerOptions configures additional gRPC server options.
func WithGRPCServerOptions(opts ...grpc.ServerOption) FunctionServerOption {
	return func(s *FunctionServer) {
		s.opts = append(s.opts, opts...)
	}
}

// NewFunctionServer creates a new FunctionServer for the supplied function.
func NewFunctionServer(fn fnv1.FunctionRunnerServiceServer, o ...FunctionServerOption) (*FunctionServer, error) {
	if fn == nil {
		return nil, errors.New(errNilRunner)
	}
	s := &FunctionServer{
		runner: fn,
		health: health.NewServer(),
		log:    logging.NewNopLogger(),
	}
	for _, opt := range o {
		opt(s)
	}
	return s, nil
}

// RegisterWithServer registers the function, health and reflection services
// with the given gRPC server. The function is served as both v1 and v1beta1,
// since Crossplane v1.16 and earlier only send v1beta1 requests.
func (s *FunctionServer) RegisterWithServer(server *grpc.Server) {
	fnv1.RegisterFunctionRunnerServiceServer(server, s.runner)
	fnv1beta1.RegisterFunctionRunnerServiceServer(server, function.ServeBeta(s.runner))
	grpc_health_v1.RegisterHealthServer(server, s.health)
	reflection.Register(server)
}

// Serve listens on the supplied address and serves until the context is
// done, then stops gracefully.
func (s *FunctionServer) Serve(ctx context.Context, address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, errListen)
	}
	return s.ServeListener(ctx, lis)
}

// ServeListener serves on the supplied listener until the context is done,
// then stops gracefully. The listener is closed when ServeListener returns.
func (s *FunctionServer) ServeListener(ctx context.Context, lis net.Listener) error {
	server := grpc.NewServer(s.opts...)
	s.RegisterWithServer(server)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.log.Info("Stopping gRPC function server")
		s.health.Shutdown()
		server.GracefulStop()
	}()

	s.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	s.log.Info("Starting gRPC function server", "address", lis.Addr().String())
	if err := server.Serve(lis); err != nil {
		return errors.Wrap(err, errServe)
	}
	<-stopped
	return nil
}
