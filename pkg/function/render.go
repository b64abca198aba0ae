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

package function

import (
	"context"

	"google.golang.org/protobuf/encoding/protojson"
	"sigs.k8s.io/yaml"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	fnv1 "github.com/crossplane/function-sdk-go/proto/v1"
)

const (
	errParseRequest   = "cannot parse RunFunctionRequest"
	errRunFunction    = "cannot run function"
	errEncodeResponse = "cannot encode RunFunctionResponse"
)

// Render runs the supplied function against a RunFunctionRequest encoded as
// YAML or JSON, and returns the RunFunctionResponse encoded as YAML.
func Render(ctx context.Context, fn fnv1.FunctionRunnerServiceServer, request []byte) ([]byte, error) {
	j, err := yaml.YAMLToJSON(request)
	if err != nil {
		return nil, errors.Wrap(err, errParseRequest)
	}
	req := &fnv1.RunFunctionRequest{}
	if err := protojson.Unmarshal(j, req); err != nil {
		return nil, errors.Wrap(err, errParseRequest)
	}

	rsp, err := fn.RunFunction(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, errRunFunction)
	}

	out, err := protojson.Marshal(rsp)
	if err != nil {
		return nil, errors.Wrap(err, errEncodeResponse)
	}
	y, err := yaml.JSONToYAML(out)
	return y, errors.Wrap(err, errEncodeResponse)
}
